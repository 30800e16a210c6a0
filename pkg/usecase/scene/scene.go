package scene

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const (
	describePrompt = "Describe this scene in detail"

	// DefaultBackoff is the wait before retrying a rate limited generation
	DefaultBackoff = 30 * time.Second
	// DefaultInterval is the pause between per-scene generations of a recap
	DefaultInterval = 5 * time.Second
)

// UseCase saves, describes and recaps scenes captured by the glasses
type UseCase struct {
	fetcher adapter.Fetcher
	scenes  adapter.Storage
	gemini  adapter.Gemini

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	backoff  time.Duration
	interval time.Duration
}

// Option configures UseCase
type Option func(*UseCase)

// WithClock replaces the clock used for scene names and the default recap date
func WithClock(now func() time.Time) Option {
	return func(u *UseCase) {
		u.now = now
	}
}

// WithSleep replaces the wait used for backoff and throttling
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(u *UseCase) {
		u.sleep = sleep
	}
}

// WithBackoff sets the wait before retrying a rate limited generation
func WithBackoff(d time.Duration) Option {
	return func(u *UseCase) {
		u.backoff = d
	}
}

// WithInterval sets the pause between per-scene generations
func WithInterval(d time.Duration) Option {
	return func(u *UseCase) {
		u.interval = d
	}
}

// New creates a scene use case storing scenes in scenes
func New(fetcher adapter.Fetcher, scenes adapter.Storage, gemini adapter.Gemini, opts ...Option) *UseCase {
	u := &UseCase{
		fetcher:  fetcher,
		scenes:   scenes,
		gemini:   gemini,
		now:      time.Now,
		sleep:    sleepContext,
		backoff:  DefaultBackoff,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Save stores the image at imageURL as a scene named after the current second. A scene
// saved within the same second replaces the previous one.
func (u *UseCase) Save(ctx context.Context, imageURL string) (*model.Result, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "image_url is required")
	}

	data, err := u.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return model.Failure("Failed to download image", err), nil
	}

	id := model.NewSceneID(u.now())
	if err := u.write(ctx, id.String(), data); err != nil {
		return model.Failure("Failed to save scene", err), nil
	}

	logging.From(ctx).Info("scene saved", "scene", id, "bytes", len(data))

	return model.Success(model.Payload{
		"filepath":  u.scenes.Locate(id.String()),
		"timestamp": id.Timestamp(),
	}), nil
}

func (u *UseCase) write(ctx context.Context, key string, data []byte) error {
	w, err := u.scenes.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to open scene object", goerr.V("key", key))
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write scene", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to write scene", goerr.V("key", key))
	}
	return nil
}

// Describe asks the generator to describe the image at imageURL
func (u *UseCase) Describe(ctx context.Context, imageURL string) (*model.Result, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "image_url is required")
	}

	data, err := u.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		logging.From(ctx).Warn("failed to download scene image", "url", imageURL, "error", err)
		return model.NotFound("Could not download image"), nil
	}

	description, err := u.generate(ctx, describePrompt, data)
	if err != nil {
		return model.Failure("Failed to describe scene", err), nil
	}

	return model.Success(model.Payload{
		"description": description,
		"source":      "provided_image",
	}), nil
}

func generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
		TopP:        genai.Ptr[float32](0.95),
		TopK:        genai.Ptr[float32](40),
	}
}

// generate runs one generation call with prompt and an optional image
func (u *UseCase) generate(ctx context.Context, prompt string, image []byte) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if image != nil {
		parts = append(parts, genai.NewPartFromBytes(image, http.DetectContentType(image)))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := u.gemini.GenerateContent(ctx, contents, generateConfig())
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(adapter.ResponseText(resp))
	if text == "" {
		return "", goerr.New("generator returned no text")
	}
	return text, nil
}
