package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/glimpse/pkg/intent"
	"github.com/m-mizutani/glimpse/pkg/usecase/dispatch"
	"github.com/m-mizutani/glimpse/pkg/usecase/face"
	"github.com/m-mizutani/glimpse/pkg/usecase/scene"
	"github.com/m-mizutani/glimpse/pkg/usecase/text"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Gemini
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Storage
	bucket    string
	facesDir  string
	scenesDir string

	// Perception backends
	matcherURL    string
	matcherModel  string
	visionAPIKey  string
	fetchTimeout  time.Duration
	maxImageBytes int64

	// Recap
	recapBackoff  time.Duration
	recapInterval time.Duration
}

// geminiFlags returns flags for the Gemini backend with destination config
func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key (takes precedence over Vertex AI)",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model used for classification and scene descriptions",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// storageFlags returns flags for the face and scene stores with destination config
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for faces/ and scenes/ (local directories when empty)",
			Sources:     cli.EnvVars("GLIMPSE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "faces-dir",
			Usage:       "Directory of reference faces",
			Value:       "./faces",
			Sources:     cli.EnvVars("GLIMPSE_FACES_DIR"),
			Destination: &cfg.facesDir,
		},
		&cli.StringFlag{
			Name:        "scenes-dir",
			Usage:       "Directory of saved scenes",
			Value:       "./scenes",
			Sources:     cli.EnvVars("GLIMPSE_SCENES_DIR"),
			Destination: &cfg.scenesDir,
		},
	}
}

// perceptionFlags returns flags for the face matcher, OCR and image download
func perceptionFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "matcher-url",
			Usage:       "Base URL of the face matching service",
			Sources:     cli.EnvVars("GLIMPSE_MATCHER_URL"),
			Destination: &cfg.matcherURL,
		},
		&cli.StringFlag{
			Name:        "matcher-model",
			Usage:       "Face recognition model requested from the matcher",
			Value:       "VGG-Face",
			Sources:     cli.EnvVars("GLIMPSE_MATCHER_MODEL"),
			Destination: &cfg.matcherModel,
		},
		&cli.StringFlag{
			Name:        "vision-api-key",
			Usage:       "Cloud Vision API key (Application Default Credentials when empty)",
			Sources:     cli.EnvVars("GLIMPSE_VISION_API_KEY"),
			Destination: &cfg.visionAPIKey,
		},
		&cli.DurationFlag{
			Name:        "fetch-timeout",
			Usage:       "Timeout for downloading an image",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("GLIMPSE_FETCH_TIMEOUT"),
			Destination: &cfg.fetchTimeout,
		},
		&cli.IntFlag{
			Name:        "max-image-bytes",
			Usage:       "Largest image accepted for download",
			Value:       20 << 20,
			Sources:     cli.EnvVars("GLIMPSE_MAX_IMAGE_BYTES"),
			Destination: &cfg.maxImageBytes,
		},
	}
}

// recapFlags returns flags pacing the daily recap
func recapFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "recap-backoff",
			Usage:       "Wait before retrying a rate limited generation",
			Value:       scene.DefaultBackoff,
			Sources:     cli.EnvVars("GLIMPSE_RECAP_BACKOFF"),
			Destination: &cfg.recapBackoff,
		},
		&cli.DurationFlag{
			Name:        "recap-interval",
			Usage:       "Pause between per-scene generations",
			Value:       scene.DefaultInterval,
			Sources:     cli.EnvVars("GLIMPSE_RECAP_INTERVAL"),
			Destination: &cfg.recapInterval,
		},
	}
}

// allFlags returns every flag needed to build the dispatcher
func allFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, geminiFlags(cfg)...)
	flags = append(flags, storageFlags(cfg)...)
	flags = append(flags, perceptionFlags(cfg)...)
	flags = append(flags, recapFlags(cfg)...)
	return flags
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	opts := []adapter.GeminiOption{adapter.WithGenerativeModel(cfg.geminiModel)}
	switch {
	case cfg.geminiAPIKey != "":
		opts = append(opts, adapter.WithAPIKey(cfg.geminiAPIKey))
	case cfg.geminiProject != "":
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		opts = append(opts, adapter.WithVertexAI(cfg.geminiProject, cfg.geminiLocation))
	default:
		return nil, goerr.New("gemini-api-key or gemini-project is required")
	}

	gemini, err := adapter.NewGemini(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return gemini, nil
}

// newStorage opens a store for one key space: a prefix of the bucket when configured,
// otherwise dir
func (cfg *config) newStorage(ctx context.Context, prefix, dir string) (adapter.Storage, error) {
	if cfg.bucket != "" {
		storage, err := adapter.NewStorage(ctx, cfg.bucket, prefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage", goerr.V("bucket", cfg.bucket))
		}
		return storage, nil
	}

	if dir == "" {
		return nil, goerr.New("directory is required when no bucket is set", goerr.V("store", prefix))
	}
	storage, err := adapter.NewFileStorage(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage", goerr.V("dir", dir))
	}
	return storage, nil
}

// newFetcher creates the image downloader
func (cfg *config) newFetcher() adapter.Fetcher {
	var opts []adapter.FetcherOption
	if cfg.fetchTimeout > 0 {
		opts = append(opts, adapter.WithHTTPClient(&http.Client{Timeout: cfg.fetchTimeout}))
	}
	if cfg.maxImageBytes > 0 {
		opts = append(opts, adapter.WithMaxImageBytes(cfg.maxImageBytes))
	}
	return adapter.NewFetcher(opts...)
}

// newMatcher creates the face matcher client
func (cfg *config) newMatcher() (adapter.FaceMatcher, error) {
	if cfg.matcherURL == "" {
		return nil, goerr.New("matcher-url is required")
	}
	return adapter.NewFaceMatcher(cfg.matcherURL, adapter.WithMatcherModel(cfg.matcherModel)), nil
}

// newSceneUseCase creates the scene use case
func (cfg *config) newSceneUseCase(ctx context.Context, gemini adapter.Gemini) (*scene.UseCase, error) {
	scenes, err := cfg.newStorage(ctx, "scenes", cfg.scenesDir)
	if err != nil {
		return nil, err
	}
	return scene.New(cfg.newFetcher(), scenes, gemini,
		scene.WithBackoff(cfg.recapBackoff),
		scene.WithInterval(cfg.recapInterval),
	), nil
}

// newDispatcher wires every capability behind the intent dispatcher
func (cfg *config) newDispatcher(ctx context.Context) (*dispatch.UseCase, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	matcher, err := cfg.newMatcher()
	if err != nil {
		return nil, err
	}

	ocr, err := adapter.NewVision(ctx, cfg.visionAPIKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create OCR client")
	}

	faces, err := cfg.newStorage(ctx, "faces", cfg.facesDir)
	if err != nil {
		return nil, err
	}

	sceneUC, err := cfg.newSceneUseCase(ctx, gemini)
	if err != nil {
		return nil, err
	}

	catalog, err := intent.DefaultCatalog()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load intent catalog")
	}

	fetcher := cfg.newFetcher()
	uc, err := dispatch.New(intent.New(gemini, catalog), catalog,
		dispatch.WithFace(face.New(fetcher, faces, matcher)),
		dispatch.WithText(text.New(fetcher, ocr)),
		dispatch.WithScene(sceneUC),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create dispatcher")
	}
	return uc, nil
}
