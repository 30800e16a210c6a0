package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sony/gobreaker"
)

// ErrMatcherUnavailable is returned while the matcher circuit is open
var ErrMatcherUnavailable = goerr.New("face matcher unavailable")

// GalleryFace is one reference image sent to the matcher
type GalleryFace struct {
	Path  string
	Image []byte
}

// FaceCandidate is a gallery entry ranked against a detected face
type FaceCandidate struct {
	Path     string  `json:"identity"`
	Distance float64 `json:"distance"`
}

// FaceMatcher ranks the faces found in probe against the gallery. The result has one
// slice per detected face, each ordered by ascending distance.
type FaceMatcher interface {
	Find(ctx context.Context, probe []byte, gallery []GalleryFace) ([][]FaceCandidate, error)
}

type matcherClient struct {
	endpoint  string
	modelName string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
}

type MatcherOption func(*matcherClient)

// WithMatcherModel sets the recognition model requested from the matcher
func WithMatcherModel(name string) MatcherOption {
	return func(m *matcherClient) {
		m.modelName = name
	}
}

// WithMatcherHTTPClient replaces the default HTTP client
func WithMatcherHTTPClient(client *http.Client) MatcherOption {
	return func(m *matcherClient) {
		m.client = client
	}
}

// NewFaceMatcher creates a client for an HTTP face matching service. After three
// consecutive failures the circuit opens for 30 seconds and calls fail fast.
func NewFaceMatcher(endpoint string, opts ...MatcherOption) FaceMatcher {
	m := &matcherClient{
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		modelName: "VGG-Face",
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "FaceMatcher",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return m
}

type findRequest struct {
	Image     string        `json:"img"`
	ModelName string        `json:"model_name"`
	Gallery   []galleryItem `json:"gallery"`
}

type galleryItem struct {
	Path  string `json:"identity"`
	Image string `json:"img"`
}

type findResponse struct {
	Results [][]FaceCandidate `json:"results"`
}

func (m *matcherClient) Find(ctx context.Context, probe []byte, gallery []GalleryFace) ([][]FaceCandidate, error) {
	req := findRequest{
		Image:     base64.StdEncoding.EncodeToString(probe),
		ModelName: m.modelName,
		Gallery:   make([]galleryItem, 0, len(gallery)),
	}
	for _, g := range gallery {
		req.Gallery = append(req.Gallery, galleryItem{
			Path:  g.Path,
			Image: base64.StdEncoding.EncodeToString(g.Image),
		})
	}

	result, err := m.breaker.Execute(func() (interface{}, error) {
		return m.post(ctx, &req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, goerr.Wrap(ErrMatcherUnavailable, "face matcher circuit is open")
		}
		return nil, err
	}

	return result.([][]FaceCandidate), nil
}

func (m *matcherClient) post(ctx context.Context, body *findRequest) ([][]FaceCandidate, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal matcher request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/find", bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build matcher request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call face matcher", goerr.V("endpoint", m.endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("face matcher returned an error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)))
	}

	var out findResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, goerr.Wrap(err, "failed to decode matcher response")
	}
	return out.Results, nil
}
