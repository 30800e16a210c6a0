package adapter

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Fetcher downloads images referenced by URL
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

type httpFetcher struct {
	client   *http.Client
	maxBytes int64
}

type FetcherOption func(*httpFetcher)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *httpFetcher) {
		f.client = client
	}
}

// WithMaxImageBytes limits the size of a downloaded image
func WithMaxImageBytes(n int64) FetcherOption {
	return func(f *httpFetcher) {
		f.maxBytes = n
	}
}

// NewFetcher creates an HTTP image fetcher. Every failure is reported as
// model.ErrImageUnavailable.
func NewFetcher(opts ...FetcherOption) Fetcher {
	f := &httpFetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: 20 << 20,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *httpFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, goerr.Wrap(model.ErrImageUnavailable, "image URL must be an absolute http(s) URL",
			goerr.V("url", imageURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, goerr.Wrap(model.ErrImageUnavailable, "failed to build image request",
			goerr.V("url", imageURL), goerr.V("error", err.Error()))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(model.ErrImageUnavailable, "failed to download image",
			goerr.V("url", imageURL), goerr.V("error", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.Wrap(model.ErrImageUnavailable, "image server returned an error status",
			goerr.V("url", imageURL), goerr.V("status", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, goerr.Wrap(model.ErrImageUnavailable, "failed to read image body",
			goerr.V("url", imageURL), goerr.V("error", err.Error()))
	}
	if int64(len(data)) > f.maxBytes {
		return nil, goerr.Wrap(model.ErrImageUnavailable, "image is too large",
			goerr.V("url", imageURL), goerr.V("limit", f.maxBytes))
	}
	if len(data) == 0 {
		return nil, goerr.Wrap(model.ErrImageUnavailable, "image is empty", goerr.V("url", imageURL))
	}

	return data, nil
}
