package face_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"testing"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/usecase/face"
	"github.com/m-mizutani/gt"
)

type mockFetcher struct {
	images map[string][]byte
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if data, ok := m.images[url]; ok {
		return data, nil
	}
	return nil, errors.Join(model.ErrImageUnavailable, errors.New("404 Not Found"))
}

type mockMatcher struct {
	findFunc func(ctx context.Context, probe []byte, gallery []adapter.GalleryFace) ([][]adapter.FaceCandidate, error)
	calls    int
	gallery  []adapter.GalleryFace
}

func (m *mockMatcher) Find(ctx context.Context, probe []byte, gallery []adapter.GalleryFace) ([][]adapter.FaceCandidate, error) {
	m.calls++
	m.gallery = gallery
	return m.findFunc(ctx, probe, gallery)
}

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	gt.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func putObject(t *testing.T, store adapter.Storage, key string, data []byte) {
	t.Helper()
	w, err := store.Put(context.Background(), key)
	gt.NoError(t, err)
	_, err = w.Write(data)
	gt.NoError(t, err)
	gt.NoError(t, w.Close())
}

func newGallery(t *testing.T) adapter.Storage {
	t.Helper()
	store, err := adapter.NewFileStorage(t.TempDir())
	gt.NoError(t, err)
	return store
}

func TestFindScenario(t *testing.T) {
	gallery := newGallery(t)
	putObject(t, gallery, "JP.jpg", encodePNG(t, 4, 4, color.White))

	fetcher := &mockFetcher{images: map[string][]byte{
		"https://example.com/a.jpg": encodePNG(t, 4, 4, color.Black),
	}}
	matcher := &mockMatcher{
		findFunc: func(ctx context.Context, probe []byte, g []adapter.GalleryFace) ([][]adapter.FaceCandidate, error) {
			return [][]adapter.FaceCandidate{
				{{Path: "JP.jpg", Distance: 0.127}},
			}, nil
		},
	}

	uc := face.New(fetcher, gallery, matcher)
	result, err := uc.Find(context.Background(), "https://example.com/a.jpg")
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())
	gt.Equal(t, result.Payload["message"], any("Found 1 potential matches"))

	matches := result.Payload["matches"].([]model.FaceMatch)
	gt.A(t, matches).Length(1)
	gt.Equal(t, matches[0].Identity, model.Identity("JP"))
	gt.True(t, math.Abs(matches[0].Confidence-87.3) < 1e-9)
	gt.S(t, matches[0].SourcePath).Contains("JP.jpg")

	gt.A(t, matcher.gallery).Length(1)
	gt.Equal(t, matcher.gallery[0].Path, "JP.jpg")
}

func TestFindOrdersBestMatchPerFace(t *testing.T) {
	gallery := newGallery(t)
	for _, name := range []string{"alice.jpg", "bob.jpg", "carol.jpg"} {
		putObject(t, gallery, name, encodePNG(t, 2, 2, color.White))
	}

	fetcher := &mockFetcher{images: map[string][]byte{"https://example.com/group.jpg": encodePNG(t, 2, 2, color.Black)}}
	matcher := &mockMatcher{
		findFunc: func(ctx context.Context, probe []byte, g []adapter.GalleryFace) ([][]adapter.FaceCandidate, error) {
			return [][]adapter.FaceCandidate{
				{{Path: "bob.jpg", Distance: 0.6}, {Path: "carol.jpg", Distance: 0.3}},
				{},
				{{Path: "alice.jpg", Distance: 0.1}},
				{{Path: "bob.jpg", Distance: 1.4}},
			}, nil
		},
	}

	uc := face.New(fetcher, gallery, matcher)
	result, err := uc.Find(context.Background(), "https://example.com/group.jpg")
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())

	matches := result.Payload["matches"].([]model.FaceMatch)
	gt.A(t, matches).Length(3)
	gt.Equal(t, matches[0].Identity, model.Identity("alice"))
	gt.Equal(t, matches[1].Identity, model.Identity("carol"))
	gt.Equal(t, matches[2].Identity, model.Identity("bob"))
	gt.Equal(t, matches[2].Confidence, 0.0)
	gt.Equal(t, result.Payload["message"], any("Found 3 potential matches"))
}

func TestFindNotFound(t *testing.T) {
	probeURL := "https://example.com/a.jpg"

	t.Run("no candidates", func(t *testing.T) {
		gallery := newGallery(t)
		putObject(t, gallery, "JP.jpg", encodePNG(t, 2, 2, color.White))
		matcher := &mockMatcher{
			findFunc: func(context.Context, []byte, []adapter.GalleryFace) ([][]adapter.FaceCandidate, error) {
				return [][]adapter.FaceCandidate{{}}, nil
			},
		}

		uc := face.New(&mockFetcher{images: map[string][]byte{probeURL: encodePNG(t, 2, 2, color.Black)}}, gallery, matcher)
		result, err := uc.Find(context.Background(), probeURL)
		gt.NoError(t, err)
		gt.True(t, result.IsNotFound())
		gt.Equal(t, result.Message, "No matching faces found in the database")
	})

	t.Run("empty gallery", func(t *testing.T) {
		matcher := &mockMatcher{}
		uc := face.New(&mockFetcher{images: map[string][]byte{probeURL: encodePNG(t, 2, 2, color.Black)}}, newGallery(t), matcher)
		result, err := uc.Find(context.Background(), probeURL)
		gt.NoError(t, err)
		gt.True(t, result.IsNotFound())
		gt.Equal(t, matcher.calls, 0)
	})

	t.Run("undecodable image", func(t *testing.T) {
		gallery := newGallery(t)
		putObject(t, gallery, "JP.jpg", encodePNG(t, 2, 2, color.White))
		matcher := &mockMatcher{
			findFunc: func(context.Context, []byte, []adapter.GalleryFace) ([][]adapter.FaceCandidate, error) {
				return [][]adapter.FaceCandidate{{{Path: "JP.jpg", Distance: 0.2}}}, nil
			},
		}
		fetcher := &mockFetcher{images: map[string][]byte{probeURL: []byte("<html>not an image</html>")}}

		uc := face.New(fetcher, gallery, matcher)
		result, err := uc.Find(context.Background(), probeURL)
		gt.NoError(t, err)
		gt.True(t, result.IsNotFound())
		gt.Equal(t, result.Message, "Could not download image")
		gt.Equal(t, matcher.calls, 0)
	})

	t.Run("image unavailable", func(t *testing.T) {
		matcher := &mockMatcher{}
		uc := face.New(&mockFetcher{}, newGallery(t), matcher)
		result, err := uc.Find(context.Background(), probeURL)
		gt.NoError(t, err)
		gt.True(t, result.IsNotFound())
		gt.Equal(t, matcher.calls, 0)
	})
}

func TestFindIdentityWithDots(t *testing.T) {
	gallery := newGallery(t)
	fetcher := &mockFetcher{images: map[string][]byte{
		"https://example.com/mary.png":  encodePNG(t, 4, 4, color.White),
		"https://example.com/probe.png": encodePNG(t, 4, 4, color.Black),
	}}
	matcher := &mockMatcher{
		findFunc: func(ctx context.Context, probe []byte, g []adapter.GalleryFace) ([][]adapter.FaceCandidate, error) {
			return [][]adapter.FaceCandidate{{{Path: g[0].Path, Distance: 0.1}}}, nil
		},
	}
	uc := face.New(fetcher, gallery, matcher)
	ctx := context.Background()

	added, err := uc.Add(ctx, "https://example.com/mary.png", "Mary.Ann")
	gt.NoError(t, err)
	gt.True(t, added.IsSuccess())

	result, err := uc.Find(ctx, "https://example.com/probe.png")
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())

	matches := result.Payload["matches"].([]model.FaceMatch)
	gt.A(t, matches).Length(1)
	gt.Equal(t, matches[0].Identity, model.Identity("Mary.Ann"))
	gt.Equal(t, matches[0].SourcePath, gallery.Locate("Mary.Ann.jpg"))

	_, err = os.Stat(matches[0].SourcePath)
	gt.NoError(t, err)
}

func TestFindMatcherFailure(t *testing.T) {
	gallery := newGallery(t)
	putObject(t, gallery, "JP.jpg", encodePNG(t, 2, 2, color.White))
	matcher := &mockMatcher{
		findFunc: func(context.Context, []byte, []adapter.GalleryFace) ([][]adapter.FaceCandidate, error) {
			return nil, adapter.ErrMatcherUnavailable
		},
	}

	uc := face.New(&mockFetcher{images: map[string][]byte{"https://example.com/a.jpg": encodePNG(t, 2, 2, color.Black)}}, gallery, matcher)
	result, err := uc.Find(context.Background(), "https://example.com/a.jpg")
	gt.NoError(t, err)
	gt.True(t, result.IsFailure())
	gt.True(t, errors.Is(result.Cause, adapter.ErrMatcherUnavailable))
}

func TestFindRequiresURL(t *testing.T) {
	uc := face.New(&mockFetcher{}, newGallery(t), &mockMatcher{})
	_, err := uc.Find(context.Background(), " ")
	gt.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestAddTwiceKeepsLatest(t *testing.T) {
	gallery := newGallery(t)
	fetcher := &mockFetcher{images: map[string][]byte{
		"https://example.com/old.png": encodePNG(t, 8, 8, color.White),
		"https://example.com/new.png": encodePNG(t, 16, 12, color.Black),
	}}
	uc := face.New(fetcher, gallery, &mockMatcher{})
	ctx := context.Background()

	result, err := uc.Add(ctx, "https://example.com/old.png", "JP")
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())
	gt.Equal(t, result.Payload["message"], any("Face saved as JP"))

	result, err = uc.Add(ctx, "https://example.com/new.png", "JP")
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())

	keys, err := gallery.List(ctx, "")
	gt.NoError(t, err)
	gt.Equal(t, keys, []string{"JP.jpg"})

	r, err := gallery.Get(ctx, "JP.jpg")
	gt.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	gt.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	gt.NoError(t, err)
	gt.Equal(t, cfg.Width, 16)
	gt.Equal(t, cfg.Height, 12)
}

func TestAddFailures(t *testing.T) {
	fetcher := &mockFetcher{images: map[string][]byte{
		"https://example.com/text.txt": []byte("not an image"),
	}}
	uc := face.New(fetcher, newGallery(t), &mockMatcher{})
	ctx := context.Background()

	t.Run("download failure is a failure", func(t *testing.T) {
		result, err := uc.Add(ctx, "https://example.com/missing.jpg", "JP")
		gt.NoError(t, err)
		gt.True(t, result.IsFailure())
		gt.Equal(t, result.Message, "Failed to download image")
		gt.True(t, errors.Is(result.Cause, model.ErrImageUnavailable))
	})

	t.Run("undecodable image", func(t *testing.T) {
		result, err := uc.Add(ctx, "https://example.com/text.txt", "JP")
		gt.NoError(t, err)
		gt.True(t, result.IsFailure())
		gt.True(t, errors.Is(result.Cause, model.ErrImageUnavailable))
	})

	t.Run("invalid identity", func(t *testing.T) {
		for _, identity := range []string{"", "..", "../etc/passwd", `a\b`} {
			_, err := uc.Add(ctx, "https://example.com/text.txt", identity)
			gt.True(t, errors.Is(err, model.ErrInvalidArgument))
		}
	})
}
