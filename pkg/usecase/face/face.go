package face

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"path"
	"sort"
	"strings"

	// decoders accepted for uploaded faces
	_ "image/gif"
	_ "image/png"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	msgNoMatch      = "No matching faces found in the database"
	msgEmptyGallery = "No faces registered in the database"
	msgUnavailable  = "Could not download image"
	jpegQuality     = 95
)

// UseCase identifies faces against the reference gallery and registers new ones
type UseCase struct {
	fetcher adapter.Fetcher
	gallery adapter.Storage
	matcher adapter.FaceMatcher
}

// New creates a face use case. gallery holds one <identity>.jpg object per person.
func New(fetcher adapter.Fetcher, gallery adapter.Storage, matcher adapter.FaceMatcher) *UseCase {
	return &UseCase{
		fetcher: fetcher,
		gallery: gallery,
		matcher: matcher,
	}
}

// Find matches the faces in the image at imageURL against the gallery. The returned
// error is set only for invalid arguments; every other outcome is a result.
func (u *UseCase) Find(ctx context.Context, imageURL string) (*model.Result, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "image_url is required")
	}
	logger := logging.From(ctx)

	probe, err := u.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		logger.Warn("failed to download probe image", "url", imageURL, "error", err)
		return model.NotFound(msgUnavailable), nil
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(probe)); err != nil {
		logger.Warn("probe image is not decodable", "url", imageURL, "error", err)
		return model.NotFound(msgUnavailable), nil
	}

	gallery, err := u.loadGallery(ctx)
	if err != nil {
		return model.Failure("Failed to load face gallery", err), nil
	}
	if len(gallery) == 0 {
		return model.NotFound(msgEmptyGallery), nil
	}

	clusters, err := u.matcher.Find(ctx, probe, gallery)
	if err != nil {
		return model.Failure("Face matching failed", err), nil
	}

	matches := make([]model.FaceMatch, 0, len(clusters))
	for _, candidates := range clusters {
		best, ok := bestCandidate(candidates)
		if !ok {
			continue
		}
		matches = append(matches, model.FaceMatch{
			Identity:   model.IdentityFromPath(best.Path),
			Confidence: model.ConfidenceFromDistance(best.Distance),
			SourcePath: u.gallery.Locate(path.Base(best.Path)),
		})
	}

	if len(matches) == 0 {
		return model.NotFound(msgNoMatch), nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	logger.Debug("faces matched", "count", len(matches), "gallery", len(gallery))

	return model.Success(model.Payload{
		"matches": matches,
		"message": fmt.Sprintf("Found %d potential matches", len(matches)),
	}), nil
}

func bestCandidate(candidates []adapter.FaceCandidate) (adapter.FaceCandidate, bool) {
	if len(candidates) == 0 {
		return adapter.FaceCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance < best.Distance {
			best = c
		}
	}
	return best, true
}

func (u *UseCase) loadGallery(ctx context.Context) ([]adapter.GalleryFace, error) {
	keys, err := u.gallery.List(ctx, "")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list gallery")
	}

	var faces []adapter.GalleryFace
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jpg") {
			continue
		}
		data, err := readObject(ctx, u.gallery, key)
		if err != nil {
			return nil, err
		}
		faces = append(faces, adapter.GalleryFace{Path: key, Image: data})
	}
	return faces, nil
}

// Add stores the image at imageURL as the reference face of identity, replacing any
// previous one.
func (u *UseCase) Add(ctx context.Context, imageURL, identity string) (*model.Result, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "image_url is required")
	}
	id, err := model.NewIdentity(identity)
	if err != nil {
		return nil, err
	}

	data, err := u.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return model.Failure("Failed to download image", err), nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.Failure("Failed to decode image",
			goerr.Wrap(model.ErrImageUnavailable, "image is not decodable", goerr.V("url", imageURL), goerr.V("reason", err.Error()))), nil
	}

	if err := u.store(ctx, id, img); err != nil {
		return model.Failure("Failed to save face", err), nil
	}

	logging.From(ctx).Info("face saved", "identity", id, "source_format", format)

	return model.Success(model.Payload{
		"message": fmt.Sprintf("Face saved as %s", id),
	}), nil
}

func (u *UseCase) store(ctx context.Context, id model.Identity, img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return goerr.Wrap(err, "failed to encode face", goerr.V("identity", id))
	}

	w, err := u.gallery.Put(ctx, id.Key())
	if err != nil {
		return goerr.Wrap(err, "failed to open gallery object", goerr.V("identity", id))
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write face", goerr.V("identity", id))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to write face", goerr.V("identity", id))
	}
	return nil
}

func readObject(ctx context.Context, store adapter.Storage, key string) ([]byte, error) {
	r, err := store.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open object", goerr.V("key", key))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object", goerr.V("key", key))
	}
	return data, nil
}
