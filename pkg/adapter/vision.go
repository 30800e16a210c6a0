package adapter

import (
	"context"
	"encoding/base64"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// OCR recognizes text in an image
type OCR interface {
	// DetectText returns the full recognized text in reading order, or "" if the image
	// has no text
	DetectText(ctx context.Context, image []byte) (string, error)
}

type visionClient struct {
	svc *vision.Service
}

// NewVision creates an OCR client backed by Cloud Vision TEXT_DETECTION. With an empty
// apiKey, Application Default Credentials are used.
func NewVision(ctx context.Context, apiKey string) (OCR, error) {
	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create vision client")
	}
	return &visionClient{svc: svc}, nil
}

func (v *visionClient) DetectText(ctx context.Context, image []byte) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image: &vision.Image{
					Content: base64.StdEncoding.EncodeToString(image),
				},
				Features: []*vision.Feature{
					{Type: "TEXT_DETECTION"},
				},
			},
		},
	}

	resp, err := v.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", goerr.Wrap(err, "failed to annotate image")
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return "", goerr.New("vision returned an error",
			goerr.V("code", r.Error.Code),
			goerr.V("message", r.Error.Message))
	}

	// The first annotation holds the whole detected text; the rest are single words
	if len(r.TextAnnotations) == 0 {
		return "", nil
	}
	return r.TextAnnotations[0].Description, nil
}
