package text

import (
	"context"
	"strings"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase reads text from images
type UseCase struct {
	fetcher adapter.Fetcher
	ocr     adapter.OCR
}

// New creates a text extraction use case
func New(fetcher adapter.Fetcher, ocr adapter.OCR) *UseCase {
	return &UseCase{
		fetcher: fetcher,
		ocr:     ocr,
	}
}

// Extract returns the lines of text found in the image at imageURL in reading order.
// An image without text is a success with no lines.
func (u *UseCase) Extract(ctx context.Context, imageURL string) (*model.Result, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "image_url is required")
	}

	data, err := u.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		logging.From(ctx).Warn("failed to download image for OCR", "url", imageURL, "error", err)
		return model.NotFound("Could not download image"), nil
	}

	fullText, err := u.ocr.DetectText(ctx, data)
	if err != nil {
		return model.Failure("Text detection failed", err), nil
	}

	lines := SplitLines(fullText)
	logging.From(ctx).Debug("text extracted", "lines", len(lines))

	return model.Success(model.Payload{"lines": lines}), nil
}

// SplitLines splits OCR output into trimmed, non-empty lines
func SplitLines(s string) []string {
	lines := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
