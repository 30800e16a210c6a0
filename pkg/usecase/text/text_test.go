package text_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/usecase/text"
	"github.com/m-mizutani/gt"
)

type mockFetcher struct {
	data []byte
	err  error
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return m.data, m.err
}

type mockOCR struct {
	text string
	err  error
}

func (m *mockOCR) DetectText(ctx context.Context, image []byte) (string, error) {
	return m.text, m.err
}

func TestExtract(t *testing.T) {
	uc := text.New(&mockFetcher{data: []byte{1}}, &mockOCR{
		text: "  EXIT \n\n Platform 3\r\n  \nTrains to Kyoto\n",
	})

	result, err := uc.Extract(context.Background(), "https://example.com/sign.jpg")
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())
	gt.Equal(t, result.Payload["lines"], any([]string{"EXIT", "Platform 3", "Trains to Kyoto"}))
}

func TestExtractNoText(t *testing.T) {
	uc := text.New(&mockFetcher{data: []byte{1}}, &mockOCR{})

	result, err := uc.Extract(context.Background(), "https://example.com/wall.jpg")
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())
	gt.A(t, result.Payload["lines"].([]string)).Length(0)
}

func TestExtractDownloadFailure(t *testing.T) {
	uc := text.New(&mockFetcher{err: model.ErrImageUnavailable}, &mockOCR{})

	result, err := uc.Extract(context.Background(), "https://example.com/missing.jpg")
	gt.NoError(t, err)
	gt.True(t, result.IsNotFound())
}

func TestExtractOCRFailure(t *testing.T) {
	ocrErr := errors.New("quota exceeded")
	uc := text.New(&mockFetcher{data: []byte{1}}, &mockOCR{err: ocrErr})

	result, err := uc.Extract(context.Background(), "https://example.com/sign.jpg")
	gt.NoError(t, err)
	gt.True(t, result.IsFailure())
	gt.True(t, errors.Is(result.Cause, ocrErr))
}

func TestExtractRequiresURL(t *testing.T) {
	uc := text.New(&mockFetcher{}, &mockOCR{})
	_, err := uc.Extract(context.Background(), "")
	gt.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestExtractWithVision(t *testing.T) {
	apiKey := os.Getenv("TEST_VISION_API_KEY")
	imageURL := os.Getenv("TEST_VISION_IMAGE_URL")
	if apiKey == "" || imageURL == "" {
		t.Skip("TEST_VISION_API_KEY or TEST_VISION_IMAGE_URL is not set")
	}

	ctx := context.Background()
	ocr, err := adapter.NewVision(ctx, apiKey)
	gt.NoError(t, err)

	uc := text.New(adapter.NewFetcher(), ocr)
	result, err := uc.Extract(ctx, imageURL)
	gt.NoError(t, err)
	gt.True(t, result.IsSuccess())
	gt.A(t, result.Payload["lines"].([]string)).Longer(0)
}
