package intent_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func newTestGemini(t *testing.T) adapter.Gemini {
	t.Helper()

	apiKey := os.Getenv("TEST_GEMINI_API_KEY")
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if apiKey == "" && projectID == "" {
		t.Skip("TEST_GEMINI_API_KEY or TEST_GEMINI_PROJECT is not set")
	}

	opt := adapter.WithAPIKey(apiKey)
	if apiKey == "" {
		opt = adapter.WithVertexAI(projectID, "us-central1")
	}

	gemini, err := adapter.NewGemini(context.Background(), opt)
	gt.NoError(t, err)
	return gemini
}
