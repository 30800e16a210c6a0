package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string

	apiKey   string
	project  string
	location string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

// WithAPIKey switches the client to the Gemini API backend instead of Vertex AI
func WithAPIKey(apiKey string) GeminiOption {
	return func(g *GeminiClient) {
		g.apiKey = apiKey
	}
}

// WithVertexAI selects the Vertex AI backend for the given project and location
func WithVertexAI(projectID, location string) GeminiOption {
	return func(g *GeminiClient) {
		g.project = projectID
		g.location = location
	}
}

func NewGemini(ctx context.Context, opts ...GeminiOption) (*GeminiClient, error) {
	g := &GeminiClient{
		generativeModel: "gemini-2.5-flash",
	}
	for _, opt := range opts {
		opt(g)
	}

	cfg := &genai.ClientConfig{}
	switch {
	case g.apiKey != "":
		cfg.APIKey = g.apiKey
		cfg.Backend = genai.BackendGeminiAPI
	case g.project != "":
		cfg.Project = g.project
		cfg.Location = g.location
		cfg.Backend = genai.BackendVertexAI
	default:
		return nil, goerr.New("either API key or Vertex AI project is required for Gemini")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	g.client = client

	return g, nil
}

// GenerateContent calls the model. Throttling responses are reported as
// model.ErrRateLimited so callers can branch on the error kind.
func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		if IsRateLimitError(err) {
			return nil, goerr.Wrap(model.ErrRateLimited, "gemini throttled the request",
				goerr.V("model", g.generativeModel),
				goerr.V("error", err.Error()))
		}
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}
	return resp, nil
}

// IsRateLimitError checks if the error is a Gemini quota or throttling error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return isRateLimitAPIError(&apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return isRateLimitAPIError(apiErrPtr)
	}
	return false
}

func isRateLimitAPIError(apiErr *genai.APIError) bool {
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
}

// ResponseText joins the text parts of the first candidate
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// FunctionCalls returns every function call in the first candidate
func FunctionCalls(resp *genai.GenerateContentResponse) []*genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []*genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}
