package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/usecase/dispatch"
	"golang.org/x/time/rate"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Server is the HTTP surface of the dispatcher
type Server struct {
	dispatcher *dispatch.UseCase
	mcp        http.Handler
	limiter    *rate.Limiter
	router     chi.Router
}

// Option configures Server
type Option func(*Server)

// WithMCP mounts an MCP streamable HTTP handler at /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithRateLimit admits reqPerSec requests per second with the given burst. Requests over
// the limit are answered with 429.
func WithRateLimit(reqPerSec float64, burst int) Option {
	return func(s *Server) {
		if reqPerSec <= 0 {
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/reqPerSec)), burst)
	}
}

// New builds the router
func New(dispatcher *dispatch.UseCase, opts ...Option) *Server {
	s := &Server{dispatcher: dispatcher}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(rateLimit(s.limiter))
		}

		r.Post("/query", s.handleQuery)
		r.Post("/recognize_face", s.handleIntent(model.IntentRecognizeFace, renderMatches))
		r.Post("/extract_text", s.handleIntent(model.IntentExtractText, renderTextLines))
		r.Post("/save_face", s.handleIntent(model.IntentSaveFace, renderResult))
		r.Post("/save_screenshot", s.handleIntent(model.IntentSaveScreenshot, renderResult))
		r.Post("/describe_scene", s.handleIntent(model.IntentDescribeScene, renderResult))
		r.Post("/daily_recap", s.handleIntent(model.IntentDailyRecap, renderResult))

		if s.mcp != nil {
			r.Handle("/mcp", s.mcp)
		}
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
