package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-Id"

// requestLogger tags each request with an ID and attaches a request scoped logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := logging.Default().With("request_id", id)
		ctx := logging.With(r.Context(), logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"code", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(started),
		)
	})
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logging.From(r.Context()).Warn("request limited", "path", r.URL.Path)
				writeJSON(w, http.StatusTooManyRequests, errorResponse{
					Status:  model.StatusError,
					Message: "Too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
