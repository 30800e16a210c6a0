package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type queryRequest struct {
	Query string `json:"query"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	env, err := s.dispatcher.Query(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// renderer shapes an envelope into the body of a per-intent endpoint
type renderer func(env *model.Envelope) any

func (s *Server) handleIntent(intent model.Intent, render renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args := model.Arguments{}
		if err := decodeBody(w, r, &args); err != nil {
			writeError(w, r, err)
			return
		}

		env, err := s.dispatcher.Dispatch(r.Context(), &model.ResolvedCall{
			Intent:    intent,
			Arguments: args,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, render(env))
	}
}

func renderResult(env *model.Envelope) any {
	return env.Result
}

func renderMatches(env *model.Envelope) any {
	matches, ok := env.Result.Fields["matches"]
	if !ok {
		matches = []model.FaceMatch{}
	}
	return map[string]any{"matches": matches}
}

func renderTextLines(env *model.Envelope) any {
	lines, ok := env.Result.Fields["lines"]
	if !ok {
		lines = []string{}
	}
	return map[string]any{"text_lines": lines}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return goerr.Wrap(model.ErrInvalidArgument, "request body is empty")
		}
		return goerr.Wrap(model.ErrInvalidArgument, "invalid request body", goerr.V("reason", err.Error()))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Default().Error("failed to encode response", "error", err)
	}
}
