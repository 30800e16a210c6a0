package server

import (
	"errors"
	"net/http"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
)

type errorResponse struct {
	Status  model.Status `json:"status"`
	Message string       `json:"message"`
}

// statusOf maps an error to an HTTP status and the message shown to the caller
func statusOf(err error) (int, string) {
	var failure *model.FailureError

	switch {
	case errors.Is(err, model.ErrUnsupportedFunction):
		return http.StatusBadRequest, "Unsupported function"
	case errors.As(err, &failure):
		if errors.Is(err, model.ErrImageUnavailable) {
			return http.StatusBadGateway, failure.Message
		}
		return http.StatusInternalServerError, failure.Message
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limited, try again later"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusOf(err)

	logger := logging.From(r.Context())
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "code", code)
	} else {
		logger.Warn("request rejected", "error", err, "code", code)
	}

	writeJSON(w, code, errorResponse{Status: model.StatusError, Message: msg})
}
