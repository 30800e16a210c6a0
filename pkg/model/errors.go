package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrUnsupportedFunction is returned when a query resolves to no supported intent
	ErrUnsupportedFunction = goerr.New("unsupported function")

	// ErrInvalidArgument is returned for missing or malformed request arguments
	ErrInvalidArgument = goerr.New("invalid argument")

	// ErrRateLimited is returned by the generator adapter when the backend throttles us
	ErrRateLimited = goerr.New("rate limited")

	// ErrImageUnavailable is returned when an image cannot be downloaded or decoded
	ErrImageUnavailable = goerr.New("image unavailable")
)

// FailureError escalates a Failure result out of dispatch
type FailureError struct {
	Function Intent
	Message  string
	Cause    error
}

// NewFailureError converts a failure result to an error
func NewFailureError(intent Intent, result *Result) *FailureError {
	return &FailureError{
		Function: intent,
		Message:  result.Message,
		Cause:    result.Cause,
	}
}

func (x *FailureError) Error() string {
	return x.Message
}

func (x *FailureError) Unwrap() error {
	return x.Cause
}
