package model

// Status is the outcome tag of a capability call
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Payload is the set of fields a successful capability call reports
type Payload map[string]any

// Result is the normalized outcome of a capability call. Exactly one of the three
// shapes is produced: Success carries Payload, NotFound and Failure carry Message.
// Failure may also carry the underlying error for logging and status mapping.
type Result struct {
	Status  Status
	Payload Payload
	Message string
	Cause   error
}

// Success builds a successful result
func Success(payload Payload) *Result {
	if payload == nil {
		payload = Payload{}
	}
	return &Result{Status: StatusSuccess, Payload: payload}
}

// NotFound builds a result for an operation that ran but found nothing
func NotFound(message string) *Result {
	return &Result{Status: StatusNotFound, Message: message}
}

// Failure builds a result for an operation that could not run
func Failure(message string, cause error) *Result {
	return &Result{Status: StatusError, Message: message, Cause: cause}
}

func (r *Result) IsSuccess() bool  { return r.Status == StatusSuccess }
func (r *Result) IsNotFound() bool { return r.Status == StatusNotFound }
func (r *Result) IsFailure() bool  { return r.Status == StatusError }

// Fields flattens the result into response fields: status plus either the payload or
// the message.
func (r *Result) Fields() map[string]any {
	fields := map[string]any{"status": r.Status}
	switch r.Status {
	case StatusSuccess:
		for k, v := range r.Payload {
			if k == "status" {
				continue
			}
			fields[k] = v
		}
	default:
		fields["message"] = r.Message
	}
	return fields
}
