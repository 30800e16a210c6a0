package dispatch

import (
	"context"
	"time"

	"github.com/m-mizutani/glimpse/pkg/intent"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Resolver classifies a natural-language query
type Resolver interface {
	Resolve(ctx context.Context, query string) (*model.ResolvedCall, error)
}

// UseCase routes resolved calls to capability handlers and wraps their results
type UseCase struct {
	resolver Resolver
	catalog  *intent.Catalog
	handlers map[model.Intent]Handler
}

// New builds a dispatcher. Every intent of the catalog must have a handler.
func New(resolver Resolver, catalog *intent.Catalog, opts ...Option) (*UseCase, error) {
	handlers := make(map[model.Intent]Handler)
	for _, opt := range opts {
		opt(handlers)
	}

	var missing []model.Intent
	for _, def := range catalog.Definitions() {
		if _, ok := handlers[def.Intent]; !ok {
			missing = append(missing, def.Intent)
		}
	}
	if len(missing) > 0 {
		return nil, goerr.New("intents have no handler", goerr.V("intents", missing))
	}

	return &UseCase{
		resolver: resolver,
		catalog:  catalog,
		handlers: handlers,
	}, nil
}

// Query resolves query and dispatches the resulting call. A query that matches no
// intent returns model.ErrUnsupportedFunction without running any handler.
func (u *UseCase) Query(ctx context.Context, query string) (*model.Envelope, error) {
	call, err := u.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	return u.Dispatch(ctx, call)
}

// Dispatch runs the handler of call. Success and not-found outcomes are returned as an
// envelope; a failure is returned as *model.FailureError.
func (u *UseCase) Dispatch(ctx context.Context, call *model.ResolvedCall) (*model.Envelope, error) {
	def, ok := u.catalog.Lookup(string(call.Intent))
	if !ok {
		return nil, goerr.Wrap(model.ErrUnsupportedFunction, "intent is not in catalog", goerr.V("intent", call.Intent))
	}
	handler := u.handlers[def.Intent]

	if err := def.Validate(call.Arguments); err != nil {
		return nil, err
	}

	logger := logging.From(ctx).With("function", def.Intent)
	started := time.Now()

	result, err := handler(ctx, call.Arguments)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run handler", goerr.V("function", def.Intent))
	}

	if result.IsFailure() {
		logger.Error("capability failed", "message", result.Message, "error", result.Cause, "elapsed", time.Since(started))
		return nil, model.NewFailureError(def.Intent, result)
	}

	logger.Info("capability finished", "status", result.Status, "elapsed", time.Since(started))
	return model.NewEnvelope(def.Intent, result), nil
}

// Catalog returns the intent catalog the dispatcher validates against
func (u *UseCase) Catalog() *intent.Catalog {
	return u.catalog
}
