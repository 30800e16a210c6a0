package intent

import (
	"context"
	"strings"

	"github.com/m-mizutani/glimpse/pkg/adapter"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const systemPrompt = `You route requests coming from a pair of smart glasses to exactly one function.
Pick the single function that matches the request and copy argument values (such as image URLs and names) verbatim from the request.
If no function matches, answer with plain text and do not call any function.`

// Resolver maps a natural-language query to one intent of the catalog
type Resolver struct {
	gemini  adapter.Gemini
	catalog *Catalog
}

// New creates a resolver classifying with gemini over catalog
func New(gemini adapter.Gemini, catalog *Catalog) *Resolver {
	return &Resolver{
		gemini:  gemini,
		catalog: catalog,
	}
}

// Catalog returns the intent catalog used by the resolver
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// generateConfig pins sampling so identical queries resolve to identical intents
func (r *Resolver) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Temperature:       genai.Ptr[float32](0),
		TopP:              genai.Ptr[float32](0.95),
		TopK:              genai.Ptr[float32](40),
		Tools:             []*genai.Tool{r.catalog.Tool()},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		},
	}
}

// Resolve classifies query. A query that maps to no intent, to several intents, to an
// unknown function or to arguments violating the intent schema returns
// model.ErrUnsupportedFunction. Classifier errors are returned as is.
func (r *Resolver) Resolve(ctx context.Context, query string) (*model.ResolvedCall, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "query is required")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(query, genai.RoleUser),
	}

	resp, err := r.gemini.GenerateContent(ctx, contents, r.generateConfig())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to classify query")
	}

	calls := adapter.FunctionCalls(resp)
	switch len(calls) {
	case 0:
		return nil, goerr.Wrap(model.ErrUnsupportedFunction, "no function matched the query",
			goerr.V("query", query),
			goerr.V("reply", adapter.ResponseText(resp)))
	case 1:
	default:
		names := make([]string, 0, len(calls))
		for _, c := range calls {
			names = append(names, c.Name)
		}
		return nil, goerr.Wrap(model.ErrUnsupportedFunction, "query matched more than one function",
			goerr.V("query", query),
			goerr.V("functions", names))
	}

	call := calls[0]
	def, ok := r.catalog.Lookup(call.Name)
	if !ok {
		return nil, goerr.Wrap(model.ErrUnsupportedFunction, "classifier returned an unknown function",
			goerr.V("name", call.Name))
	}

	args := model.Arguments{}
	for k, v := range call.Args {
		args[k] = v
	}
	if err := def.Validate(args); err != nil {
		return nil, goerr.Wrap(model.ErrUnsupportedFunction, "resolved arguments are incomplete",
			goerr.V("name", call.Name),
			goerr.V("reason", err.Error()))
	}

	logging.From(ctx).Debug("query resolved", "intent", def.Intent, "args", args)

	return &model.ResolvedCall{
		Intent:    def.Intent,
		Arguments: args,
	}, nil
}
