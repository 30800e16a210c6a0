package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/usecase/dispatch"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// QueryTool is the name of the natural-language entry point
const QueryTool = "query"

type queryParams struct {
	Query string `json:"query" jsonschema:"Natural-language request, including any image URL it refers to"`
}

// NewServer exposes the dispatcher as MCP tools: query plus one tool per intent. Each
// tool answers with the response envelope as JSON text; failures are tool errors.
func NewServer(uc *dispatch.UseCase, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "glimpse",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        QueryTool,
		Description: "Answer a request from the smart glasses by routing it to the matching perception function",
	}, func(ctx context.Context, req *mcp.CallToolRequest, params *queryParams) (*mcp.CallToolResult, any, error) {
		env, err := uc.Query(ctx, params.Query)
		return toolResult(ctx, QueryTool, env, err), nil, nil
	})

	for _, def := range uc.Catalog().Definitions() {
		intent := def.Intent
		server.AddTool(&mcp.Tool{
			Name:        intent.String(),
			Description: def.Description,
			InputSchema: def.Parameters,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := model.Arguments{}
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					err = goerr.Wrap(model.ErrInvalidArgument, "arguments must be a JSON object", goerr.V("reason", err.Error()))
					return toolResult(ctx, intent.String(), nil, err), nil
				}
			}

			env, err := uc.Dispatch(ctx, &model.ResolvedCall{Intent: intent, Arguments: args})
			return toolResult(ctx, intent.String(), env, err), nil
		})
	}

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport
func NewHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func toolResult(ctx context.Context, tool string, env *model.Envelope, err error) *mcp.CallToolResult {
	if err != nil {
		logging.From(ctx).Warn("tool call failed", "tool", tool, "error", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: errorMessage(err)}},
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "failed to encode response"}},
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}
}

func errorMessage(err error) string {
	var failure *model.FailureError
	switch {
	case errors.Is(err, model.ErrUnsupportedFunction):
		return "Unsupported function"
	case errors.As(err, &failure):
		return failure.Message
	default:
		return err.Error()
	}
}
