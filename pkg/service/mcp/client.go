package mcp

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrToolFailed is returned when the remote tool reports an error
var ErrToolFailed = goerr.New("tool call failed")

// Client talks to a remote glimpse MCP server
type Client struct {
	session *mcp.ClientSession
}

// ServerConfig selects how to reach the server
type ServerConfig struct {
	Transport string // "stdio" or "http"
	Command   []string
	URL       string
}

// Dial connects to the server described by cfg
func Dial(ctx context.Context, cfg ServerConfig) (*Client, error) {
	var transport mcp.Transport

	switch cfg.Transport {
	case "stdio":
		if len(cfg.Command) == 0 {
			return nil, goerr.New("command is required for stdio transport")
		}
		transport = &mcp.CommandTransport{Command: exec.Command(cfg.Command[0], cfg.Command[1:]...)}
	case "http":
		if cfg.URL == "" {
			return nil, goerr.New("url is required for http transport")
		}
		transport = &mcp.StreamableClientTransport{Endpoint: cfg.URL}
	default:
		return nil, goerr.New("unsupported transport",
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}

	return Connect(ctx, transport)
}

// Connect opens a session over an established transport
func Connect(ctx context.Context, transport mcp.Transport) (*Client, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "glimpse-client",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to MCP server")
	}
	return &Client{session: session}, nil
}

// Tools lists the tool names offered by the server
func (c *Client) Tools(ctx context.Context) ([]string, error) {
	resp, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}
	names := make([]string, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// Call invokes tool and returns the envelope JSON it produced
func (c *Client) Call(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool", goerr.V("tool", tool))
	}

	text := contentText(result)
	if result.IsError {
		return nil, goerr.Wrap(ErrToolFailed, text, goerr.V("tool", tool))
	}
	if !json.Valid([]byte(text)) {
		return nil, goerr.New("tool returned non-JSON content", goerr.V("tool", tool), goerr.V("content", text))
	}
	return json.RawMessage(text), nil
}

// Query sends a natural-language request to the query tool
func (c *Client) Query(ctx context.Context, query string) (json.RawMessage, error) {
	return c.Call(ctx, QueryTool, map[string]any{"query": query})
}

// Close ends the session
func (c *Client) Close() error {
	if err := c.session.Close(); err != nil {
		return goerr.Wrap(err, "failed to close session")
	}
	return nil
}

func contentText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
