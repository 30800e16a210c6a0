package cli

import (
	"context"

	"github.com/m-mizutani/glimpse/pkg/service/mcp"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the perception tools over MCP on stdio",
		Flags: allFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := cfg.newDispatcher(ctx)
			if err != nil {
				return err
			}

			logging.From(ctx).Info("serving MCP on stdio")
			if err := mcp.NewServer(uc, Version).Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
				return goerr.Wrap(err, "MCP server stopped")
			}
			return nil
		},
	}
}
