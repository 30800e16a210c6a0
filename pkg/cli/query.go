package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/service/mcp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// querier answers a natural-language request with the envelope JSON
type querier func(ctx context.Context, query string) (json.RawMessage, error)

func queryCommand() *cli.Command {
	var (
		cfg    config
		remote string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "remote",
			Aliases:     []string{"r"},
			Usage:       "MCP endpoint of a running glimpse server (runs in-process when empty)",
			Sources:     cli.EnvVars("GLIMPSE_REMOTE"),
			Destination: &remote,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:      "query",
		Usage:     "Answer one natural-language request and print the response envelope",
		ArgsUsage: "<request>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("request is required")
			}

			q, closer, err := cfg.newQuerier(ctx, remote)
			if err != nil {
				return err
			}
			defer closer()

			raw, err := q(ctx, query)
			if err != nil {
				return err
			}
			return printEnvelope(c.Root().Writer, raw)
		},
	}
}

// newQuerier answers through a remote MCP server when remote is set, otherwise through
// an in-process dispatcher
func (cfg *config) newQuerier(ctx context.Context, remote string) (querier, func(), error) {
	if remote != "" {
		client, err := mcp.Dial(ctx, mcp.ServerConfig{Transport: "http", URL: remote})
		if err != nil {
			return nil, nil, err
		}
		return client.Query, func() { _ = client.Close() }, nil
	}

	uc, err := cfg.newDispatcher(ctx)
	if err != nil {
		return nil, nil, err
	}
	return func(ctx context.Context, query string) (json.RawMessage, error) {
		env, err := uc.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		return encodeEnvelope(env)
	}, func() {}, nil
}

func encodeEnvelope(env *model.Envelope) (json.RawMessage, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode envelope")
	}
	return raw, nil
}

func printEnvelope(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return goerr.Wrap(err, "failed to format envelope")
	}
	buf.WriteByte('\n')
	if _, err := buf.WriteTo(w); err != nil {
		return goerr.Wrap(err, "failed to write envelope")
	}
	return nil
}
