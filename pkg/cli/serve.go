package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/glimpse/pkg/server"
	"github.com/m-mizutani/glimpse/pkg/service/mcp"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg       config
		addr      string
		rateLimit float64
		burst     int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("GLIMPSE_ADDR"),
			Destination: &addr,
		},
		&cli.FloatFlag{
			Name:        "rate-limit",
			Usage:       "Requests per second admitted by the API (0 disables limiting)",
			Value:       5,
			Sources:     cli.EnvVars("GLIMPSE_RATE_LIMIT"),
			Destination: &rateLimit,
		},
		&cli.IntFlag{
			Name:        "rate-burst",
			Usage:       "Burst size of the request limiter",
			Value:       10,
			Sources:     cli.EnvVars("GLIMPSE_RATE_BURST"),
			Destination: &burst,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and the MCP endpoint",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := cfg.newDispatcher(ctx)
			if err != nil {
				return err
			}

			handler := server.New(uc,
				server.WithMCP(mcp.NewHTTPHandler(mcp.NewServer(uc, Version))),
				server.WithRateLimit(rateLimit, int(burst)),
			)

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("starting server", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "server stopped", goerr.V("addr", addr))
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logging.From(ctx).Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down server")
			}
			return nil
		},
	}
}
