package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg     config
		remote  string
		history string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "remote",
			Aliases:     []string{"r"},
			Usage:       "MCP endpoint of a running glimpse server (runs in-process when empty)",
			Sources:     cli.EnvVars("GLIMPSE_REMOTE"),
			Destination: &remote,
		},
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "File keeping the prompt history",
			Value:       defaultHistoryFile(),
			Sources:     cli.EnvVars("GLIMPSE_HISTORY_FILE"),
			Destination: &history,
		},
	}
	flags = append(flags, allFlags(&cfg)...)

	return &cli.Command{
		Name:  "ask",
		Usage: "Interactive prompt for natural-language requests",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			q, closer, err := cfg.newQuerier(ctx, remote)
			if err != nil {
				return err
			}
			defer closer()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     history,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start prompt")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Ask about what your glasses see. Type 'exit' to quit.\n")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read prompt")
				}

				line = strings.TrimSpace(line)
				if line == "exit" || line == "quit" {
					break
				}
				if line == "" {
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				sp.Suffix = " thinking..."
				sp.Start()
				raw, err := q(ctx, line)
				sp.Stop()

				if err != nil {
					fmt.Fprintf(w, "error: %s\n", describeError(err))
					continue
				}
				if err := printEnvelope(w, raw); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "glimpse", "history")
}

// describeError renders a query error the way the API reports it
func describeError(err error) string {
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
