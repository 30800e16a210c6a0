package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/urfave/cli/v3"
)

func recapCommand() *cli.Command {
	var (
		cfg  config
		date string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "date",
			Aliases:     []string{"d"},
			Usage:       "Day to recap as YYYYMMDD (today when empty)",
			Destination: &date,
		},
	}
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, recapFlags(&cfg)...)

	return &cli.Command{
		Name:  "recap",
		Usage: "Summarize the scenes saved on one day",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newSceneUseCase(ctx, gemini)
			if err != nil {
				return err
			}

			result, err := uc.Recap(ctx, date)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			switch result.Status {
			case model.StatusSuccess:
				scenes, _ := result.Payload["scenes_used"].([]string)
				fmt.Fprintf(w, "%s\n\n(%d scenes: %s)\n", result.Payload["description"], len(scenes), strings.Join(scenes, ", "))
				return nil
			case model.StatusNotFound:
				fmt.Fprintln(w, result.Message)
				return nil
			default:
				return model.NewFailureError(model.IntentDailyRecap, result)
			}
		},
	}
}
