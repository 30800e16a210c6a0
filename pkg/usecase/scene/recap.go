package scene

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	pointOfViewPrompt = `This photo was taken by the smart glasses you are wearing. ` +
		`Describe what you were doing and seeing from your own point of view, ` +
		`speaking to the wearer as "you" and "your".`

	summaryPrompt = "Here are several scenes from the same day. Please provide a comprehensive " +
		"description of what happened throughout the day based on these scenes:\n"
)

// Recap describes every scene saved on date (YYYYMMDD, today when empty) one at a time,
// then summarizes them into a narrative of the day. A rate limited generation is retried
// once after the backoff with the plain description prompt; any other failure discards
// the recap.
func (u *UseCase) Recap(ctx context.Context, date string) (*model.Result, error) {
	day := model.SceneDateOf(u.now())
	if date != "" {
		parsed, err := model.ParseSceneDate(date)
		if err != nil {
			return nil, err
		}
		day = parsed
	}

	keys, err := u.scenes.List(ctx, day.Prefix())
	if err != nil {
		return model.Failure("Failed to list scenes", err), nil
	}
	keys = filterScenes(keys)
	if len(keys) == 0 {
		return model.NotFound(fmt.Sprintf("No scenes found for %s", day)), nil
	}

	logger := logging.From(ctx).With("date", day)
	logger.Info("starting recap", "scenes", len(keys))

	var b strings.Builder
	b.WriteString(summaryPrompt)

	for i, key := range keys {
		if i > 0 {
			if err := u.sleep(ctx, u.interval); err != nil {
				return model.Failure("Recap was interrupted", goerr.Wrap(err, "interrupted between scenes")), nil
			}
		}

		description, err := u.describeStored(ctx, key)
		if err != nil {
			logger.Warn("recap aborted", "scene", key, "error", err)
			return model.Failure(fmt.Sprintf("Failed to describe scene %s", key), err), nil
		}
		logger.Debug("scene described", "scene", key, "index", i)

		fmt.Fprintf(&b, "Scene %d (%s): %s\n", i+1, model.SceneID(key).Timestamp(), description)
	}

	summary, err := u.generateWithRetry(ctx, b.String(), b.String(), nil)
	if err != nil {
		logger.Warn("recap aborted", "stage", "summary", "error", err)
		return model.Failure("Failed to summarize the day", err), nil
	}

	return model.Success(model.Payload{
		"description": summary,
		"source":      "daily_recap",
		"scenes_used": keys,
	}), nil
}

func (u *UseCase) describeStored(ctx context.Context, key string) (string, error) {
	r, err := u.scenes.Get(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open scene", goerr.V("key", key))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read scene", goerr.V("key", key))
	}

	return u.generateWithRetry(ctx, pointOfViewPrompt, describePrompt, data)
}

// generateWithRetry retries a rate limited call exactly once with retryPrompt
func (u *UseCase) generateWithRetry(ctx context.Context, prompt, retryPrompt string, image []byte) (string, error) {
	text, err := u.generate(ctx, prompt, image)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, model.ErrRateLimited) {
		return "", err
	}

	logging.From(ctx).Warn("generation rate limited, backing off", "backoff", u.backoff)
	if err := u.sleep(ctx, u.backoff); err != nil {
		return "", goerr.Wrap(err, "interrupted during backoff")
	}

	text, err = u.generate(ctx, retryPrompt, image)
	if err != nil {
		return "", goerr.Wrap(err, "generation failed after retry")
	}
	return text, nil
}

func filterScenes(keys []string) []string {
	scenes := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, ".jpg") {
			scenes = append(scenes, key)
		}
	}
	sort.Strings(scenes)
	return scenes
}
