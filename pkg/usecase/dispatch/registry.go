package dispatch

import (
	"context"

	"github.com/m-mizutani/glimpse/pkg/model"
)

// Handler runs one intent with schema-valid arguments
type Handler func(ctx context.Context, args model.Arguments) (*model.Result, error)

// FaceService identifies and registers faces
type FaceService interface {
	Find(ctx context.Context, imageURL string) (*model.Result, error)
	Add(ctx context.Context, imageURL, identity string) (*model.Result, error)
}

// TextService reads text from images
type TextService interface {
	Extract(ctx context.Context, imageURL string) (*model.Result, error)
}

// SceneService saves, describes and recaps scenes
type SceneService interface {
	Save(ctx context.Context, imageURL string) (*model.Result, error)
	Describe(ctx context.Context, imageURL string) (*model.Result, error)
	Recap(ctx context.Context, date string) (*model.Result, error)
}

// Option registers handlers on the dispatcher
type Option func(handlers map[model.Intent]Handler)

// WithHandler registers h for intent, replacing any previous handler
func WithHandler(intent model.Intent, h Handler) Option {
	return func(handlers map[model.Intent]Handler) {
		handlers[intent] = h
	}
}

// WithFace registers recognize_face and save_face
func WithFace(svc FaceService) Option {
	return func(handlers map[model.Intent]Handler) {
		handlers[model.IntentRecognizeFace] = func(ctx context.Context, args model.Arguments) (*model.Result, error) {
			return svc.Find(ctx, args.String("image_url"))
		}
		handlers[model.IntentSaveFace] = func(ctx context.Context, args model.Arguments) (*model.Result, error) {
			return svc.Add(ctx, args.String("image_url"), args.String("identity"))
		}
	}
}

// WithText registers extract_text
func WithText(svc TextService) Option {
	return func(handlers map[model.Intent]Handler) {
		handlers[model.IntentExtractText] = func(ctx context.Context, args model.Arguments) (*model.Result, error) {
			return svc.Extract(ctx, args.String("image_url"))
		}
	}
}

// WithScene registers save_screenshot, describe_scene and daily_recap
func WithScene(svc SceneService) Option {
	return func(handlers map[model.Intent]Handler) {
		handlers[model.IntentSaveScreenshot] = func(ctx context.Context, args model.Arguments) (*model.Result, error) {
			return svc.Save(ctx, args.String("image_url"))
		}
		handlers[model.IntentDescribeScene] = func(ctx context.Context, args model.Arguments) (*model.Result, error) {
			return svc.Describe(ctx, args.String("image_url"))
		}
		handlers[model.IntentDailyRecap] = func(ctx context.Context, args model.Arguments) (*model.Result, error) {
			return svc.Recap(ctx, args.String("date"))
		}
	}
}
