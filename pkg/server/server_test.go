package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/glimpse/pkg/intent"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/glimpse/pkg/server"
	"github.com/m-mizutani/glimpse/pkg/usecase/dispatch"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockResolver struct {
	call *model.ResolvedCall
	err  error
}

func (m *mockResolver) Resolve(ctx context.Context, query string) (*model.ResolvedCall, error) {
	return m.call, m.err
}

type mockFace struct {
	found bool
}

func (m *mockFace) Find(ctx context.Context, imageURL string) (*model.Result, error) {
	if !m.found {
		return model.NotFound("No matching faces found in the database"), nil
	}
	return model.Success(model.Payload{
		"matches": []model.FaceMatch{{Identity: "JP", Confidence: 87.3, SourcePath: "faces/JP.jpg"}},
		"message": "Found 1 potential matches",
	}), nil
}

func (m *mockFace) Add(ctx context.Context, imageURL, identity string) (*model.Result, error) {
	return model.Success(model.Payload{"message": "Face saved as " + identity}), nil
}

type mockText struct {
	lines []string
}

func (m *mockText) Extract(ctx context.Context, imageURL string) (*model.Result, error) {
	if m.lines == nil {
		return model.NotFound("Could not download image"), nil
	}
	return model.Success(model.Payload{"lines": m.lines}), nil
}

type mockScene struct{}

func (m *mockScene) Save(ctx context.Context, imageURL string) (*model.Result, error) {
	if imageURL == "https://example.com/broken.jpg" {
		return model.Failure("Failed to download image", goerr.Wrap(model.ErrImageUnavailable, "404")), nil
	}
	return model.Success(model.Payload{"filepath": "scenes/scene_20240102_090000.jpg", "timestamp": "20240102_090000"}), nil
}

func (m *mockScene) Describe(ctx context.Context, imageURL string) (*model.Result, error) {
	return model.Failure("Failed to describe scene", goerr.New("backend unavailable")), nil
}

func (m *mockScene) Recap(ctx context.Context, date string) (*model.Result, error) {
	if date == "" {
		return model.NotFound("No scenes found for 20240102"), nil
	}
	return model.Success(model.Payload{
		"description": "A calm day.",
		"source":      "daily_recap",
		"scenes_used": []string{"scene_" + date + "_090000.jpg"},
	}), nil
}

func newServer(t *testing.T, resolver *mockResolver, face *mockFace, text *mockText, opts ...server.Option) *server.Server {
	t.Helper()
	catalog, err := intent.DefaultCatalog()
	gt.NoError(t, err)
	uc, err := dispatch.New(resolver, catalog,
		dispatch.WithFace(face),
		dispatch.WithText(text),
		dispatch.WithScene(&mockScene{}),
	)
	gt.NoError(t, err)
	return server.New(uc, opts...)
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp map[string]any
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Body.String()).Contains(`"status":"ok"`)
	gt.NotEqual(t, rec.Header().Get("X-Request-Id"), "")
}

func TestQuery(t *testing.T) {
	resolver := &mockResolver{call: &model.ResolvedCall{
		Intent:    model.IntentRecognizeFace,
		Arguments: model.Arguments{"image_url": "https://example.com/a.jpg"},
	}}
	srv := newServer(t, resolver, &mockFace{found: true}, &mockText{})

	rec, _ := post(t, srv, "/query", `{"query":"who is this? https://example.com/a.jpg"}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), `{"function":"recognize_face","result":{"status":"success",`+
		`"matches":[{"identity":"JP","confidence":87.3,"source_path":"faces/JP.jpg"}],`+
		`"message":"Found 1 potential matches"}}`+"\n")
}

func TestQueryUnsupported(t *testing.T) {
	resolver := &mockResolver{err: goerr.Wrap(model.ErrUnsupportedFunction, "no function matched")}
	srv := newServer(t, resolver, &mockFace{}, &mockText{})

	rec, resp := post(t, srv, "/query", `{"query":"what's the weather?"}`)
	gt.Equal(t, rec.Code, http.StatusBadRequest)
	gt.Equal(t, resp["status"], any("error"))
	gt.Equal(t, resp["message"], any("Unsupported function"))
}

func TestMalformedBody(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})

	for _, body := range []string{"", "{", `["image_url"]`} {
		rec, resp := post(t, srv, "/recognize_face", body)
		gt.Equal(t, rec.Code, http.StatusBadRequest)
		gt.Equal(t, resp["status"], any("error"))
	}
}

func TestRecognizeFace(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		srv := newServer(t, &mockResolver{}, &mockFace{found: true}, &mockText{})
		rec, resp := post(t, srv, "/recognize_face", `{"image_url":"https://example.com/a.jpg"}`)
		gt.Equal(t, rec.Code, http.StatusOK)
		matches := resp["matches"].([]any)
		gt.A(t, matches).Length(1)
		gt.Equal(t, matches[0].(map[string]any)["identity"], any("JP"))
	})

	t.Run("no match is an empty list", func(t *testing.T) {
		srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})
		rec, _ := post(t, srv, "/recognize_face", `{"image_url":"https://example.com/a.jpg"}`)
		gt.Equal(t, rec.Code, http.StatusOK)
		gt.Equal(t, rec.Body.String(), `{"matches":[]}`+"\n")
	})

	t.Run("missing image_url", func(t *testing.T) {
		srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})
		rec, resp := post(t, srv, "/recognize_face", `{}`)
		gt.Equal(t, rec.Code, http.StatusBadRequest)
		gt.Equal(t, resp["status"], any("error"))
	})
}

func TestExtractText(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{lines: []string{"EXIT", "Platform 3"}})
	rec, _ := post(t, srv, "/extract_text", `{"image_url":"https://example.com/sign.jpg"}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), `{"text_lines":["EXIT","Platform 3"]}`+"\n")

	srv = newServer(t, &mockResolver{}, &mockFace{}, &mockText{})
	rec, _ = post(t, srv, "/extract_text", `{"image_url":"https://example.com/missing.jpg"}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), `{"text_lines":[]}`+"\n")
}

func TestSaveFace(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})
	rec, _ := post(t, srv, "/save_face", `{"image_url":"https://example.com/a.jpg","identity":"JP"}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), `{"status":"success","message":"Face saved as JP"}`+"\n")

	rec, _ = post(t, srv, "/save_face", `{"image_url":"https://example.com/a.jpg"}`)
	gt.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestSaveScreenshot(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})

	rec, resp := post(t, srv, "/save_screenshot", `{"image_url":"https://example.com/now.jpg"}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, resp["status"], any("success"))
	gt.Equal(t, resp["timestamp"], any("20240102_090000"))

	rec, resp = post(t, srv, "/save_screenshot", `{"image_url":"https://example.com/broken.jpg"}`)
	gt.Equal(t, rec.Code, http.StatusBadGateway)
	gt.Equal(t, resp["message"], any("Failed to download image"))
}

func TestDescribeSceneFailure(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})
	rec, resp := post(t, srv, "/describe_scene", `{"image_url":"https://example.com/a.jpg"}`)
	gt.Equal(t, rec.Code, http.StatusInternalServerError)
	gt.Equal(t, resp["status"], any("error"))
	gt.Equal(t, resp["message"], any("Failed to describe scene"))
}

func TestDailyRecap(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{})

	rec, resp := post(t, srv, "/daily_recap", `{"date":"20240102"}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, resp["status"], any("success"))
	gt.Equal(t, resp["source"], any("daily_recap"))
	gt.A(t, resp["scenes_used"].([]any)).Length(1)

	rec, resp = post(t, srv, "/daily_recap", `{}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, resp["status"], any("not_found"))
	gt.Equal(t, resp["message"], any("No scenes found for 20240102"))

	rec, _ = post(t, srv, "/daily_recap", `{"date":"2024-01-02"}`)
	gt.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestRateLimit(t *testing.T) {
	srv := newServer(t, &mockResolver{}, &mockFace{}, &mockText{}, server.WithRateLimit(0.001, 1))

	rec, _ := post(t, srv, "/daily_recap", `{}`)
	gt.Equal(t, rec.Code, http.StatusOK)

	rec, resp := post(t, srv, "/daily_recap", `{}`)
	gt.Equal(t, rec.Code, http.StatusTooManyRequests)
	gt.Equal(t, resp["status"], any("error"))

	// health checks are never limited
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	hrec := httptest.NewRecorder()
	srv.ServeHTTP(hrec, req)
	gt.Equal(t, hrec.Code, http.StatusOK)
}
