package receipt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiGenerator(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"total_amount\": 7.5}"}]}}]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	gen, err := NewGeminiGenerator(ctx, "test-key", "test-model",
		WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewGeminiGenerator: %v", err)
	}
	defer gen.Close()

	text, err := gen.Generate(ctx, "prompt", []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != `{"total_amount": 7.5}` {
		t.Fatalf("text = %q", text)
	}
	if gotPath != "/v1beta/models/test-model:generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
	parts := gotBody.Contents[0].Parts
	if parts[0].Text != "prompt" {
		t.Fatalf("prompt part = %q", parts[0].Text)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" ||
		parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8}) {
		t.Fatalf("unexpected inline image part %+v", parts[1].InlineData)
	}

	res := NewAnalyzer(gen, nil, 0).Analyze(ctx, []byte("img"), "")
	if res.Amount != "7.5" || res.Title != DefaultTitle || res.Fallback {
		t.Fatalf("unexpected analysis %+v", res)
	}
}

func TestGeminiGeneratorNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	gen, err := NewGeminiGenerator(ctx, "k", "", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewGeminiGenerator: %v", err)
	}
	defer gen.Close()
	if _, err := gen.Generate(ctx, "p", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected error when no candidates are returned")
	}
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGeminiGenerator(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for missing key")
	}
}
