package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendwise/internal/cache"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int
	mime  string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, _ []byte, mimeType string) (string, error) {
	f.calls++
	f.mime = mimeType
	return f.text, f.err
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Result
	}{
		{
			name: "bare json",
			text: `{"total_amount": 25.50, "merchant_name": "Starbucks", "category": "food"}`,
			want: Result{Amount: "25.50", Title: "Starbucks", CategoryID: "food"},
		},
		{
			name: "fenced json",
			text: "```json\n{\"total_amount\": 12, \"merchant_name\": \"Shell\", \"category\": \"transport\"}\n```",
			want: Result{Amount: "12", Title: "Shell", CategoryID: "transport"},
		},
		{
			name: "defaults",
			text: `{}`,
			want: Result{Amount: "", Title: DefaultTitle, CategoryID: DefaultCategory},
		},
		{
			name: "string amount",
			text: `{"total_amount": " 9.99 ", "merchant_name": "CVS", "category": "health"}`,
			want: Result{Amount: "9.99", Title: "CVS", CategoryID: "health"},
		},
		{
			name: "null amount",
			text: `{"total_amount": null, "merchant_name": "Cinema"}`,
			want: Result{Amount: "", Title: "Cinema", CategoryID: DefaultCategory},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.text)
			if err != nil {
				t.Fatalf("ParseResponse: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := ParseResponse("the total is 4 dollars"); err == nil {
		t.Fatal("expected error for non-json answer")
	}
}

func TestAnalyzeFallsBack(t *testing.T) {
	ctx := context.Background()

	failing := NewAnalyzer(&fakeGenerator{err: errors.New("quota exceeded")}, nil, time.Second)
	if got := failing.Analyze(ctx, []byte("img"), "image/png"); got != FallbackResult {
		t.Fatalf("expected fallback on generator error, got %+v", got)
	}

	garbage := NewAnalyzer(&fakeGenerator{text: "not json"}, nil, 0)
	if got := garbage.Analyze(ctx, []byte("img"), ""); got != FallbackResult {
		t.Fatalf("expected fallback on bad answer, got %+v", got)
	}

	if got := garbage.Analyze(ctx, nil, ""); got != FallbackResult {
		t.Fatalf("expected fallback on empty image, got %+v", got)
	}

	if got := NewAnalyzer(nil, nil, 0).Analyze(ctx, []byte("img"), ""); !got.Fallback {
		t.Fatalf("expected fallback without generator, got %+v", got)
	}
}

func TestAnalyzeCachesByImage(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{text: `{"total_amount": 3.2, "merchant_name": "Bakery", "category": "food"}`}
	a := NewAnalyzer(gen, cache.NewLRUCache[Result](8, time.Hour), 0)

	first := a.Analyze(ctx, []byte("photo-1"), "")
	second := a.Analyze(ctx, []byte("photo-1"), "")
	if first != second || first.Fallback {
		t.Fatalf("unexpected results %+v / %+v", first, second)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one model call, got %d", gen.calls)
	}
	if gen.mime != "image/jpeg" {
		t.Fatalf("default mime type = %q", gen.mime)
	}

	a.Analyze(ctx, []byte("photo-2"), "image/png")
	if gen.calls != 2 {
		t.Fatalf("different image should call the model, got %d calls", gen.calls)
	}
}
