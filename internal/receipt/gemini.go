package receipt

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.0-flash-lite-preview"

var ErrNoCandidate = errors.New("gemini: response has no text candidate")

// GeminiGenerator calls the Generative Language generateContent method over
// the REST transport.
type GeminiGenerator struct {
	client *generativelanguage.GenerativeClient
	model  string
}

// GeminiOption tweaks the underlying API client, mainly for tests.
type GeminiOption func(*[]option.ClientOption)

// WithEndpoint points the client at another base URL, without a trailing slash.
func WithEndpoint(url string) GeminiOption {
	return func(o *[]option.ClientOption) { *o = append(*o, option.WithEndpoint(url)) }
}

func WithHTTPClient(c *http.Client) GeminiOption {
	return func(o *[]option.ClientOption) { *o = append(*o, option.WithHTTPClient(c)) }
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&clientOpts)
	}

	client, err := generativelanguage.NewGenerativeRESTClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create generative language client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	req := &generativelanguagepb.GenerateContentRequest{
		Model: "models/" + g.model,
		Contents: []*generativelanguagepb.Content{{
			Role: "user",
			Parts: []*generativelanguagepb.Part{
				{Data: &generativelanguagepb.Part_Text{Text: prompt}},
				{Data: &generativelanguagepb.Part_InlineData{InlineData: &generativelanguagepb.Blob{
					MimeType: mimeType,
					Data:     image,
				}}},
			},
		}},
	}

	resp, err := g.client.GenerateContent(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	for _, c := range resp.GetCandidates() {
		for _, p := range c.GetContent().GetParts() {
			if text := p.GetText(); text != "" {
				return text, nil
			}
		}
	}
	return "", ErrNoCandidate
}

// Close releases the underlying client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
