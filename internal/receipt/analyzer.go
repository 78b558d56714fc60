// Package receipt extracts an amount, merchant and category from a receipt
// photo using an image-understanding model.
package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendwise/internal/cache"
)

const prompt = "Analyze this receipt image. Extract these 3 fields: \n" +
	"1. total_amount (number)\n" +
	"2. merchant_name (string, simplify to brand name)\n" +
	"3. category (string, choose one: 'food', 'transport', 'ent', 'health', 'other')\n\n" +
	"Return ONLY valid JSON. No markdown backticks. " +
	`Example: {"total_amount": 25.50, "merchant_name": "Starbucks", "category": "food"}.`

const (
	DefaultTitle    = "Receipt"
	DefaultCategory = "other"
)

var ErrEmptyImage = errors.New("receipt: empty image")

// Result is the pre-fill for the add-expense form. Fallback is set when the
// values are the fixed demonstration result rather than an analysis.
type Result struct {
	Amount     string `json:"amount"`
	Title      string `json:"title"`
	CategoryID string `json:"categoryId"`
	Fallback   bool   `json:"fallback"`
}

// FallbackResult is returned whenever analysis fails.
var FallbackResult = Result{
	Amount:     "42.50",
	Title:      "Market Basket",
	CategoryID: "food",
	Fallback:   true,
}

// Generator sends a prompt plus an inline image to a model and returns the
// model's text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

type Analyzer struct {
	gen     Generator
	cache   cache.Cache[Result]
	timeout time.Duration
}

// NewAnalyzer builds an analyzer. cache may be nil to disable caching and a
// zero timeout leaves the caller's deadline in charge.
func NewAnalyzer(gen Generator, c cache.Cache[Result], timeout time.Duration) *Analyzer {
	return &Analyzer{gen: gen, cache: c, timeout: timeout}
}

// Analyze never fails: any error yields FallbackResult.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType string) Result {
	res, err := a.analyze(ctx, image, mimeType)
	if err != nil {
		slog.WarnContext(ctx, "Receipt analysis failed, using fallback values", "error", err)
		return FallbackResult
	}
	return res
}

func (a *Analyzer) analyze(ctx context.Context, image []byte, mimeType string) (Result, error) {
	if len(image) == 0 {
		return Result{}, ErrEmptyImage
	}
	if a.gen == nil {
		return Result{}, errors.New("receipt: no generator configured")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	key := imageKey(image)
	if a.cache != nil {
		if res, ok := a.cache.Get(key); ok {
			slog.DebugContext(ctx, "Receipt analysis served from cache", "key", key[:12])
			return res, nil
		}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := a.gen.Generate(ctx, prompt, image, mimeType)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	res, err := ParseResponse(text)
	if err != nil {
		return Result{}, err
	}

	slog.InfoContext(ctx, "Receipt analysed",
		"title", res.Title,
		"category", res.CategoryID,
		"duration", time.Since(start))

	if a.cache != nil {
		a.cache.Set(key, res)
	}
	return res, nil
}

type modelAnswer struct {
	TotalAmount  json.RawMessage `json:"total_amount"`
	MerchantName string          `json:"merchant_name"`
	Category     string          `json:"category"`
}

// ParseResponse decodes the model's JSON answer, tolerating markdown fences.
func ParseResponse(text string) (Result, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var ans modelAnswer
	if err := json.Unmarshal([]byte(cleaned), &ans); err != nil {
		return Result{}, fmt.Errorf("decode model answer: %w", err)
	}

	res := Result{
		Amount:     amountText(ans.TotalAmount),
		Title:      ans.MerchantName,
		CategoryID: ans.Category,
	}
	if res.Title == "" {
		res.Title = DefaultTitle
	}
	if res.CategoryID == "" {
		res.CategoryID = DefaultCategory
	}
	return res, nil
}

// amountText keeps the number as the model wrote it; strings are unquoted and
// null or absent becomes empty.
func amountText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	return s
}

func imageKey(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
