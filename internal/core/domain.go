package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Last7Days   TimeWindow = "1W"
	Last30Days  TimeWindow = "1M"
	Last365Days TimeWindow = "1Y"

	DefaultWindow = Last30Days
)

type (
	// TimeWindow is the user-selected range used to filter records.
	TimeWindow string

	// ExpenseRecord is one user expense as held by storage and the aggregator.
	ExpenseRecord struct {
		ID        string     `json:"id"`
		Title     string     `json:"title"`
		Amount    string     `json:"amount"` // fixed two fraction digits, e.g. "12.50"
		DateLabel string     `json:"date"`
		Category  string     `json:"category"`
		Icon      string     `json:"icon"`
		CreatedAt *time.Time `json:"createdAt,omitempty"` // nil until storage acknowledges the write
	}

	ChartPoint struct {
		Label string  `json:"label"`
		Value float64 `json:"value"`
	}

	// ChartSeries is ordered oldest first.
	ChartSeries []ChartPoint
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyTitle    = errors.New("empty title")
	ErrEmptyID       = errors.New("empty record id")
	ErrInvalidWindow = errors.New("invalid time window")
	ErrTitleTooLong  = errors.New("title too long (max 200 characters)")
)

const MaxTitleLength = 200

// Days returns the inclusive day threshold of the window.
func (w TimeWindow) Days() int {
	switch w {
	case Last7Days:
		return 7
	case Last365Days:
		return 365
	default:
		return 30
	}
}

func (w TimeWindow) IsValid() bool {
	switch w {
	case Last7Days, Last30Days, Last365Days:
		return true
	default:
		return false
	}
}

func (w TimeWindow) String() string {
	return string(w)
}

// Windows lists the selectable windows from narrowest to widest.
func Windows() []TimeWindow {
	return []TimeWindow{Last7Days, Last30Days, Last365Days}
}

// ParseWindow accepts 1W/1M/1Y (any case) and the 7d/30d/365d aliases.
// An empty code yields DefaultWindow.
func ParseWindow(code string) (TimeWindow, error) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "":
		return DefaultWindow, nil
	case "1w", "7d":
		return Last7Days, nil
	case "1m", "30d":
		return Last30Days, nil
	case "1y", "365d":
		return Last365Days, nil
	}
	return "", ErrInvalidWindow
}

// HasTimestamp reports whether storage has acknowledged the record.
func (r ExpenseRecord) HasTimestamp() bool {
	return r.CreatedAt != nil && !r.CreatedAt.IsZero()
}

func (r ExpenseRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if len([]rune(r.Title)) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if r.Amount != "" {
		if _, err := ParseAmount(r.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Labels returns the point labels in series order.
func (s ChartSeries) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Label
	}
	return out
}

// Values returns the point values in series order.
func (s ChartSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// DateLabelFor is the display label stored on a record created at t.
// The first three characters are the weekday, which is what the chart shows.
func DateLabelFor(t time.Time) string {
	return t.Format("Mon Jan 2")
}
