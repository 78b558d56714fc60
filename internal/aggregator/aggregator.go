// Package aggregator holds a user's working set of expense records and derives
// the windowed list and chart series shown to the presentation layer.
//
// The working set is replaced wholesale by every snapshot from storage; there
// is no merge of incremental changes. Storage only ever delivers the newest
// SnapshotLimit records, so history older than that is never visible here.
package aggregator

import (
	"sync"
	"time"
	"unicode/utf8"

	"spendwise/internal/core"
)

const (
	// SnapshotLimit is the number of newest records a snapshot carries.
	SnapshotLimit = 20
	// ChartPoints is the fixed length of every chart series.
	ChartPoints = 6

	missingLabel = "?"
	labelRunes   = 3
	day          = 24 * time.Hour
)

// Session identifies whose records an Aggregator holds.
type Session struct {
	UserID string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source used for window filtering.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

type Aggregator struct {
	mu      sync.RWMutex
	session Session
	window  core.TimeWindow
	records []core.ExpenseRecord
	loaded  bool
	now     func() time.Time
}

func New(session Session, opts ...Option) *Aggregator {
	a := &Aggregator{
		session: session,
		window:  core.DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnSnapshot replaces the working set. Records are expected newest first and
// their order is kept as delivered.
func (a *Aggregator) OnSnapshot(records []core.ExpenseRecord) {
	n := len(records)
	if n > SnapshotLimit {
		n = SnapshotLimit
	}
	next := make([]core.ExpenseRecord, n)
	copy(next, records[:n])

	a.mu.Lock()
	a.records = next
	a.loaded = true
	a.mu.Unlock()
}

// SetWindow selects the active window. Invalid windows are ignored.
func (a *Aggregator) SetWindow(w core.TimeWindow) {
	if !w.IsValid() {
		return
	}
	a.mu.Lock()
	a.window = w
	a.mu.Unlock()
}

func (a *Aggregator) Window() core.TimeWindow {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.window
}

func (a *Aggregator) Session() Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Loaded reports whether at least one snapshot has been received since the
// last Reset.
func (a *Aggregator) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded
}

// Reset drops the working set and rebinds the aggregator to session. Used on
// sign-out so nothing from the previous user stays visible.
func (a *Aggregator) Reset(session Session) {
	a.mu.Lock()
	a.session = session
	a.records = nil
	a.loaded = false
	a.window = core.DefaultWindow
	a.mu.Unlock()
}

// AllRecords returns the unfiltered working set.
func (a *Aggregator) AllRecords() []core.ExpenseRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]core.ExpenseRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Records returns the working set filtered by the active window.
func (a *Aggregator) Records() []core.ExpenseRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return filter(a.records, a.window, a.now())
}

// FilteredRecords returns the records inside w, keeping snapshot order.
func (a *Aggregator) FilteredRecords(w core.TimeWindow) []core.ExpenseRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return filter(a.records, w, a.now())
}

// Chart returns the series for the active window.
func (a *Aggregator) Chart() core.ChartSeries {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return series(filter(a.records, a.window, a.now()))
}

// ChartSeries returns ChartPoints points for w, oldest first.
func (a *Aggregator) ChartSeries(w core.TimeWindow) core.ChartSeries {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return series(filter(a.records, w, a.now()))
}

func filter(records []core.ExpenseRecord, w core.TimeWindow, now time.Time) []core.ExpenseRecord {
	limit := w.Days()
	out := make([]core.ExpenseRecord, 0, len(records))
	for _, r := range records {
		if !r.HasTimestamp() || ageInDays(now, *r.CreatedAt) <= limit {
			out = append(out, r)
		}
	}
	return out
}

// ageInDays is |now - t| rounded up to whole days.
func ageInDays(now, t time.Time) int {
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	days := diff / day
	if diff%day != 0 {
		days++
	}
	return int(days)
}

func series(filtered []core.ExpenseRecord) core.ChartSeries {
	out := make(core.ChartSeries, ChartPoints)
	n := len(filtered)
	if n > ChartPoints {
		n = ChartPoints
	}
	// filtered is newest first; the newest lands in the last slot and any
	// unused leading slots stay as zero placeholders.
	for i := 0; i < n; i++ {
		r := filtered[i]
		out[ChartPoints-1-i] = core.ChartPoint{
			Label: chartLabel(r.DateLabel),
			Value: core.ChartValue(r.Amount),
		}
	}
	return out
}

func chartLabel(dateLabel string) string {
	if dateLabel == "" {
		return missingLabel
	}
	if utf8.RuneCountInString(dateLabel) <= labelRunes {
		return dateLabel
	}
	return string([]rune(dateLabel)[:labelRunes])
}
