package livequery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/store"
	"spendwise/internal/store/memory"
)

type collector struct {
	mu        sync.Mutex
	snapshots [][]core.ExpenseRecord
}

func (c *collector) fn(records []core.ExpenseRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, records)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

func (c *collector) last() []core.ExpenseRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots[len(c.snapshots)-1]
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if _, err := s.Create(ctx, "u1", store.NewRecord{Title: "Coffee", Amount: "3.00"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	h := NewHub(s, 20)
	var c collector
	unsub, err := h.Subscribe(ctx, "u1", c.fn)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if c.count() != 1 || len(c.last()) != 1 || c.last()[0].Title != "Coffee" {
		t.Fatalf("unexpected initial snapshot: %+v", c.snapshots)
	}
}

func TestNotifyDeliversFreshSnapshot(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	h := NewHub(s, 20)

	var mine, theirs collector
	unsub, _ := h.Subscribe(ctx, "u1", mine.fn)
	_, _ = h.Subscribe(ctx, "u2", theirs.fn)

	if _, err := s.Create(ctx, "u1", store.NewRecord{Title: "Train", Amount: "4.20"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	h.Notify(ctx, "u1")

	if mine.count() != 2 || len(mine.last()) != 1 {
		t.Fatalf("expected refreshed snapshot, got %+v", mine.snapshots)
	}
	if theirs.count() != 1 {
		t.Fatalf("other user should not be notified, got %d snapshots", theirs.count())
	}

	unsub()
	unsub()
	if h.Subscribers("u1") != 0 {
		t.Fatalf("expected no subscribers after unsubscribe")
	}
	h.Notify(ctx, "u1")
	if mine.count() != 2 {
		t.Fatalf("unsubscribed func should not receive snapshots")
	}
}

type failingReader struct{ fail bool }

func (f *failingReader) Recent(context.Context, string, int) ([]core.ExpenseRecord, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	return []core.ExpenseRecord{{ID: "a", Title: "a"}}, nil
}

func TestNotifyFailureKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	r := &failingReader{}
	h := NewHub(r, 20)
	var c collector
	if _, err := h.Subscribe(ctx, "u1", c.fn); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r.fail = true
	h.Notify(ctx, "u1")
	if c.count() != 1 {
		t.Fatalf("failed refresh must not deliver, got %d snapshots", c.count())
	}

	if _, err := h.Subscribe(ctx, "u2", c.fn); err == nil {
		t.Fatalf("expected subscribe error when initial read fails")
	}
}

func TestUnsubscribeWaitsForDeliveryInFlight(t *testing.T) {
	ctx := context.Background()
	h := NewHub(memory.New(), 20)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	unsub, err := h.Subscribe(ctx, "u1", func([]core.ExpenseRecord) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			close(entered)
			<-release
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	notified := make(chan struct{})
	go func() {
		h.Notify(ctx, "u1")
		close(notified)
	}()
	<-entered

	unsubscribed := make(chan struct{})
	go func() {
		unsub()
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("unsubscribe returned while a delivery was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-notified
	<-unsubscribed

	h.Notify(ctx, "u1")
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected no delivery after unsubscribe, got %d calls", calls)
	}
}
