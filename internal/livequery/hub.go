// Package livequery turns change notifications into full snapshots.
//
// A subscriber receives the newest records for its user on Subscribe and
// again after every Notify for that user. Snapshots always replace what the
// subscriber had; nothing is diffed.
package livequery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"spendwise/internal/core"
	"spendwise/internal/store"
)

// SnapshotFunc receives a full replacement set of records, newest first.
type SnapshotFunc func(records []core.ExpenseRecord)

type subscriber struct {
	id      uint64
	deliver SnapshotFunc
}

type Hub struct {
	mu     sync.Mutex
	reader store.RecentReader
	limit  int
	nextID uint64
	subs   map[string][]subscriber

	// Serialises re-query and delivery per user so snapshots arrive in order.
	userLocks sync.Map
}

func NewHub(reader store.RecentReader, limit int) *Hub {
	return &Hub{
		reader: reader,
		limit:  limit,
		subs:   map[string][]subscriber{},
	}
}

// Subscribe registers fn for userID and delivers the initial snapshot before
// returning. The returned func removes the subscription and waits for any
// delivery in flight, so fn is never called after it returns. It is safe to
// call more than once but must not be called from inside fn.
func (h *Hub) Subscribe(ctx context.Context, userID string, fn SnapshotFunc) (func(), error) {
	lock := h.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	records, err := h.reader.Recent(ctx, userID, h.limit)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[userID] = append(h.subs[userID], subscriber{id: id, deliver: fn})
	h.mu.Unlock()

	fn(records)

	var once sync.Once
	return func() {
		once.Do(func() {
			lock := h.userLock(userID)
			lock.Lock()
			defer lock.Unlock()
			h.remove(userID, id)
		})
	}, nil
}

// Notify re-reads the user's newest records and delivers them to every
// subscriber. On read failure the subscribers keep their previous snapshot.
func (h *Hub) Notify(ctx context.Context, userID string) {
	if h.Subscribers(userID) == 0 {
		return
	}

	lock := h.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	records, err := h.reader.Recent(ctx, userID, h.limit)
	if err != nil {
		slog.ErrorContext(ctx, "Live query refresh failed", "user_id", userID, "error", err)
		return
	}

	h.mu.Lock()
	targets := append([]subscriber(nil), h.subs[userID]...)
	h.mu.Unlock()

	for _, s := range targets {
		s.deliver(records)
	}
	slog.DebugContext(ctx, "Snapshot delivered", "user_id", userID, "subscribers", len(targets), "records", len(records))
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

func (h *Hub) remove(userID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[userID]
	for i, s := range subs {
		if s.id == id {
			h.subs[userID] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
}

func (h *Hub) userLock(userID string) *sync.Mutex {
	l, _ := h.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return l.(*sync.Mutex)
}
