// Package session keeps one aggregator per signed-in user and ties its
// lifetime to a live-query subscription.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"spendwise/internal/aggregator"
	"spendwise/internal/livequery"
)

// Subscriber is the live-query side of the storage collaborator.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string, fn livequery.SnapshotFunc) (func(), error)
}

type entry struct {
	agg         *aggregator.Aggregator
	unsubscribe func()

	// ready is closed once the subscription attempt finished; err is set when
	// it failed.
	ready chan struct{}
	err   error
}

type Manager struct {
	mu       sync.Mutex
	feed     Subscriber
	opts     []aggregator.Option
	sessions map[string]*entry
}

// NewManager creates a manager; opts are applied to every aggregator it builds.
func NewManager(feed Subscriber, opts ...aggregator.Option) *Manager {
	return &Manager{
		feed:     feed,
		opts:     opts,
		sessions: map[string]*entry{},
	}
}

// Open returns the user's aggregator, subscribing it to the feed on first use.
// The initial snapshot has been applied when Open returns. Concurrent opens for
// the same user share one subscription; other users are never blocked by it.
func (m *Manager) Open(ctx context.Context, userID string) (*aggregator.Aggregator, error) {
	if userID == "" {
		return nil, fmt.Errorf("open session: empty user id")
	}

	m.mu.Lock()
	if e, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}
		return e.agg, nil
	}

	e := &entry{
		agg:   aggregator.New(aggregator.Session{UserID: userID}, m.opts...),
		ready: make(chan struct{}),
	}
	m.sessions[userID] = e
	m.mu.Unlock()

	unsubscribe, err := m.feed.Subscribe(ctx, userID, e.agg.OnSnapshot)

	m.mu.Lock()
	if err != nil {
		e.err = fmt.Errorf("subscribe user %s: %w", userID, err)
		if m.sessions[userID] == e {
			delete(m.sessions, userID)
		}
	} else {
		e.unsubscribe = unsubscribe
	}
	m.mu.Unlock()
	close(e.ready)

	if e.err != nil {
		return nil, e.err
	}
	slog.InfoContext(ctx, "Session opened", "user_id", userID, "records", len(e.agg.AllRecords()))
	return e.agg, nil
}

// SignOut ends the user's subscription and clears the aggregator so no data
// outlives the session. It reports whether a session existed. A sign-out that
// races a first Open waits for that subscription before tearing it down.
func (m *Manager) SignOut(ctx context.Context, userID string) bool {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	<-e.ready
	if e.err != nil {
		return false
	}
	e.unsubscribe()
	e.agg.Reset(aggregator.Session{})
	slog.InfoContext(ctx, "Session closed", "user_id", userID)
	return true
}

// Active returns the number of open sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close signs every user out.
func (m *Manager) Close() {
	m.mu.Lock()
	users := make([]string, 0, len(m.sessions))
	for u := range m.sessions {
		users = append(users, u)
	}
	m.mu.Unlock()

	for _, u := range users {
		m.SignOut(context.Background(), u)
	}
}
