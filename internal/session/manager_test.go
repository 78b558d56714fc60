package session

import (
	"context"
	"testing"
	"time"

	"spendwise/internal/livequery"
	"spendwise/internal/store"
	"spendwise/internal/store/memory"
)

func TestOpenSubscribesAndReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	if _, err := st.Create(ctx, "u1", store.NewRecord{Title: "Bus", Amount: "2.00"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	hub := livequery.NewHub(st, 20)
	m := NewManager(hub)

	agg, err := m.Open(ctx, "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !agg.Loaded() || len(agg.AllRecords()) != 1 {
		t.Fatalf("initial snapshot not applied: %+v", agg.AllRecords())
	}

	again, _ := m.Open(ctx, "u1")
	if again != agg {
		t.Fatalf("Open should reuse the existing session")
	}
	if hub.Subscribers("u1") != 1 {
		t.Fatalf("expected a single subscription, got %d", hub.Subscribers("u1"))
	}

	if _, err := st.Create(ctx, "u1", store.NewRecord{Title: "Tram", Amount: "2.50"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	hub.Notify(ctx, "u1")
	if len(agg.AllRecords()) != 2 {
		t.Fatalf("expected refreshed set of 2, got %d", len(agg.AllRecords()))
	}
}

func TestSignOutClearsAndUnsubscribes(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_, _ = st.Create(ctx, "u1", store.NewRecord{Title: "Rent", Amount: "900.00"})
	hub := livequery.NewHub(st, 20)
	m := NewManager(hub)

	agg, _ := m.Open(ctx, "u1")
	if !m.SignOut(ctx, "u1") {
		t.Fatalf("expected session to exist")
	}
	if len(agg.AllRecords()) != 0 || agg.Session().UserID != "" {
		t.Fatalf("aggregator must be cleared on sign-out")
	}
	if hub.Subscribers("u1") != 0 || m.Active() != 0 {
		t.Fatalf("subscription should be gone")
	}
	if m.SignOut(ctx, "u1") {
		t.Fatalf("second sign-out should report no session")
	}

	// A later change must not reach the old aggregator.
	_, _ = st.Create(ctx, "u1", store.NewRecord{Title: "Late", Amount: "1.00"})
	hub.Notify(ctx, "u1")
	if len(agg.AllRecords()) != 0 {
		t.Fatalf("stale aggregator received data after sign-out")
	}
}

func TestOpenRejectsEmptyUserAndCloseEndsAll(t *testing.T) {
	ctx := context.Background()
	m := NewManager(livequery.NewHub(memory.New(), 20))
	if _, err := m.Open(ctx, ""); err == nil {
		t.Fatalf("expected error for empty user")
	}
	_, _ = m.Open(ctx, "a")
	_, _ = m.Open(ctx, "b")
	if m.Active() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.Active())
	}
	m.Close()
	if m.Active() != 0 {
		t.Fatalf("expected no sessions after Close, got %d", m.Active())
	}
}

// gatedFeed holds the first subscription for one user until released.
type gatedFeed struct {
	*livequery.Hub
	user    string
	entered chan struct{}
	release chan struct{}
}

func (f *gatedFeed) Subscribe(ctx context.Context, userID string, fn livequery.SnapshotFunc) (func(), error) {
	if userID == f.user {
		close(f.entered)
		<-f.release
	}
	return f.Hub.Subscribe(ctx, userID, fn)
}

func TestSlowSubscribeDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	hub := livequery.NewHub(memory.New(), 20)
	feed := &gatedFeed{Hub: hub, user: "slow", entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(feed)
	defer m.Close()

	type result struct {
		agg any
		err error
	}
	first := make(chan result, 1)
	go func() {
		agg, err := m.Open(ctx, "slow")
		first <- result{agg, err}
	}()
	<-feed.entered

	fast := make(chan error, 1)
	go func() {
		_, err := m.Open(ctx, "fast")
		fast <- err
	}()
	select {
	case err := <-fast:
		if err != nil {
			t.Fatalf("open fast: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a pending subscription for another user blocked Open")
	}

	second := make(chan result, 1)
	go func() {
		agg, err := m.Open(ctx, "slow")
		second <- result{agg, err}
	}()

	close(feed.release)
	a, b := <-first, <-second
	if a.err != nil || b.err != nil {
		t.Fatalf("open slow: %v / %v", a.err, b.err)
	}
	if a.agg != b.agg {
		t.Fatal("concurrent opens for one user should share the aggregator")
	}
	if hub.Subscribers("slow") != 1 {
		t.Fatalf("expected a single subscription, got %d", hub.Subscribers("slow"))
	}
}

func TestSignOutDuringFirstOpen(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_, _ = st.Create(ctx, "u1", store.NewRecord{Title: "Gym", Amount: "30.00"})
	hub := livequery.NewHub(st, 20)
	feed := &gatedFeed{Hub: hub, user: "u1", entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(feed)

	opened := make(chan error, 1)
	go func() {
		_, err := m.Open(ctx, "u1")
		opened <- err
	}()
	<-feed.entered

	signedOut := make(chan bool, 1)
	go func() { signedOut <- m.SignOut(ctx, "u1") }()

	close(feed.release)
	if err := <-opened; err != nil {
		t.Fatalf("open: %v", err)
	}
	if !<-signedOut {
		t.Fatal("sign-out should report the pending session")
	}
	if hub.Subscribers("u1") != 0 || m.Active() != 0 {
		t.Fatalf("subscription should be gone after sign-out")
	}
}
