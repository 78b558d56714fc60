package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"spendwise/internal/store"
)

func tickingClock() func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func TestCreateAndRecent(t *testing.T) {
	ctx := context.Background()
	s := NewWithClock(tickingClock())

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, "u1", store.NewRecord{Title: fmt.Sprintf("t%d", i), Amount: "1.00"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.Create(ctx, "u2", store.NewRecord{Title: "other user", Amount: "2.00"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	recent, err := s.Recent(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	if recent[0].Title != "t4" || recent[2].Title != "t2" {
		t.Fatalf("unexpected order: %s .. %s", recent[0].Title, recent[2].Title)
	}
	for _, r := range recent {
		if r.ID == "" || r.CreatedAt == nil {
			t.Fatalf("store must assign id and timestamp: %+v", r)
		}
	}

	other, _ := s.Recent(ctx, "u2", 20)
	if len(other) != 1 || other[0].Title != "other user" {
		t.Fatalf("records leaked across users: %+v", other)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := New()
	if _, err := s.Create(context.Background(), "u1", store.NewRecord{Title: "", Amount: "1.00"}); err == nil {
		t.Fatalf("expected error for empty title")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	r, err := s.Create(ctx, "u1", store.NewRecord{Title: "Lunch", Amount: "9.00", DateLabel: "Mon Jan 6", Category: "food", Icon: "cart.fill"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	up, err := s.Update(ctx, "u1", r.ID, store.RecordPatch{Title: "Taxi", Amount: "15.00", Category: "transport", Icon: "car.fill"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.Title != "Taxi" || up.Amount != "15.00" || up.DateLabel != "Mon Jan 6" || !up.CreatedAt.Equal(*r.CreatedAt) {
		t.Fatalf("unexpected update result: %+v", up)
	}

	if _, err := s.Update(ctx, "u2", r.ID, store.RecordPatch{Title: "x", Amount: "1.00"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if err := s.Delete(ctx, "u1", r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRecentEqualTimestampsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return fixed })

	for _, title := range []string{"first", "second", "third"} {
		if _, err := s.Create(ctx, "u1", store.NewRecord{Title: title, Amount: "1.00"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	recent, _ := s.Recent(ctx, "u1", 20)
	if recent[0].Title != "third" || recent[2].Title != "first" {
		t.Fatalf("unexpected order: %s, %s, %s", recent[0].Title, recent[1].Title, recent[2].Title)
	}
}
