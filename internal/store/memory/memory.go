package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	users map[string]map[string]core.ExpenseRecord
	seq   map[string]uint64 // insertion order, breaks CreatedAt ties
	next  uint64
	now   func() time.Time
}

func New() *Store {
	return &Store{
		users: map[string]map[string]core.ExpenseRecord{},
		seq:   map[string]uint64{},
		now:   time.Now,
	}
}

// NewWithClock is New with a fixed time source, for tests.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

func (s *Store) Create(_ context.Context, userID string, r store.NewRecord) (core.ExpenseRecord, error) {
	created := s.now().UTC()
	rec := core.ExpenseRecord{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(r.Title),
		Amount:    r.Amount,
		DateLabel: r.DateLabel,
		Category:  r.Category,
		Icon:      r.Icon,
		CreatedAt: &created,
	}
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.users[userID]
	if !ok {
		set = map[string]core.ExpenseRecord{}
		s.users[userID] = set
	}
	set[rec.ID] = rec
	s.next++
	s.seq[rec.ID] = s.next
	return rec, nil
}

func (s *Store) Update(_ context.Context, userID, id string, p store.RecordPatch) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID][id]
	if !ok {
		return core.ExpenseRecord{}, store.ErrNotFound
	}
	rec.Title = strings.TrimSpace(p.Title)
	rec.Amount = p.Amount
	rec.Category = p.Category
	rec.Icon = p.Icon
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	s.users[userID][id] = rec
	return rec, nil
}

func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users[userID], id)
	delete(s.seq, id)
	return nil
}

func (s *Store) Recent(_ context.Context, userID string, limit int) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	out := make([]core.ExpenseRecord, 0, len(s.users[userID]))
	order := make(map[string]uint64, len(s.users[userID]))
	for id, r := range s.users[userID] {
		out = append(out, r)
		order[id] = s.seq[id]
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CreatedAt, out[j].CreatedAt
		if ti.Equal(*tj) {
			return order[out[i].ID] > order[out[j].ID]
		}
		return ti.After(*tj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
