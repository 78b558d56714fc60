package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/store"
)

var (
	ErrMissingInfo     = errors.New("amount and title are required")
	ErrUnauthenticated = errors.New("no authenticated user")
)

type (
	// Notifier refreshes live subscriptions on this instance.
	Notifier interface {
		Notify(ctx context.Context, userID string)
	}

	// Publisher fans a change out to other instances.
	Publisher interface {
		PublishRecordChanged(ctx context.Context, userID, recordID, op string) error
	}
)

// ExpenseService applies record mutations and announces them to live
// subscribers, locally and across instances.
type ExpenseService struct {
	store     store.RecordWriter
	notifier  Notifier
	publisher Publisher
	now       func() time.Time
}

// NewExpenseService wires the service. notifier and publisher may be nil.
func NewExpenseService(s store.RecordWriter, notifier Notifier, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		store:     s,
		notifier:  notifier,
		publisher: publisher,
		now:       time.Now,
	}
}

// AddExpense stores a new record. amount is normalised to two fraction digits
// and categoryID is resolved to a known category and icon.
func (s *ExpenseService) AddExpense(ctx context.Context, userID, amount, title, categoryID string) (core.ExpenseRecord, error) {
	normalized, err := s.validate(userID, amount, title)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	cat := core.ResolveCategory(categoryID)

	rec, err := s.store.Create(ctx, userID, store.NewRecord{
		Title:     strings.TrimSpace(title),
		Amount:    normalized,
		DateLabel: core.DateLabelFor(s.now()),
		Category:  cat.ID,
		Icon:      cat.Icon,
	})
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("save expense: %w", err)
	}

	s.announce(ctx, userID, rec.ID, amqp.OpCreated)
	return rec, nil
}

// UpdateExpense rewrites title, amount and category of an existing record.
func (s *ExpenseService) UpdateExpense(ctx context.Context, userID, id, amount, title, categoryID string) (core.ExpenseRecord, error) {
	normalized, err := s.validate(userID, amount, title)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	cat := core.ResolveCategory(categoryID)

	rec, err := s.store.Update(ctx, userID, id, store.RecordPatch{
		Title:    strings.TrimSpace(title),
		Amount:   normalized,
		Category: cat.ID,
		Icon:     cat.Icon,
	})
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("update expense: %w", err)
	}

	s.announce(ctx, userID, rec.ID, amqp.OpUpdated)
	return rec, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.announce(ctx, userID, id, amqp.OpDeleted)
	return nil
}

func (s *ExpenseService) validate(userID, amount, title string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if strings.TrimSpace(amount) == "" || title == "" {
		return "", ErrMissingInfo
	}
	if len([]rune(title)) > core.MaxTitleLength {
		return "", core.ErrTitleTooLong
	}
	return core.FormatAmount(amount)
}

// announce never fails the write: the record is already stored.
func (s *ExpenseService) announce(ctx context.Context, userID, recordID, op string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping fan-out", "record_id", recordID)
		return
	}
	if err := s.publisher.PublishRecordChanged(ctx, userID, recordID, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record change",
			"user_id", userID, "record_id", recordID, "op", op, "error", err)
	}
}
