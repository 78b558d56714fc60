// Package store defines the storage port for expense records. Every operation
// is scoped to one user; adapters live in the memory and sqlite subpackages.
package store

import (
	"context"
	"errors"

	"spendwise/internal/core"
)

var ErrNotFound = errors.New("record not found")

type (
	// NewRecord carries the fields a caller supplies on creation. The store
	// assigns the id and creation time.
	NewRecord struct {
		Title     string
		Amount    string
		DateLabel string
		Category  string
		Icon      string
	}

	// RecordPatch carries the editable fields of an existing record.
	RecordPatch struct {
		Title    string
		Amount   string
		Category string
		Icon     string
	}
)

// Ports for outbound adapters.
type (
	RecordWriter interface {
		Create(ctx context.Context, userID string, r NewRecord) (core.ExpenseRecord, error)
		Update(ctx context.Context, userID, id string, p RecordPatch) (core.ExpenseRecord, error)
		Delete(ctx context.Context, userID, id string) error
	}

	// RecentReader returns up to limit records, newest first by creation time.
	RecentReader interface {
		Recent(ctx context.Context, userID string, limit int) ([]core.ExpenseRecord, error)
	}

	Store interface {
		RecordWriter
		RecentReader
	}
)
