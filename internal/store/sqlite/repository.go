package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/store"

	_ "modernc.org/sqlite"
)

var _ store.Store = (*Repository)(nil)

const selectColumns = `id, title, amount, date_label, category, icon, created_at`

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Create(ctx context.Context, userID string, nr store.NewRecord) (core.ExpenseRecord, error) {
	created := r.now().UTC()
	rec := core.ExpenseRecord{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(nr.Title),
		Amount:    nr.Amount,
		DateLabel: nr.DateLabel,
		Category:  nr.Category,
		Icon:      nr.Icon,
		CreatedAt: &created,
	}
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_records (id, user_id, title, amount, date_label, category, icon, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, userID, rec.Title, rec.Amount, rec.DateLabel, rec.Category, rec.Icon,
		created.UnixMilli(), created.UnixMilli())
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("insert record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"user_id", userID,
		"amount", rec.Amount,
		"category", rec.Category)

	return rec, nil
}

func (r *Repository) Update(ctx context.Context, userID, id string, p store.RecordPatch) (core.ExpenseRecord, error) {
	probe := core.ExpenseRecord{ID: id, Title: strings.TrimSpace(p.Title), Amount: p.Amount}
	if err := probe.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE expense_records
		 SET title = ?, amount = ?, category = ?, icon = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		probe.Title, p.Amount, p.Category, p.Icon, r.now().UTC().UnixMilli(), id, userID)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("update record: %w", err)
	} else if n == 0 {
		return core.ExpenseRecord{}, store.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM expense_records WHERE id = ? AND user_id = ?`, id, userID)
	rec, err := scanRecord(row)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("reload record: %w", err)
	}
	return rec, nil
}

// Delete soft-deletes the record; it disappears from Recent immediately.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expense_records SET deleted_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		r.now().UTC().UnixMilli(), id, userID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	slog.InfoContext(ctx, "Record soft deleted", "id", id, "user_id", userID)
	return nil
}

func (r *Repository) Recent(ctx context.Context, userID string, limit int) ([]core.ExpenseRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM expense_records
		 WHERE user_id = ? AND deleted_at IS NULL
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.ExpenseRecord, error) {
	var (
		rec     core.ExpenseRecord
		created sql.NullInt64
	)
	if err := s.Scan(&rec.ID, &rec.Title, &rec.Amount, &rec.DateLabel, &rec.Category, &rec.Icon, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ExpenseRecord{}, store.ErrNotFound
		}
		return core.ExpenseRecord{}, err
	}
	if created.Valid {
		t := time.UnixMilli(created.Int64).UTC()
		rec.CreatedAt = &t
	}
	return rec, nil
}
