// Package backend builds the storage and change fan-out collaborators from
// configuration.
package backend

import (
	"context"

	"spendwise/internal/amqp"
	"spendwise/internal/store"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult holds the built collaborators. AMQP is nil when fan-out is
// disabled or the broker was unreachable at startup.
type BackendResult struct {
	Store   store.Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Ready pings the store when it supports it.
func (r *BackendResult) Ready(ctx context.Context) error {
	if p, ok := r.Store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
