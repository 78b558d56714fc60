package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendwise/internal/amqp"
	"spendwise/internal/store"
	"spendwise/internal/store/memory"
	"spendwise/internal/store/sqlite"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds the store and, when configured, the AMQP client. A
// broker that cannot be reached is logged and fan-out is disabled.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st      store.Store
		closers []func() error
	)

	switch config.Type {
	case SQLiteBackend:
		repo, err := sqlite.NewRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		st = repo
		closers = append(closers, repo.Close)
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		st = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	var client *amqp.Client
	if config.AMQPURL != "" {
		c, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without fan-out", "error", err)
		} else {
			client = c
			closers = append([]func() error{c.Close}, closers...)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"instance_id", c.InstanceID())
		}
	}

	return &BackendResult{
		Store: st,
		AMQP:  client,
		Cleanup: func() error {
			var errs []error
			for _, c := range closers {
				if err := c(); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}, nil
}
