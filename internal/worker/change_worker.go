package worker

import (
	"context"
	"log/slog"

	"spendwise/internal/amqp"
	"spendwise/internal/services"
)

// ChangeWorker refreshes local live subscriptions when another instance
// reports a change to a user's records.
type ChangeWorker struct {
	notifier   services.Notifier
	instanceID string
}

// NewChangeWorker builds a worker. Messages whose origin equals instanceID are
// skipped because the publishing service already notified locally.
func NewChangeWorker(notifier services.Notifier, instanceID string) *ChangeWorker {
	return &ChangeWorker{
		notifier:   notifier,
		instanceID: instanceID,
	}
}

// HandleRecordChanged processes a single change message from AMQP.
func (w *ChangeWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	if msg.Origin != "" && msg.Origin == w.instanceID {
		return nil
	}

	slog.DebugContext(ctx, "Processing record change",
		"user_id", msg.UserID,
		"record_id", msg.RecordID,
		"op", msg.Op,
		"origin", msg.Origin)

	w.notifier.Notify(ctx, msg.UserID)
	return nil
}

// Run consumes change messages until ctx is cancelled.
func (w *ChangeWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeRecordChanged(ctx, w.HandleRecordChanged)
}
