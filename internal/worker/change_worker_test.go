package worker

import (
	"context"
	"testing"

	"spendwise/internal/amqp"
)

type countingNotifier struct{ users []string }

func (n *countingNotifier) Notify(_ context.Context, userID string) {
	n.users = append(n.users, userID)
}

func TestHandleRecordChanged(t *testing.T) {
	n := &countingNotifier{}
	w := NewChangeWorker(n, "self")

	remote := amqp.NewRecordChangedMessage("u1", "r1", amqp.OpCreated)
	remote.Origin = "other"
	if err := w.HandleRecordChanged(context.Background(), remote); err != nil {
		t.Fatalf("handle: %v", err)
	}

	own := amqp.NewRecordChangedMessage("u2", "r2", amqp.OpDeleted)
	own.Origin = "self"
	if err := w.HandleRecordChanged(context.Background(), own); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(n.users) != 1 || n.users[0] != "u1" {
		t.Fatalf("expected only the remote change to notify, got %v", n.users)
	}
}
