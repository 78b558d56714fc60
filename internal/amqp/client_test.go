package amqp

import (
	"context"
	"errors"
	"testing"
)

func TestRecordChangedMessageFromJSON(t *testing.T) {
	msg := NewRecordChangedMessage("u1", "r1", OpDeleted)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := RecordChangedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.UserID != "u1" || got.RecordID != "r1" || got.Op != OpDeleted {
		t.Fatalf("unexpected message: %+v", got)
	}

	if _, err := RecordChangedMessageFromJSON([]byte(`{"record_id":"r1"}`)); err == nil {
		t.Fatalf("expected error for missing user_id")
	}
	if _, err := RecordChangedMessageFromJSON([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestClientWithoutConnection(t *testing.T) {
	var nilClient *Client
	if err := nilClient.PublishRecordChanged(context.Background(), "u1", "r1", OpCreated); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	c := &Client{exchangeName: "test"}
	if err := c.PublishRecordChanged(context.Background(), "u1", "r1", OpCreated); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.ConsumeRecordChanged(context.Background(), nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close with nil components: %v", err)
	}
}
