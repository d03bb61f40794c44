package notification

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/models"
)

func testSubscriber() *Subscriber {
	return NewSubscriber(nil, logger.New("notification-test"))
}

func TestHandleNotificationOrderPlaced(t *testing.T) {
	s := testSubscriber()
	body, _ := json.Marshal(models.OrderPlacedMessage{
		OrderID:   "ord_1",
		Total:     900,
		ItemCount: 2,
		Timestamp: time.Now().UTC(),
	})

	if err := s.handleNotification(context.Background(), body); err != nil {
		t.Fatalf("handleNotification: %v", err)
	}
}

func TestHandleNotificationStatusUpdate(t *testing.T) {
	s := testSubscriber()
	body, _ := json.Marshal(models.StatusUpdateMessage{
		OrderID:   "ord_1",
		OldStatus: string(models.StatusPending),
		NewStatus: string(models.StatusPreparing),
		Timestamp: time.Now().UTC(),
	})

	if err := s.handleNotification(context.Background(), body); err != nil {
		t.Fatalf("handleNotification: %v", err)
	}
}

func TestHandleNotificationUnknownStatusIsDropped(t *testing.T) {
	s := testSubscriber()
	body, _ := json.Marshal(models.StatusUpdateMessage{
		OrderID:   "ord_1",
		OldStatus: string(models.StatusPending),
		NewStatus: "Flambeed",
		Timestamp: time.Now().UTC(),
	})

	// A nil return acks the message; an error would requeue the same bad
	// payload forever.
	if err := s.handleNotification(context.Background(), body); err != nil {
		t.Fatalf("unknown status must be dropped, got error: %v", err)
	}
}

func TestHandleNotificationMalformedBody(t *testing.T) {
	s := testSubscriber()
	if err := s.handleNotification(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed message body")
	}
}

func TestFormatStatusUpdate(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		newStatus string
		want      string
	}{
		{string(models.StatusPreparing), "being prepared"},
		{string(models.StatusReady), "ready for pickup"},
		{string(models.StatusCompleted), "picked up"},
		{string(models.StatusCancelled), "cancelled"},
		{string(models.StatusPending), "status changed from"},
	}

	for _, tt := range tests {
		msg := &models.StatusUpdateMessage{
			OrderID:   "ord_1",
			OldStatus: "Something",
			NewStatus: tt.newStatus,
			Timestamp: ts,
		}
		got := formatStatusUpdate(msg)
		if !strings.Contains(got, tt.want) {
			t.Errorf("formatStatusUpdate(%q) = %q, want substring %q", tt.newStatus, got, tt.want)
		}
		if !strings.Contains(got, "ord_1") {
			t.Errorf("formatStatusUpdate(%q) = %q, missing order id", tt.newStatus, got)
		}
	}
}

func TestFormatOrderPlaced(t *testing.T) {
	msg := &models.OrderPlacedMessage{
		OrderID:   "ord_7",
		Total:     2350,
		ItemCount: 3,
		Timestamp: time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC),
	}
	got := formatOrderPlaced(msg)
	for _, want := range []string{"ord_7", "3 item(s)", "$23.50"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatOrderPlaced = %q, want substring %q", got, want)
		}
	}
}
