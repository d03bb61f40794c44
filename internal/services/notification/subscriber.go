package notification

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/messaging"
	"cafe-ordering/internal/models"
)

// Subscriber consumes notification messages and prints them for the
// customer-facing console.
type Subscriber struct {
	consumer *messaging.Consumer
	logger   *logger.Logger

	// Graceful shutdown
	shutdown chan os.Signal
	done     chan bool
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(consumer *messaging.Consumer, logger *logger.Logger) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   logger,
		shutdown: make(chan os.Signal, 1),
		done:     make(chan bool, 1),
	}
}

// Start starts the notification subscriber
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)

	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	go func() {
		if err := s.consumer.StartConsuming(ctx, s.handleNotification); err != nil {
			s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
		}
		s.done <- true
	}()

	select {
	case <-s.shutdown:
		s.logger.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		return s.gracefulShutdown(requestID)
	case <-s.done:
		return nil
	}
}

// handleNotification processes one message off the notifications queue.
// The exchange carries two shapes: status updates (non-empty new_status)
// and order-placed events.
func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var statusUpdate models.StatusUpdateMessage
	if err := messaging.ParseMessage(body, &statusUpdate); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return fmt.Errorf("failed to parse notification: %w", err)
	}

	if statusUpdate.NewStatus == "" {
		var placed models.OrderPlacedMessage
		if err := messaging.ParseMessage(body, &placed); err != nil {
			s.logger.Error("message_parsing_failed", "Failed to parse order-placed message", requestID, err, nil)
			return fmt.Errorf("failed to parse notification: %w", err)
		}
		fmt.Println(formatOrderPlaced(&placed))
		s.logger.Info("notification_displayed", "Order-placed notification displayed", requestID, map[string]interface{}{
			"order_id":   placed.OrderID,
			"item_count": placed.ItemCount,
		})
		return nil
	}

	if !models.ValidOrderStatus(statusUpdate.NewStatus) {
		// Requeueing would loop forever on the same bad message; drop it.
		s.logger.Error("unknown_status", "Dropping notification with unknown status", requestID, nil, map[string]interface{}{
			"order_id":   statusUpdate.OrderID,
			"new_status": statusUpdate.NewStatus,
		})
		return nil
	}

	fmt.Println(formatStatusUpdate(&statusUpdate))

	s.logger.Info("notification_displayed", "Status notification displayed", requestID, map[string]interface{}{
		"order_id":   statusUpdate.OrderID,
		"old_status": statusUpdate.OldStatus,
		"new_status": statusUpdate.NewStatus,
		"timestamp":  statusUpdate.Timestamp.Format("2006-01-02 15:04:05"),
	})

	return nil
}

// formatOrderPlaced renders the confirmation shown right after checkout.
func formatOrderPlaced(msg *models.OrderPlacedMessage) string {
	return fmt.Sprintf(
		"🧾 [%s] Order %s placed: %d item(s), total $%s. We'll let you know when it's ready.",
		msg.Timestamp.Format("2006-01-02 15:04:05"),
		msg.OrderID,
		msg.ItemCount,
		msg.Total.String(),
	)
}

// formatStatusUpdate renders a human-readable status change.
func formatStatusUpdate(msg *models.StatusUpdateMessage) string {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")

	switch models.OrderStatus(msg.NewStatus) {
	case models.StatusPreparing:
		return fmt.Sprintf(
			"☕ [%s] Order %s is now being prepared.",
			timestamp,
			msg.OrderID,
		)
	case models.StatusReady:
		return fmt.Sprintf(
			"✅ [%s] Order %s is ready for pickup!",
			timestamp,
			msg.OrderID,
		)
	case models.StatusCompleted:
		return fmt.Sprintf(
			"🎉 [%s] Order %s has been picked up. Thank you, come again!",
			timestamp,
			msg.OrderID,
		)
	case models.StatusCancelled:
		return fmt.Sprintf(
			"❌ [%s] Order %s has been cancelled.",
			timestamp,
			msg.OrderID,
		)
	default:
		return fmt.Sprintf(
			"📋 [%s] Order %s status changed from '%s' to '%s'.",
			timestamp,
			msg.OrderID,
			msg.OldStatus,
			msg.NewStatus,
		)
	}
}

// gracefulShutdown handles graceful shutdown of the subscriber
func (s *Subscriber) gracefulShutdown(requestID string) error {
	s.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)

	if s.consumer != nil {
		s.consumer.Close()
	}

	s.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)
	return nil
}
