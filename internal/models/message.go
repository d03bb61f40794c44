package models

import "time"

// OrderPlacedMessage is published to the notifications fanout exchange
// when a paid order is recorded.
type OrderPlacedMessage struct {
	OrderID   string    `json:"order_id"`
	Total     Cents     `json:"total"`
	ItemCount int       `json:"item_count"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusUpdateMessage is published when staff tooling moves an order to
// a new fulfillment status. This core only consumes it.
type StatusUpdateMessage struct {
	OrderID   string    `json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderPlacedMessage builds the notification for a freshly recorded order.
func NewOrderPlacedMessage(order *Order) *OrderPlacedMessage {
	return &OrderPlacedMessage{
		OrderID:   order.ID,
		Total:     order.Total,
		ItemCount: len(order.Items),
		Timestamp: time.Now().UTC(),
	}
}
