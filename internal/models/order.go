package models

import (
	"fmt"
	"time"
)

// OrderStatus represents the fulfillment status of an order. Transitions
// happen on the server side only; the client observes them.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPreparing OrderStatus = "Preparing"
	StatusReady     OrderStatus = "Ready for Pickup"
	StatusCompleted OrderStatus = "Completed"
	StatusCancelled OrderStatus = "Cancelled"
)

// ValidOrderStatus reports whether s is a known fulfillment status.
func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// OrderItem is a frozen copy of a cart entry at confirmation time.
type OrderItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  Cents  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// Subtotal returns unit price times quantity for this item.
func (i OrderItem) Subtotal() Cents {
	return i.UnitPrice.Times(i.Quantity)
}

// Order represents a placed order. Immutable except for Status.
type Order struct {
	ID        string      `json:"id"`
	Items     []OrderItem `json:"items"`
	Total     Cents       `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateOrderRequest is the payload of POST /customer/orders. The
// idempotency key is generated once per checkout attempt so a reconciled
// retry cannot create a second order for the same payment.
type CreateOrderRequest struct {
	Items          []OrderItem `json:"items"`
	Total          Cents       `json:"total"`
	IdempotencyKey string      `json:"idempotency_key"`
}

// OrderItemsFromCart freezes cart entries into order items.
func OrderItemsFromCart(entries []CartEntry) []OrderItem {
	items := make([]OrderItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, OrderItem{
			MenuItemID: e.MenuItemID,
			Name:       e.Name,
			UnitPrice:  e.UnitPrice,
			Quantity:   e.Quantity,
		})
	}
	return items
}

// Validate checks the create order request
func (req *CreateOrderRequest) Validate() error {
	if len(req.Items) == 0 {
		return fmt.Errorf("items array cannot be empty")
	}
	if len(req.Items) > 20 {
		return fmt.Errorf("items array cannot contain more than 20 items")
	}

	var sum Cents
	for i, item := range req.Items {
		if err := validateOrderItem(item, i); err != nil {
			return err
		}
		sum += item.Subtotal()
	}

	if req.Total != sum {
		return fmt.Errorf("total %s does not match sum of items %s", req.Total, sum)
	}
	if req.IdempotencyKey == "" {
		return fmt.Errorf("idempotency_key is required")
	}

	return nil
}

func validateOrderItem(item OrderItem, index int) error {
	prefix := fmt.Sprintf("items[%d]", index)

	if len(item.Name) == 0 {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if len(item.Name) > 50 {
		return fmt.Errorf("%s.name must not exceed 50 characters", prefix)
	}
	if item.Quantity < 1 || item.Quantity > 50 {
		return fmt.Errorf("%s.quantity must be between 1 and 50", prefix)
	}
	if item.UnitPrice < 1 {
		return fmt.Errorf("%s.unit_price must be positive", prefix)
	}

	return nil
}
