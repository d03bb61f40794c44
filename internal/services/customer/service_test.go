package customer

import (
	"context"
	"errors"
	"testing"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/models"
)

// Validation runs before any dependency is touched, so these tests can
// build the service with nil storage and messaging.
func testService() *Service {
	return NewService(nil, nil, nil, logger.New("customer-test"), 1)
}

func TestCreateOrderRejectsInvalidRequest(t *testing.T) {
	svc := testService()

	tests := []struct {
		name string
		req  models.CreateOrderRequest
	}{
		{
			name: "empty items",
			req:  models.CreateOrderRequest{IdempotencyKey: "key_1"},
		},
		{
			name: "total mismatch",
			req: models.CreateOrderRequest{
				Items:          []models.OrderItem{{MenuItemID: "m1", Name: "Latte", UnitPrice: 450, Quantity: 2}},
				Total:          450,
				IdempotencyKey: "key_2",
			},
		},
		{
			name: "missing idempotency key",
			req: models.CreateOrderRequest{
				Items: []models.OrderItem{{MenuItemID: "m1", Name: "Latte", UnitPrice: 450, Quantity: 2}},
				Total: 900,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), "user_1", &tt.req, "req_test")
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreatePaymentIntentRejectsNonPositiveAmount(t *testing.T) {
	svc := testService()

	for _, amount := range []models.Cents{0, -100} {
		_, err := svc.CreatePaymentIntent(context.Background(), "user_1", amount, "req_test")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestResolveSessionRejectsEmptyToken(t *testing.T) {
	svc := testService()

	if _, err := svc.ResolveSession(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}
