// Package payment holds the payment intent broker and the processor
// contract. The broker performs no payment logic itself; it relays the
// backend's authorization endpoint and the processor's confirmation call.
package payment

import (
	"context"
	"fmt"

	"cafe-ordering/internal/models"
)

// IntentCreationError reports a failed intent request. No charge occurred
// and the attempt is safe to retry; the orchestrator decides whether to.
type IntentCreationError struct {
	Err error
}

func (e *IntentCreationError) Error() string {
	return fmt.Sprintf("payment intent creation failed: %v", e.Err)
}

func (e *IntentCreationError) Unwrap() error { return e.Err }

// PaymentError reports a processor decline or error. No charge occurred.
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed: %v", e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// IntentBackend is the slice of the backend the broker depends on.
type IntentBackend interface {
	CreatePaymentIntent(ctx context.Context, token string, amount models.Cents) (string, error)
}

// Processor confirms card payments against an already-created intent.
// Only the ProcessorSucceeded status counts as success.
type Processor interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, method models.PaymentMethod) (string, error)
}

// Broker requests payment authorization handles from the backend. It does
// not cache intents across calls; every checkout attempt gets a fresh one.
type Broker struct {
	backend IntentBackend
}

// NewBroker creates a broker over the given backend gateway.
func NewBroker(backend IntentBackend) *Broker {
	return &Broker{backend: backend}
}

// CreateIntent requests an authorization handle for the given amount in
// minor units. The amount must be the cart total frozen at the moment
// checkout began.
func (b *Broker) CreateIntent(ctx context.Context, token string, amount models.Cents) (*models.PaymentIntent, error) {
	if amount <= 0 {
		return nil, &IntentCreationError{Err: fmt.Errorf("amount must be positive, got %d", amount)}
	}

	clientSecret, err := b.backend.CreatePaymentIntent(ctx, token, amount)
	if err != nil {
		return nil, &IntentCreationError{Err: err}
	}

	return &models.PaymentIntent{
		ClientSecret: clientSecret,
		Amount:       amount,
		Status:       models.IntentCreated,
	}, nil
}
