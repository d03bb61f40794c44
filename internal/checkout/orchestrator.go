// Package checkout sequences one payment attempt: snapshot the cart
// total, acquire a payment intent, confirm it with the processor, then
// submit the order. Pre-payment failures are retryable; a failure after
// the money has moved is orphaned and never retried automatically.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/models"
	"cafe-ordering/internal/payment"
)

// State is the orchestrator's position in one checkout attempt.
type State string

const (
	StateIdle             State = "idle"
	StateRequesting       State = "requesting"
	StateIntentReady      State = "intent_ready"
	StateConfirming       State = "confirming"
	StatePaymentConfirmed State = "payment_confirmed"
	StateSubmittingOrder  State = "submitting_order"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StatePaymentOrphaned  State = "payment_orphaned"
)

// FailureReason classifies a Failed state. All of these are pre-payment:
// no charge occurred and the user may retry.
type FailureReason string

const (
	ReasonNone         FailureReason = ""
	ReasonIntentError  FailureReason = "intent_error"
	ReasonPaymentError FailureReason = "payment_error"
	ReasonTimeout      FailureReason = "timeout"
)

// ErrCheckoutInProgress is returned when a new attempt is started while
// a previous one has not reached a terminal or retryable state.
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// ErrPaymentOrphaned is returned when a new attempt is started after a
// payment succeeded without a recorded order. The money has moved exactly
// once; retrying the whole flow could charge twice. The orphan must be
// acknowledged after manual reconciliation before checking out again.
var ErrPaymentOrphaned = errors.New("previous payment succeeded but no order was recorded; contact support before retrying")

// ErrConfirmTimeout is returned when the processor confirmation exceeds
// its upper bound. The underlying call may still complete server-side, so
// the user is told to check order history before retrying.
var ErrConfirmTimeout = errors.New("payment confirmation timed out; check order history before retrying")

// OrderSubmissionError reports an order-creation failure after the
// payment was already confirmed.
type OrderSubmissionError struct {
	Err error
}

func (e *OrderSubmissionError) Error() string {
	return fmt.Sprintf("order submission failed after confirmed payment: %v", e.Err)
}

func (e *OrderSubmissionError) Unwrap() error { return e.Err }

// CartStore is the slice of the cart the orchestrator depends on.
type CartStore interface {
	Entries() []models.CartEntry
	Clear(ctx context.Context, token string) error
}

// IntentBroker requests payment authorization handles.
type IntentBroker interface {
	CreateIntent(ctx context.Context, token string, amount models.Cents) (*models.PaymentIntent, error)
}

// OrderBackend records paid orders.
type OrderBackend interface {
	CreateOrder(ctx context.Context, token string, req *models.CreateOrderRequest) (*models.Order, error)
}

// Observer is notified of state transitions, typically by a UI. After
// Cancel it stops being called; the attempt itself keeps resolving.
type Observer func(state State, reason FailureReason)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfirmTimeout overrides the upper bound on processor confirmation.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.confirmTimeout = d }
}

// WithObserver registers a transition observer.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

const defaultConfirmTimeout = 60 * time.Second

// Orchestrator drives one checkout attempt at a time.
type Orchestrator struct {
	cart      CartStore
	broker    IntentBroker
	processor payment.Processor
	orders    OrderBackend
	logger    *logger.Logger

	confirmTimeout time.Duration
	observer       Observer

	mu           sync.Mutex
	state        State
	reason       FailureReason
	frozenAmount models.Cents
	cancelled    bool
	lastOrder    *models.Order
}

// New creates an orchestrator in the Idle state.
func New(cart CartStore, broker IntentBroker, processor payment.Processor, orders OrderBackend, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:           cart,
		broker:         broker,
		processor:      processor,
		orders:         orders,
		logger:         log,
		confirmTimeout: defaultConfirmTimeout,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state and, when Failed, its reason.
func (o *Orchestrator) State() (State, FailureReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.reason
}

// FrozenAmount returns the total locked in for the current or most
// recent attempt.
func (o *Orchestrator) FrozenAmount() models.Cents {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frozenAmount
}

// LastOrder returns the order recorded by the most recent completed
// attempt, or nil.
func (o *Orchestrator) LastOrder() *models.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastOrder
}

// Cancel requests a soft cancellation: observer notifications stop, but
// in-flight network calls are not revocable, so the attempt continues to
// its natural resolution. A payment that still succeeds is still followed
// by order submission rather than dropped.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelled = true
}

// AcknowledgeOrphan returns the orchestrator to Idle after a
// PaymentOrphaned attempt has been reconciled out of band.
func (o *Orchestrator) AcknowledgeOrphan() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StatePaymentOrphaned {
		return fmt.Errorf("no orphaned payment to acknowledge (state %s)", o.state)
	}
	o.state = StateIdle
	o.reason = ReasonNone
	return nil
}

// Checkout runs one attempt end to end and returns the recorded order on
// success. The cart total is frozen before the intent is requested and
// held for the whole attempt; concurrent cart mutations do not affect it.
func (o *Orchestrator) Checkout(ctx context.Context, token string, method models.PaymentMethod) (*models.Order, error) {
	requestID := logger.GenerateRequestID()

	o.mu.Lock()
	if o.state == StatePaymentOrphaned {
		o.mu.Unlock()
		return nil, ErrPaymentOrphaned
	}
	if o.inFlightLocked() {
		o.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}

	// Freeze the attempt: items and amount are snapshotted together so
	// the intent amount and the submitted order always agree, whatever
	// happens to the live cart meanwhile.
	items := models.OrderItemsFromCart(o.cart.Entries())
	var amount models.Cents
	for _, item := range items {
		amount += item.Subtotal()
	}
	idempotencyKey := uuid.NewString()

	o.cancelled = false
	o.reason = ReasonNone
	o.lastOrder = nil
	o.frozenAmount = amount
	o.state = StateRequesting
	o.mu.Unlock()
	o.notify(StateRequesting, ReasonNone)

	o.logger.Info("checkout_started", "Checkout attempt started", requestID, map[string]interface{}{
		"amount":          int64(amount),
		"item_count":      len(items),
		"idempotency_key": idempotencyKey,
	})

	// A fresh intent per attempt: amounts change and processors reject
	// reused secrets.
	intent, err := o.broker.CreateIntent(ctx, token, amount)
	if err != nil {
		o.fail(ReasonIntentError)
		o.logger.Error("intent_creation_failed", "Failed to create payment intent", requestID, err, nil)
		return nil, err
	}
	o.transition(StateIntentReady)

	o.transition(StateConfirming)
	confirmCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	status, err := o.processor.ConfirmCardPayment(confirmCtx, intent.ClientSecret, method)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// The intent's outcome is unknown; it is deliberately not
			// marked failed.
			o.fail(ReasonTimeout)
			o.logger.Error("payment_confirmation_timeout", "Processor confirmation exceeded upper bound", requestID, err, nil)
			return nil, ErrConfirmTimeout
		}
		intent.Status = models.IntentFailed
		o.fail(ReasonPaymentError)
		o.logger.Error("payment_failed", "Processor confirmation failed", requestID, err, nil)
		var paymentErr *payment.PaymentError
		if errors.As(err, &paymentErr) {
			return nil, err
		}
		return nil, &payment.PaymentError{Err: err}
	}
	if status != models.ProcessorSucceeded {
		intent.Status = models.IntentFailed
		o.fail(ReasonPaymentError)
		o.logger.Error("payment_not_succeeded", "Processor reported non-success status", requestID, nil, map[string]interface{}{
			"status": status,
		})
		return nil, &payment.PaymentError{Err: fmt.Errorf("processor status %q", status)}
	}
	intent.Status = models.IntentConfirmed
	o.transition(StatePaymentConfirmed)

	// The money has moved. From here a failure is an orphaned payment,
	// never a retryable one.
	o.transition(StateSubmittingOrder)
	order, err := o.orders.CreateOrder(ctx, token, &models.CreateOrderRequest{
		Items:          items,
		Total:          amount,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		o.mu.Lock()
		o.state = StatePaymentOrphaned
		o.mu.Unlock()
		o.notify(StatePaymentOrphaned, ReasonNone)
		o.logger.Error("order_submission_failed", "Payment succeeded but order was not recorded", requestID, err, map[string]interface{}{
			"amount":          int64(amount),
			"idempotency_key": idempotencyKey,
		})
		return nil, &OrderSubmissionError{Err: err}
	}

	// The cart is cleared only after the order exists. A clear failure
	// leaves stale entries, not lost money, so the attempt still counts
	// as completed.
	if err := o.cart.Clear(ctx, token); err != nil {
		o.logger.Error("cart_clear_failed", "Order recorded but cart clear failed", requestID, err, map[string]interface{}{
			"order_id": order.ID,
		})
	}

	o.mu.Lock()
	o.lastOrder = order
	o.state = StateCompleted
	o.mu.Unlock()
	o.notify(StateCompleted, ReasonNone)

	o.logger.Info("checkout_completed", "Order recorded and cart cleared", requestID, map[string]interface{}{
		"order_id": order.ID,
		"total":    int64(order.Total),
	})
	return order, nil
}

func (o *Orchestrator) inFlightLocked() bool {
	switch o.state {
	case StateRequesting, StateIntentReady, StateConfirming, StatePaymentConfirmed, StateSubmittingOrder:
		return true
	}
	return false
}

func (o *Orchestrator) transition(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
	o.notify(state, ReasonNone)
}

func (o *Orchestrator) fail(reason FailureReason) {
	o.mu.Lock()
	o.state = StateFailed
	o.reason = reason
	o.mu.Unlock()
	o.notify(StateFailed, reason)
}

// notify forwards a transition to the observer unless the attempt was
// cancelled. The observer runs outside the lock so it may query state.
func (o *Orchestrator) notify(state State, reason FailureReason) {
	if o.observer == nil {
		return
	}
	o.mu.Lock()
	suppressed := o.cancelled
	o.mu.Unlock()
	if !suppressed {
		o.observer(state, reason)
	}
}
