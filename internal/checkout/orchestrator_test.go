package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/models"
	"cafe-ordering/internal/payment"
)

type fakeCart struct {
	mu       sync.Mutex
	entries  []models.CartEntry
	cleared  bool
	clearErr error
}

func (f *fakeCart) Entries() []models.CartEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CartEntry(nil), f.entries...)
}

func (f *fakeCart) Clear(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	f.entries = nil
	return nil
}

func (f *fakeCart) add(entry models.CartEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

type fakeBroker struct {
	err        error
	calls      int
	amounts    []models.Cents
	onCreate   func()
	lastIntent *models.PaymentIntent
}

func (f *fakeBroker) CreateIntent(ctx context.Context, token string, amount models.Cents) (*models.PaymentIntent, error) {
	f.calls++
	f.amounts = append(f.amounts, amount)
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.err != nil {
		return nil, f.err
	}
	f.lastIntent = &models.PaymentIntent{
		ClientSecret: fmt.Sprintf("pi_secret_%d", f.calls),
		Amount:       amount,
		Status:       models.IntentCreated,
	}
	return f.lastIntent, nil
}

type fakeProcessor struct {
	status    string
	err       error
	onConfirm func(ctx context.Context) error
}

func (f *fakeProcessor) ConfirmCardPayment(ctx context.Context, clientSecret string, method models.PaymentMethod) (string, error) {
	if f.onConfirm != nil {
		if err := f.onConfirm(ctx); err != nil {
			return "", err
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.status, nil
}

type fakeOrders struct {
	err      error
	calls    int
	requests []*models.CreateOrderRequest
}

func (f *fakeOrders) CreateOrder(ctx context.Context, token string, req *models.CreateOrderRequest) (*models.Order, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{
		ID:        fmt.Sprintf("ord_%d", f.calls),
		Items:     req.Items,
		Total:     req.Total,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func latteCart() *fakeCart {
	return &fakeCart{
		entries: []models.CartEntry{
			{ID: "e1", MenuItemID: "m1", Name: "Latte", UnitPrice: 450, Quantity: 2},
		},
	}
}

func newOrchestrator(cart *fakeCart, broker *fakeBroker, proc *fakeProcessor, orders *fakeOrders, opts ...Option) *Orchestrator {
	return New(cart, broker, proc, orders, logger.New("checkout-test"), opts...)
}

func TestCheckoutHappyPath(t *testing.T) {
	cart := latteCart()
	broker := &fakeBroker{}
	proc := &fakeProcessor{status: models.ProcessorSucceeded}
	orders := &fakeOrders{}
	o := newOrchestrator(cart, broker, proc, orders)

	order, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{CardNumber: "4242424242424242"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if broker.amounts[0] != 900 {
		t.Errorf("intent amount = %d, want 900", broker.amounts[0])
	}
	if order.Total != 900 {
		t.Errorf("order total = %d, want 900", order.Total)
	}
	if order.Status != models.StatusPending {
		t.Errorf("order status = %q, want %q", order.Status, models.StatusPending)
	}
	if !cart.cleared {
		t.Errorf("cart was not cleared after completed checkout")
	}
	if state, _ := o.State(); state != StateCompleted {
		t.Errorf("state = %q, want %q", state, StateCompleted)
	}
	if o.LastOrder() == nil || o.LastOrder().ID != order.ID {
		t.Errorf("LastOrder not recorded")
	}
}

func TestCheckoutFreezesAmount(t *testing.T) {
	cart := &fakeCart{
		entries: []models.CartEntry{
			{ID: "e1", MenuItemID: "m1", Name: "Flat White", UnitPrice: 2350, Quantity: 1},
		},
	}
	broker := &fakeBroker{}
	// Another tab adds an item while the intent request is in flight.
	broker.onCreate = func() {
		cart.add(models.CartEntry{ID: "e2", MenuItemID: "m2", Name: "Muffin", UnitPrice: 300, Quantity: 1})
	}
	proc := &fakeProcessor{status: models.ProcessorSucceeded}
	orders := &fakeOrders{}
	o := newOrchestrator(cart, broker, proc, orders)

	order, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if broker.amounts[0] != 2350 {
		t.Errorf("intent amount = %d, want frozen 2350", broker.amounts[0])
	}
	if order.Total != 2350 {
		t.Errorf("order total = %d, want frozen 2350", order.Total)
	}
	if o.FrozenAmount() != 2350 {
		t.Errorf("FrozenAmount = %d, want 2350", o.FrozenAmount())
	}
}

func TestIntentFailureIsRetryable(t *testing.T) {
	cart := latteCart()
	broker := &fakeBroker{err: &payment.IntentCreationError{Err: fmt.Errorf("backend down")}}
	proc := &fakeProcessor{status: models.ProcessorSucceeded}
	orders := &fakeOrders{}
	o := newOrchestrator(cart, broker, proc, orders)

	_, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
	var intentErr *payment.IntentCreationError
	if !errors.As(err, &intentErr) {
		t.Fatalf("expected IntentCreationError, got %v", err)
	}

	state, reason := o.State()
	if state != StateFailed || reason != ReasonIntentError {
		t.Errorf("state = %q/%q, want failed/intent_error", state, reason)
	}
	if orders.calls != 0 {
		t.Errorf("order submitted despite failed intent")
	}
	if cart.cleared {
		t.Errorf("cart cleared despite failed intent")
	}

	// Nothing was charged; a retry must be allowed and must use a fresh intent.
	broker.err = nil
	if _, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{}); err != nil {
		t.Fatalf("retry after pre-payment failure: %v", err)
	}
	if broker.calls != 2 {
		t.Errorf("broker called %d times, want 2 (fresh intent per attempt)", broker.calls)
	}
}

func TestProcessorDecline(t *testing.T) {
	cart := latteCart()
	broker := &fakeBroker{}
	proc := &fakeProcessor{err: &payment.PaymentError{Err: fmt.Errorf("card declined")}}
	orders := &fakeOrders{}
	o := newOrchestrator(cart, broker, proc, orders)

	_, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
	var payErr *payment.PaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected PaymentError, got %v", err)
	}
	state, reason := o.State()
	if state != StateFailed || reason != ReasonPaymentError {
		t.Errorf("state = %q/%q, want failed/payment_error", state, reason)
	}
	if cart.cleared || orders.calls != 0 {
		t.Errorf("side effects after declined payment")
	}
	if broker.lastIntent.Status != models.IntentFailed {
		t.Errorf("intent status = %q, want %q", broker.lastIntent.Status, models.IntentFailed)
	}
}

func TestNonSucceededStatusIsFailure(t *testing.T) {
	cart := latteCart()
	broker := &fakeBroker{}
	o := newOrchestrator(cart, broker, &fakeProcessor{status: "requires_action"}, &fakeOrders{})

	_, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
	var payErr *payment.PaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected PaymentError for non-succeeded status, got %v", err)
	}
	if broker.lastIntent.Status != models.IntentFailed {
		t.Errorf("intent status = %q, want %q", broker.lastIntent.Status, models.IntentFailed)
	}
}

func TestOrderSubmissionFailureOrphansPayment(t *testing.T) {
	cart := latteCart()
	broker := &fakeBroker{}
	proc := &fakeProcessor{status: models.ProcessorSucceeded}
	orders := &fakeOrders{err: fmt.Errorf("orders endpoint timeout")}
	o := newOrchestrator(cart, broker, proc, orders)

	_, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
	var subErr *OrderSubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected OrderSubmissionError, got %v", err)
	}
	if state, _ := o.State(); state != StatePaymentOrphaned {
		t.Errorf("state = %q, want %q", state, StatePaymentOrphaned)
	}
	if cart.cleared {
		t.Errorf("cart cleared although the order was never recorded")
	}

	// The money moved exactly once: a new attempt must be refused, not
	// silently retried.
	if _, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{}); !errors.Is(err, ErrPaymentOrphaned) {
		t.Fatalf("expected ErrPaymentOrphaned on re-attempt, got %v", err)
	}
	if broker.calls != 1 {
		t.Errorf("broker called %d times, want 1 (no auto-retry)", broker.calls)
	}

	// After manual reconciliation the orchestrator returns to Idle.
	if err := o.AcknowledgeOrphan(); err != nil {
		t.Fatalf("AcknowledgeOrphan: %v", err)
	}
	orders.err = nil
	if _, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{}); err != nil {
		t.Fatalf("checkout after acknowledged orphan: %v", err)
	}
}

func TestReentrancyGuard(t *testing.T) {
	cart := latteCart()
	confirmStarted := make(chan struct{})
	release := make(chan struct{})
	proc := &fakeProcessor{
		status: models.ProcessorSucceeded,
		onConfirm: func(ctx context.Context) error {
			close(confirmStarted)
			<-release
			return nil
		},
	}
	o := newOrchestrator(cart, &fakeBroker{}, proc, &fakeOrders{})

	done := make(chan error, 1)
	go func() {
		_, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
		done <- err
	}()

	<-confirmStarted
	if _, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{}); !errors.Is(err, ErrCheckoutInProgress) {
		t.Errorf("expected ErrCheckoutInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first checkout: %v", err)
	}
}

func TestCancelSuppressesObserverButSubmitsOrder(t *testing.T) {
	cart := latteCart()
	orders := &fakeOrders{}

	var mu sync.Mutex
	var observed []State

	var o *Orchestrator
	proc := &fakeProcessor{
		status: models.ProcessorSucceeded,
		onConfirm: func(ctx context.Context) error {
			// The user closes the dialog while confirmation is in flight.
			o.Cancel()
			return nil
		},
	}
	o = newOrchestrator(cart, &fakeBroker{}, proc, orders, WithObserver(func(state State, reason FailureReason) {
		mu.Lock()
		observed = append(observed, state)
		mu.Unlock()
	}))

	order, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order == nil {
		t.Fatalf("resolved payment must still produce an order")
	}
	if orders.calls != 1 {
		t.Errorf("order submitted %d times, want 1", orders.calls)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, state := range observed {
		if state == StatePaymentConfirmed || state == StateSubmittingOrder || state == StateCompleted {
			t.Errorf("observer notified of %q after cancellation", state)
		}
	}
	// Internally the attempt still ran to completion.
	if state, _ := o.State(); state != StateCompleted {
		t.Errorf("state = %q, want %q", state, StateCompleted)
	}
}

func TestConfirmationTimeout(t *testing.T) {
	cart := latteCart()
	proc := &fakeProcessor{
		onConfirm: func(ctx context.Context) error {
			<-ctx.Done()
			return fmt.Errorf("confirm abandoned: %w", ctx.Err())
		},
	}
	o := newOrchestrator(cart, &fakeBroker{}, proc, &fakeOrders{}, WithConfirmTimeout(20*time.Millisecond))

	_, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{})
	if !errors.Is(err, ErrConfirmTimeout) {
		t.Fatalf("expected ErrConfirmTimeout, got %v", err)
	}
	state, reason := o.State()
	if state != StateFailed || reason != ReasonTimeout {
		t.Errorf("state = %q/%q, want failed/timeout", state, reason)
	}
}

func TestIdempotencyKeyPerAttempt(t *testing.T) {
	cart := latteCart()
	orders := &fakeOrders{}
	o := newOrchestrator(cart, &fakeBroker{}, &fakeProcessor{status: models.ProcessorSucceeded}, orders)

	if _, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{}); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	cart.add(models.CartEntry{ID: "e9", MenuItemID: "m9", Name: "Mocha", UnitPrice: 500, Quantity: 1})
	if _, err := o.Checkout(context.Background(), "tok", models.PaymentMethod{}); err != nil {
		t.Fatalf("second checkout: %v", err)
	}

	if len(orders.requests) != 2 {
		t.Fatalf("expected 2 order requests, got %d", len(orders.requests))
	}
	if orders.requests[0].IdempotencyKey == orders.requests[1].IdempotencyKey {
		t.Errorf("idempotency key reused across attempts")
	}
	if orders.requests[0].IdempotencyKey == "" {
		t.Errorf("idempotency key missing")
	}
}
