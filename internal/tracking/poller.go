// Package tracking refreshes the current user's order list on a fixed
// interval, the client-side view of the order registry.
package tracking

import (
	"context"
	"sync"
	"time"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/models"
)

// OrderLister is the slice of the backend the poller depends on.
type OrderLister interface {
	ListOrders(ctx context.Context, token string) ([]models.Order, error)
}

// UpdateHandler receives each successful refresh.
type UpdateHandler func(orders []models.Order)

// ErrorHandler receives tick failures. Polling continues regardless;
// transient network issues must not freeze the view permanently.
type ErrorHandler func(err error)

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the refresh interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithErrorHandler registers a tick failure callback.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(p *Poller) { p.onError = fn }
}

const defaultInterval = 30 * time.Second

// Poller issues an immediate refresh on Start and another one every
// interval until Stop. Ticks are independent: a slow or failed tick does
// not block or cancel the next scheduled one. After Stop returns, no
// handler is invoked again; late in-flight responses are discarded.
//
// Handlers run outside the poller's lock and may use the poller freely,
// except that Stop must not be called synchronously from a handler
// (Stop waits for running handlers); stop from another goroutine instead.
type Poller struct {
	lister   OrderLister
	logger   *logger.Logger
	interval time.Duration
	onError  ErrorHandler

	mu       sync.Mutex
	stopped  bool
	stopCh   chan struct{}
	handlers sync.WaitGroup
}

// NewPoller creates a poller over the given order lister.
func NewPoller(lister OrderLister, log *logger.Logger, opts ...Option) *Poller {
	p := &Poller{
		lister:   lister,
		logger:   log,
		interval: defaultInterval,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling and returns immediately.
func (p *Poller) Start(ctx context.Context, token string, onUpdate UpdateHandler) {
	go p.tick(ctx, token, onUpdate)
	go p.loop(ctx, token, onUpdate)
}

// Stop ends polling and waits for any handler already running to return.
// Once Stop returns, neither onUpdate nor the error handler is called
// again.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	p.handlers.Wait()
}

func (p *Poller) loop(ctx context.Context, token string, onUpdate UpdateHandler) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Each tick runs on its own so a slow backend cannot make
			// the schedule drift or pile up behind one stuck call.
			go p.tick(ctx, token, onUpdate)
		}
	}
}

func (p *Poller) tick(ctx context.Context, token string, onUpdate UpdateHandler) {
	requestID := logger.GenerateRequestID()
	orders, err := p.lister.ListOrders(ctx, token)

	// Claim a handler slot. After Stop no slot is granted, so a late
	// response is discarded; slots already granted are joined by Stop.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.handlers.Add(1)
	p.mu.Unlock()
	defer p.handlers.Done()

	if err != nil {
		p.logger.Error("order_poll_failed", "Failed to refresh orders", requestID, err, nil)
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	p.logger.Debug("order_poll_completed", "Refreshed orders", requestID, map[string]interface{}{
		"order_count": len(orders),
	})
	onUpdate(orders)
}
