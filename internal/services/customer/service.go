package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/semaphore"

	"cafe-ordering/internal/database"
	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/messaging"
	"cafe-ordering/internal/models"
)

// ErrUnauthorized is returned for unknown or missing session tokens.
var ErrUnauthorized = errors.New("invalid session token")

// ErrNotFound is returned when the requested resource does not belong to
// the session user.
var ErrNotFound = errors.New("not found")

// ErrInvalidQuantity rejects quantities below 1; entries are removed,
// never persisted at zero.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// ErrInvalidAmount rejects zero or negative payment amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// ValidationError marks a rejected request payload, so handlers can map
// it to a 400 without guessing at the cause of a failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// ProcessorGateway is the slice of the payment processor the service
// needs: intent creation with the secret API key.
type ProcessorGateway interface {
	CreateIntent(ctx context.Context, amount models.Cents) (string, error)
}

// Service implements the customer API: cart, payment intents, orders.
type Service struct {
	db        *database.DB
	publisher *messaging.Publisher
	processor ProcessorGateway
	logger    *logger.Logger
	sem       *semaphore.Weighted
}

// NewService creates the customer service. maxConcurrent bounds in-flight
// order creations.
func NewService(db *database.DB, publisher *messaging.Publisher, processor ProcessorGateway, log *logger.Logger, maxConcurrent int) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		db:        db,
		publisher: publisher,
		processor: processor,
		logger:    log,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// ResolveSession maps a bearer token to its user ID.
func (s *Service) ResolveSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	var userID string
	err := s.db.QueryRow(ctx, database.GetSessionUserSQL, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("session lookup: %w", err)
	}
	return userID, nil
}

// GetCart returns the user's current cart entries.
func (s *Service) GetCart(ctx context.Context, userID string) ([]models.CartEntry, error) {
	rows, err := s.db.Query(ctx, database.GetCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	entries := make([]models.CartEntry, 0)
	for rows.Next() {
		var e models.CartEntry
		var unitPrice int64
		if err := rows.Scan(&e.ID, &e.MenuItemID, &e.Name, &unitPrice, &e.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart entry: %w", err)
		}
		e.UnitPrice = models.Cents(unitPrice)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart entries: %w", err)
	}

	return entries, nil
}

// UpdateQuantity sets the quantity of one of the user's cart entries.
func (s *Service) UpdateQuantity(ctx context.Context, userID, entryID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	tag, err := s.db.Pool.Exec(ctx, database.UpdateCartQuantitySQL, quantity, entryID, userID)
	if err != nil {
		return fmt.Errorf("update cart entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveEntry deletes one of the user's cart entries.
func (s *Service) RemoveEntry(ctx context.Context, userID, entryID string) error {
	tag, err := s.db.Pool.Exec(ctx, database.RemoveCartItemSQL, entryID, userID)
	if err != nil {
		return fmt.Errorf("remove cart entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCart deletes all of the user's cart entries.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.db.Exec(ctx, database.ClearCartSQL, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// CreatePaymentIntent relays an authorization request to the processor.
// Intents are never cached; each call produces a fresh one.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID string, amount models.Cents, requestID string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	clientSecret, err := s.processor.CreateIntent(ctx, amount)
	if err != nil {
		s.logger.Error("intent_creation_failed", "Processor rejected intent creation", requestID, err, map[string]interface{}{
			"amount": int64(amount),
		})
		return "", fmt.Errorf("create payment intent: %w", err)
	}

	s.logger.Debug("intent_created", "Payment intent created", requestID, map[string]interface{}{
		"amount": int64(amount),
	})
	return clientSecret, nil
}

// CreateOrder records a paid order. The idempotency key makes the call
// safe against reconciled retries: a second request with the same key
// returns the already-recorded order instead of creating another.
func (s *Service) CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest, requestID string) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire order slot: %w", err)
	}
	defer s.sem.Release(1)

	if existing, err := s.findByIdempotencyKey(ctx, userID, req.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		s.logger.Info("order_replayed", "Returning existing order for idempotency key", requestID, map[string]interface{}{
			"order_id": existing.ID,
		})
		return existing, nil
	}

	order := &models.Order{
		ID:     uuid.NewString(),
		Items:  req.Items,
		Total:  req.Total,
		Status: models.StatusPending,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, database.InsertOrderSQL,
		order.ID, userID, int64(order.Total), string(order.Status), req.IdempotencyKey,
	).Scan(&order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.Exec(ctx, database.InsertOrderItemSQL,
			order.ID, item.MenuItemID, item.Name, int64(item.UnitPrice), item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, database.InsertOrderStatusLogSQL, order.ID, string(order.Status), "customer-api"); err != nil {
		return nil, fmt.Errorf("insert status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	// The order is durable; a notification failure is logged, not
	// surfaced to the paying customer.
	if s.publisher != nil {
		if err := s.publisher.PublishNotification(ctx, models.NewOrderPlacedMessage(order)); err != nil {
			s.logger.Error("notification_publish_failed", "Failed to publish order-placed event", requestID, err, map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}

	s.logger.Info("order_created", "Order recorded", requestID, map[string]interface{}{
		"order_id": order.ID,
		"total":    int64(order.Total),
	})
	return order, nil
}

// ListOrders returns all of the user's orders, newest first, with items.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := s.db.Query(ctx, database.ListOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		var o models.Order
		var total int64
		var status string
		if err := rows.Scan(&o.ID, &total, &status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Total = models.Cents(total)
		o.Status = models.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// GetOrder returns a single order with its item breakdown.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.scanOrder(s.db.QueryRow(ctx, database.GetOrderSQL, orderID, userID))
	if err != nil {
		return nil, err
	}

	items, err := s.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// HealthCheck reports whether the service's dependencies are reachable.
func (s *Service) HealthCheck(ctx context.Context) bool {
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health_check_failed", "Database ping failed", "", err, nil)
		return false
	}
	return true
}

func (s *Service) findByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	order, err := s.scanOrder(s.db.QueryRow(ctx, database.GetOrderByIdempotencyKeySQL, userID, key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	items, err := s.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *Service) scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var total int64
	var status string
	err := row.Scan(&o.ID, &total, &status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Total = models.Cents(total)
	o.Status = models.OrderStatus(status)
	return &o, nil
}

func (s *Service) orderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := s.db.Query(ctx, database.GetOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var item models.OrderItem
		var unitPrice int64
		if err := rows.Scan(&item.MenuItemID, &item.Name, &unitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.UnitPrice = models.Cents(unitPrice)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}
