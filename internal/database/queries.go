package database

// Session queries
const (
	GetSessionUserSQL = `
		SELECT user_id FROM sessions WHERE token = $1`
)

// Cart queries
const (
	GetCartItemsSQL = `
		SELECT id, menu_item_id, name, unit_price, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at ASC`

	UpdateCartQuantitySQL = `
		UPDATE cart_items SET quantity = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3`

	RemoveCartItemSQL = `
		DELETE FROM cart_items WHERE id = $1 AND user_id = $2`

	ClearCartSQL = `
		DELETE FROM cart_items WHERE user_id = $1`
)

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (id, user_id, total, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by)
		VALUES ($1, $2, $3)`

	GetOrderByIdempotencyKeySQL = `
		SELECT id, total, status, created_at
		FROM orders
		WHERE user_id = $1 AND idempotency_key = $2`

	GetOrderSQL = `
		SELECT id, total, status, created_at
		FROM orders
		WHERE id = $1 AND user_id = $2`

	ListOrdersSQL = `
		SELECT id, total, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`

	GetOrderItemsSQL = `
		SELECT menu_item_id, name, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC`
)
