package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strhma/ukm-catalog/internal/domain/activity"
	"github.com/strhma/ukm-catalog/internal/domain/order"
	"github.com/strhma/ukm-catalog/internal/domain/product"
)

const (
	insertCustomerSQL = `INSERT INTO customers (user_id, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	insertOrderSQL = `INSERT INTO orders (
			id, order_number, customer_id, total_amount, status, payment_method,
			shipping_address, courier, shipping_service, shipping_cost, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)`

	// The guard (stock >= $2) is what keeps stock from going negative under
	// concurrent checkouts racing on the same product; callers must check the
	// affected-row count.
	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	restockItemsSQL = `UPDATE products p
		SET stock = p.stock + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id`

	orderColumns = `id, order_number, customer_id, total_amount, status, payment_method,
		shipping_address, courier, shipping_service, shipping_cost, notes, created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lockOrderStatusSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	getOrderItemsSQL = `SELECT product_id, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY id`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// RunCheckout executes fn inside a single transaction. Any error from fn
// rolls back every write; domain errors (insufficient stock, unavailable
// product) propagate unwrapped so the engine's taxonomy survives the round
// trip through the transaction helper.
func (s *OrderStore) RunCheckout(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin checkout tx")
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(ctx, &checkoutTx{tx: pgtx}); err != nil {
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit checkout tx")
	}
	return nil
}

// checkoutTx adapts a pgx transaction to the order.Tx contract.
type checkoutTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*checkoutTx)(nil)

func (t *checkoutTx) GetActiveByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return getActiveByIDs(ctx, t.tx, ids)
}

func (t *checkoutTx) InsertCustomer(ctx context.Context, c *order.Customer) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, insertCustomerSQL,
		c.UserID, c.Name, c.Email, c.Phone, c.Address,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert customer")
	}
	return id, nil
}

func (t *checkoutTx) InsertOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.CustomerID, o.Total, o.Status, o.PaymentMethod,
		o.ShippingAddress, o.Courier, o.ShippingService, o.ShippingCost, o.Notes,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.Number)
	}
	return nil
}

func (t *checkoutTx) InsertItems(ctx context.Context, orderID string, items []order.Item) error {
	for _, item := range items {
		_, err := t.tx.Exec(ctx, insertOrderItemSQL,
			orderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal,
		)
		if err != nil {
			return errors.Wrapf(err, "insert order item %q", item.ProductID)
		}
	}
	return nil
}

func (t *checkoutTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return false, errors.Wrapf(err, "decrement stock of %q", productID)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *checkoutTx) AppendActivity(ctx context.Context, e activity.Entry) error {
	return appendActivity(ctx, t.tx, e)
}

// GetByID returns an order header with its items.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	itemRows, err := s.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order items %q", id)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrapf(err, "get order items %q", id)
	}

	return &o, nil
}

// UpdateStatus transitions an order inside its own transaction, locking the
// row so the state machine is enforced against the currently persisted
// status. With restock set, item quantities flow back to product stock in the
// same transaction.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, next order.Status, restock bool) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin status tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current order.Status
	if err := tx.QueryRow(ctx, lockOrderStatusSQL, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "lock order %q", id)
	}

	if !current.CanTransitionTo(next) {
		return nil, &order.InvalidTransitionError{From: current, To: next}
	}

	if _, err := tx.Exec(ctx, updateOrderStatusSQL, id, next); err != nil {
		return nil, errors.Wrapf(err, "update order %q status", id)
	}

	if restock && next == order.StatusCancelled {
		if _, err := tx.Exec(ctx, restockItemsSQL, id); err != nil {
			return nil, errors.Wrapf(err, "restock order %q items", id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit status tx")
	}

	return s.GetByID(ctx, id)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.Total, &o.Status, &o.PaymentMethod,
		&o.ShippingAddress, &o.Courier, &o.ShippingService, &o.ShippingCost,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal)
	return it, err
}
