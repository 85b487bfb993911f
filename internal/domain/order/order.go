// Package order implements the checkout transaction engine: it converts a
// session cart plus buyer input into a durable Order while stock is
// decremented consistently under concurrency.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/strhma/ukm-catalog/internal/domain/activity"
	"github.com/strhma/ukm-catalog/internal/domain/product"
)

// Status is the order lifecycle state. Transitions are admin-only and are the
// only post-creation mutation path.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the fixed status enumeration values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next: pending → processing → completed, with cancelled reachable from any
// pre-completed state.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Customer is the per-order snapshot of buyer contact details. A new row is
// created for every order; the same account may ship to different addresses.
type Customer struct {
	ID        int64
	UserID    string
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// Order is the persisted order header. After creation only Status and
// UpdatedAt may change.
type Order struct {
	ID              string
	Number          string
	CustomerID      int64
	Total           decimal.Decimal
	Status          Status
	PaymentMethod   string
	ShippingAddress string
	Courier         string
	ShippingService string
	ShippingCost    decimal.Decimal
	Notes           string
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is a single order line. UnitPrice is copied at validation time, never
// re-derived from the product, so historical orders are immune to later price
// changes.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Tx is the set of reads and writes available inside the checkout
// transaction. All writes either commit together or roll back together.
type Tx interface {
	// GetActiveByIDs re-reads authoritative price and stock inside the
	// transaction scope; absent rows mean deleted or deactivated products.
	GetActiveByIDs(ctx context.Context, ids []string) ([]product.Product, error)
	InsertCustomer(ctx context.Context, c *Customer) (int64, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, orderID string, items []Item) error
	// DecrementStock performs the guarded decrement
	// (stock = stock - qty WHERE stock >= qty) and reports whether a row was
	// affected. A false result means a concurrent checkout won the race.
	DecrementStock(ctx context.Context, productID string, qty int) (bool, error)
	AppendActivity(ctx context.Context, e activity.Entry) error
}

// Store is the persistence boundary of the engine.
type Store interface {
	// RunCheckout executes fn inside a single transaction; an error from fn
	// rolls every write back.
	RunCheckout(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus transitions an order in its own transaction, enforcing the
	// state machine against the currently persisted status. When restock is
	// true and next is cancelled, the order's item quantities are added back
	// to product stock in the same transaction.
	UpdateStatus(ctx context.Context, id string, next Status, restock bool) (*Order, error)
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")
