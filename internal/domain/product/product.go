package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Status describes whether a product is purchasable.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the known product statuses.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Product represents a catalog item. Stock is the integer count of
// purchasable units; it must never go negative and may only be decremented
// through the guarded update inside the checkout transaction.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Stock       int
	Status      Status
	WeightGrams int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines read and admin-write operations for the product catalog.
// Stock decrements are deliberately absent here: they happen only through the
// guarded update inside the checkout transaction (see the order package).
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetActiveByIDs returns only active products matching the given IDs.
	// Missing or inactive products are simply absent from the result.
	GetActiveByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}
