package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Actor gating failures. No side effects have occurred when these are returned.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAuthorized    = errors.New("not authorized")
)

// ErrUnknownStatus is returned when a status value outside the fixed
// enumeration is submitted.
var ErrUnknownStatus = errors.New("unknown order status")

// ValidationError reports malformed or missing checkout input. The caller
// fixes the request and resubmits; nothing has been written.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// InsufficientStockError reports a cart line exceeding live stock. It names
// the offending product and carries available vs requested so the caller can
// present an actionable message. Nothing has been written.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available, %d requested",
		e.ProductName, e.Available, e.Requested)
}

// Shortfall returns how many units the request exceeds availability by.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

// ProductUnavailableError reports a cart line referencing a product that is
// missing or inactive at validation time.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// InvalidTransitionError reports a status change the order state machine does
// not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// PersistenceError wraps an unexpected storage failure. The transaction has
// been rolled back and the caller may retry; full detail is logged server-side
// and only a generic message is shown to end users in production mode.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence failed: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
