package order

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/strhma/ukm-catalog/internal/domain/activity"
	"github.com/strhma/ukm-catalog/internal/domain/cart"
	"github.com/strhma/ukm-catalog/internal/domain/shipping"
)

// phonePattern accepts 10 to 13 digits, matching the storefront's historical
// validation rule.
var phonePattern = regexp.MustCompile(`^[0-9]{10,13}$`)

// CheckoutRequest is the inbound checkout boundary: authenticated actor,
// buyer contact details, payment method token, and an optional shipping
// selection. Cart contents come implicitly from the session cart store.
type CheckoutRequest struct {
	SessionID string
	UserID    string

	Name          string
	Email         string
	Phone         string
	Address       string
	PaymentMethod string
	Notes         string

	Shipping shipping.Selection

	// Origin metadata recorded in the activity log.
	IPAddress string
	UserAgent string
}

// CheckoutResult is returned on a successful checkout.
type CheckoutResult struct {
	OrderID     string
	OrderNumber string
	Total       decimal.Decimal
}

// Service is the order transaction engine. One instance orchestrates both
// checkout variants (with and without shipping) behind a single code path:
// the shipping cost simply defaults to zero.
type Service struct {
	store Store
	carts cart.Store
	acts  activity.Recorder

	now             func() time.Time
	restockOnCancel bool
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithClock overrides the wall clock used for order number generation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRestockOnCancel makes a transition to cancelled restore the order's
// item quantities to product stock. The storefront historically did not
// restock on cancellation, so this is off by default.
func WithRestockOnCancel(enabled bool) Option {
	return func(s *Service) { s.restockOnCancel = enabled }
}

// NewService creates the checkout engine with its persistence boundary, the
// session cart store, and the best-effort activity recorder.
func NewService(store Store, carts cart.Store, acts activity.Recorder, opts ...Option) *Service {
	s := &Service{
		store: store,
		carts: carts,
		acts:  acts,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout converts the session cart into a durable order.
//
// All persistence happens in a single transaction: stock is re-validated
// inside the transaction scope, the customer snapshot, order header, and
// order lines are inserted, stock is decremented per line through the guarded
// update, and the activity entry is appended. Any failure rolls everything
// back and leaves the cart exactly as it was; the cart is cleared only after
// a successful commit.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	if verr := validateBuyer(req); verr != nil {
		return nil, verr
	}

	items, err := s.carts.Items(ctx, req.SessionID)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Messages: []string{"shopping cart is empty"}}
	}

	var result CheckoutResult
	err = s.store.RunCheckout(ctx, func(ctx context.Context, tx Tx) error {
		lines, subtotal, err := ValidateStock(ctx, tx, items)
		if err != nil {
			return err
		}

		total := subtotal.Add(req.Shipping.Cost).Round(2)

		customerID, err := tx.InsertCustomer(ctx, &Customer{
			UserID:  req.UserID,
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		})
		if err != nil {
			return err
		}

		o := &Order{
			ID:              uuid.New().String(),
			Number:          orderNumber(s.now().UTC(), customerID),
			CustomerID:      customerID,
			Total:           total,
			Status:          StatusPending,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: req.Address,
			Courier:         req.Shipping.Courier,
			ShippingService: req.Shipping.Service,
			ShippingCost:    req.Shipping.Cost,
			Notes:           req.Notes,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		orderItems := make([]Item, len(lines))
		for i, line := range lines {
			orderItems[i] = Item{
				ProductID: line.Product.ID,
				Quantity:  line.Quantity,
				UnitPrice: line.Product.Price,
				Subtotal:  line.Subtotal,
			}
		}
		if err := tx.InsertItems(ctx, o.ID, orderItems); err != nil {
			return err
		}

		for _, line := range lines {
			ok, err := tx.DecrementStock(ctx, line.Product.ID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				// A concurrent checkout drained the stock between our read
				// and the guarded update. Re-read to report what is left.
				return s.stockConflict(ctx, tx, line)
			}
		}

		if err := tx.AppendActivity(ctx, activity.Entry{
			UserID:    req.UserID,
			Action:    activity.ActionOrderCreated,
			Details:   fmt.Sprintf("Order #%s created with total %s", o.Number, total.StringFixed(2)),
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		}); err != nil {
			return err
		}

		result = CheckoutResult{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			Total:       total,
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	// The cart lives in session state, not in the transaction. Clearing it
	// after commit keeps the "failure leaves the cart untouched" guarantee;
	// a clear failure here is logged, not surfaced, since the order exists.
	if err := s.carts.Clear(ctx, req.SessionID); err != nil {
		zctx.From(ctx).Warn("Cart clear after checkout failed",
			zap.String("session_id", req.SessionID),
			zap.String("order_id", result.OrderID),
			zap.Error(err),
		)
	}

	return &result, nil
}

// stockConflict builds the InsufficientStockError for a failed guarded
// decrement, re-reading current availability inside the transaction.
func (s *Service) stockConflict(ctx context.Context, tx Tx, line Line) error {
	conflict := &InsufficientStockError{
		ProductID:   line.Product.ID,
		ProductName: line.Product.Name,
		Available:   0,
		Requested:   line.Quantity,
	}
	fresh, err := tx.GetActiveByIDs(ctx, []string{line.Product.ID})
	if err == nil && len(fresh) == 1 {
		conflict.Available = fresh[0].Stock
	}
	return conflict
}

// GetOrder returns an order by its internal ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return o, nil
}

// StatusUpdateRequest carries an admin status transition.
type StatusUpdateRequest struct {
	ActorID   string
	OrderID   string
	Status    Status
	IPAddress string
	UserAgent string
}

// UpdateStatus transitions an order through the admin-only state machine.
// Values outside the fixed enumeration are rejected before any storage
// access. The activity entry is appended best effort after the transition.
func (s *Service) UpdateStatus(ctx context.Context, req StatusUpdateRequest) (*Order, error) {
	if req.ActorID == "" {
		return nil, ErrNotAuthenticated
	}
	if !req.Status.Valid() {
		return nil, ErrUnknownStatus
	}

	o, err := s.store.UpdateStatus(ctx, req.OrderID, req.Status, s.restockOnCancel && req.Status == StatusCancelled)
	if err != nil {
		return nil, classify(err)
	}

	if err := s.acts.Append(ctx, activity.Entry{
		UserID:    req.ActorID,
		Action:    activity.ActionOrderStatusUpdated,
		Details:   fmt.Sprintf("Updated order #%s status to %s", o.Number, req.Status),
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}); err != nil {
		zctx.From(ctx).Warn("Activity append failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
	}

	return o, nil
}

// validateBuyer checks the required buyer fields, collecting every problem so
// the caller can fix them all in one resubmission.
func validateBuyer(req CheckoutRequest) *ValidationError {
	var msgs []string

	if req.Name == "" {
		msgs = append(msgs, "full name is required")
	}
	if req.Email == "" {
		msgs = append(msgs, "valid email is required")
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		msgs = append(msgs, "valid email is required")
	}
	if !phonePattern.MatchString(req.Phone) {
		msgs = append(msgs, "valid phone number is required (10-13 digits)")
	}
	if req.Address == "" {
		msgs = append(msgs, "shipping address is required")
	}
	if req.PaymentMethod == "" {
		msgs = append(msgs, "payment method is required")
	}
	// Shipping is optional as a whole, but partial selections are rejected as
	// a unit: courier, service, and cost belong together.
	if req.Shipping.Partial() {
		msgs = append(msgs, "shipping selection is incomplete: courier, service, and cost must all be provided")
	}

	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// classify maps an error coming out of the store into the checkout failure
// taxonomy: domain errors pass through untouched, anything else is an
// unexpected storage failure.
func classify(err error) error {
	var (
		vErr *ValidationError
		sErr *InsufficientStockError
		pErr *ProductUnavailableError
		tErr *InvalidTransitionError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &sErr), errors.As(err, &pErr), errors.As(err, &tErr):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownStatus):
		return err
	}
	return &PersistenceError{Err: err}
}

// orderNumber derives the human-readable order number from the creation
// timestamp and the customer sequence id: ORD + yyyymmddHHMMSS + zero-padded
// id. A unique index on the column turns the residual collision window under
// clock skew into a retryable persistence failure instead of silent reuse.
func orderNumber(ts time.Time, customerID int64) string {
	return fmt.Sprintf("ORD%s%04d", ts.Format("20060102150405"), customerID)
}
