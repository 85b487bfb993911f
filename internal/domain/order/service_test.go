package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strhma/ukm-catalog/internal/cartstore"
	"github.com/strhma/ukm-catalog/internal/domain/activity"
	"github.com/strhma/ukm-catalog/internal/domain/product"
	"github.com/strhma/ukm-catalog/internal/domain/shipping"
)

// memStore is an in-memory Store with real transaction semantics: RunCheckout
// serializes transactions, applies fn against shared state, and restores the
// pre-transaction snapshot when fn fails. DecrementStock implements the same
// guarded conditional update the SQL store uses.
type memStore struct {
	mu sync.Mutex

	products   map[string]product.Product
	customers  int64
	orders     map[string]*Order
	activities []activity.Entry

	checkoutCalls int
	failInsert    error
}

func newMemStore(products ...product.Product) *memStore {
	s := &memStore{
		products: make(map[string]product.Product, len(products)),
		orders:   make(map[string]*Order),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) RunCheckout(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkoutCalls++

	snapshot := &memStore{
		products:   make(map[string]product.Product, len(s.products)),
		orders:     make(map[string]*Order, len(s.orders)),
		customers:  s.customers,
		activities: append([]activity.Entry(nil), s.activities...),
	}
	for id, p := range s.products {
		snapshot.products[id] = p
	}
	for id, o := range s.orders {
		snapshot.orders[id] = o
	}

	if err := fn(ctx, (*memTx)(s)); err != nil {
		s.products = snapshot.products
		s.orders = snapshot.orders
		s.customers = snapshot.customers
		s.activities = snapshot.activities
		return err
	}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, next Status, restock bool) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}
	if restock {
		for _, it := range o.Items {
			p := s.products[it.ProductID]
			p.Stock += it.Quantity
			s.products[it.ProductID] = p
		}
	}
	o.Status = next
	return o, nil
}

// memTx exposes the store's state under the transaction lock held by
// RunCheckout.
type memTx memStore

func (tx *memTx) GetActiveByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := tx.products[id]; ok && p.Status == product.StatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tx *memTx) InsertCustomer(_ context.Context, c *Customer) (int64, error) {
	tx.customers++
	c.ID = tx.customers
	return tx.customers, nil
}

func (tx *memTx) InsertOrder(_ context.Context, o *Order) error {
	if tx.failInsert != nil {
		return tx.failInsert
	}
	tx.orders[o.ID] = o
	return nil
}

func (tx *memTx) InsertItems(_ context.Context, orderID string, items []Item) error {
	if o, ok := tx.orders[orderID]; ok {
		o.Items = items
	}
	return nil
}

func (tx *memTx) DecrementStock(_ context.Context, productID string, qty int) (bool, error) {
	p, ok := tx.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	tx.products[productID] = p
	return true, nil
}

func (tx *memTx) AppendActivity(_ context.Context, e activity.Entry) error {
	tx.activities = append(tx.activities, e)
	return nil
}

// recorderStub collects best-effort activity entries written outside the
// checkout transaction.
type recorderStub struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *recorderStub) Append(_ context.Context, e activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func keripik() product.Product {
	return product.Product{
		ID:     "keripik",
		Name:   "Keripik Singkong",
		Price:  decimal.NewFromInt(10000),
		Stock:  5,
		Status: product.StatusActive,
	}
}

func validRequest(sessionID string) CheckoutRequest {
	return CheckoutRequest{
		SessionID:     sessionID,
		UserID:        "user-1",
		Name:          "Siti Rahma",
		Email:         "siti@example.com",
		Phone:         "081234567890",
		Address:       "Jl. Merdeka 42, Bandung",
		PaymentMethod: "transfer",
	}
}

func newCarts(t *testing.T) *cartstore.Memory {
	t.Helper()
	return cartstore.NewMemory(time.Hour)
}

func TestCheckout_Success(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(keripik())
	carts := newCarts(t)
	require.NoError(t, carts.Add(ctx, "sess-1", "keripik", 3))

	fixed := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	svc := NewService(store, carts, &recorderStub{}, WithClock(func() time.Time { return fixed }))

	res, err := svc.Checkout(ctx, validRequest("sess-1"))
	require.NoError(t, err)

	assert.Equal(t, "ORD202601021504050001", res.OrderNumber)
	assert.True(t, res.Total.Equal(decimal.NewFromInt(30000)), "total: %s", res.Total)
	assert.Equal(t, 2, store.stock("keripik"))

	o, err := store.GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.NewFromInt(10000)))

	items, err := carts.Items(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, items, "cart must be cleared after a successful checkout")

	require.Len(t, store.activities, 1)
	assert.Equal(t, activity.ActionOrderCreated, store.activities[0].Action)
	assert.Equal(t, "user-1", store.activities[0].UserID)
}

func TestCheckout_ShippingCostInTotal(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(keripik())
	carts := newCarts(t)
	require.NoError(t, carts.Add(ctx, "sess-1", "keripik", 1))

	svc := NewService(store, carts, &recorderStub{})

	req := validRequest("sess-1")
	req.Shipping = shipping.Selection{
		Courier: "jne",
		Service: "REG",
		Cost:    decimal.NewFromInt(9000),
	}

	res, err := svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Total.Equal(decimal.NewFromInt(19000)), "total: %s", res.Total)
}

func TestCheckout_NotAuthenticated(t *testing.T) {
	svc := NewService(newMemStore(), newCarts(t), &recorderStub{})

	req := validRequest("sess-1")
	req.UserID = ""

	_, err := svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCheckout_ValidationCollectsEveryProblem(t *testing.T) {
	svc := NewService(newMemStore(), newCarts(t), &recorderStub{})

	req := CheckoutRequest{
		SessionID: "sess-1",
		UserID:    "user-1",
		Email:     "not-an-email",
		Phone:     "123",
		Shipping:  shipping.Selection{Courier: "jne"}, // partial: no service/cost
	}

	_, err := svc.Checkout(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Messages, 6)
}

func TestCheckout_EmptyCart(t *testing.T) {
	store := newMemStore(keripik())
	svc := NewService(store, newCarts(t), &recorderStub{})

	_, err := svc.Checkout(context.Background(), validRequest("sess-1"))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"shopping cart is empty"}, verr.Messages)
	assert.Zero(t, store.checkoutCalls, "empty cart must not open a transaction")
}

func TestCheckout_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(keripik())
	carts := newCarts(t)
	require.NoError(t, carts.Add(ctx, "sess-1", "keripik", 6))

	svc := NewService(store, carts, &recorderStub{})

	_, err := svc.Checkout(ctx, validRequest("sess-1"))

	var serr *InsufficientStockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "keripik", serr.ProductID)
	assert.Equal(t, "Keripik Singkong", serr.ProductName)
	assert.Equal(t, 5, serr.Available)
	assert.Equal(t, 6, serr.Requested)
	assert.Equal(t, 1, serr.Shortfall())

	// Nothing written, cart untouched.
	assert.Equal(t, 5, store.stock("keripik"))
	assert.Empty(t, store.orders)
	items, err := carts.Items(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 6, items["keripik"])
}

func TestCheckout_ProductUnavailable(t *testing.T) {
	ctx := context.Background()
	carts := newCarts(t)
	require.NoError(t, carts.Add(ctx, "sess-1", "ghost", 1))

	svc := NewService(newMemStore(keripik()), carts, &recorderStub{})

	_, err := svc.Checkout(ctx, validRequest("sess-1"))

	var perr *ProductUnavailableError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ghost", perr.ProductID)
}

func TestCheckout_InactiveProductUnavailable(t *testing.T) {
	ctx := context.Background()
	p := keripik()
	p.Status = product.StatusInactive
	carts := newCarts(t)
	require.NoError(t, carts.Add(ctx, "sess-1", "keripik", 1))

	svc := NewService(newMemStore(p), carts, &recorderStub{})

	_, err := svc.Checkout(ctx, validRequest("sess-1"))

	var perr *ProductUnavailableError
	require.ErrorAs(t, err, &perr)
}

func TestCheckout_StorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(keripik())
	store.failInsert = assert.AnError
	carts := newCarts(t)
	require.NoError(t, carts.Add(ctx, "sess-1", "keripik", 2))

	svc := NewService(store, carts, &recorderStub{})

	_, err := svc.Checkout(ctx, validRequest("sess-1"))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)

	assert.Equal(t, 5, store.stock("keripik"), "rollback must restore stock")
	assert.Empty(t, store.orders)
	items, cerr := carts.Items(ctx, "sess-1")
	require.NoError(t, cerr)
	assert.Equal(t, 2, items["keripik"], "failed checkout must leave the cart untouched")
}

func TestCheckout_ConcurrentContention(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(keripik())
	carts := newCarts(t)
	require.NoError(t, carts.Add(ctx, "sess-a", "keripik", 3))
	require.NoError(t, carts.Add(ctx, "sess-b", "keripik", 3))

	svc := NewService(store, carts, &recorderStub{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, sess := range []string{"sess-a", "sess-b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := validRequest(sess)
			req.UserID = "user-" + sess
			_, errs[i] = svc.Checkout(ctx, req)
		}()
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		var serr *InsufficientStockError
		switch {
		case err == nil:
			successes++
		case assert.ErrorAs(t, err, &serr):
			conflicts++
			assert.Equal(t, 2, serr.Available, "loser must see the post-decrement stock")
			assert.Equal(t, 3, serr.Requested)
		}
	}

	assert.Equal(t, 1, successes, "exactly one concurrent checkout may win")
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, store.stock("keripik"))
	assert.Len(t, store.orders, 1)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.orders["ord-1"] = &Order{ID: "ord-1", Number: "ORD1", Status: StatusPending}

	rec := &recorderStub{}
	svc := NewService(store, newCarts(t), rec)

	o, err := svc.UpdateStatus(ctx, StatusUpdateRequest{
		ActorID: "admin",
		OrderID: "ord-1",
		Status:  StatusProcessing,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, activity.ActionOrderStatusUpdated, rec.entries[0].Action)

	// processing → pending is not allowed.
	_, err = svc.UpdateStatus(ctx, StatusUpdateRequest{
		ActorID: "admin",
		OrderID: "ord-1",
		Status:  StatusPending,
	})
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusProcessing, terr.From)
	assert.Equal(t, StatusPending, terr.To)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), newCarts(t), &recorderStub{})

	_, err := svc.UpdateStatus(ctx, StatusUpdateRequest{OrderID: "ord-1", Status: StatusCompleted})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.UpdateStatus(ctx, StatusUpdateRequest{ActorID: "admin", OrderID: "ord-1", Status: "shipped"})
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = svc.UpdateStatus(ctx, StatusUpdateRequest{ActorID: "admin", OrderID: "missing", Status: StatusProcessing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_CancelKeepsStockByDefault(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(product.Product{ID: "keripik", Name: "Keripik", Stock: 2, Status: product.StatusActive})
	store.orders["ord-1"] = &Order{
		ID: "ord-1", Number: "ORD1", Status: StatusPending,
		Items: []Item{{ProductID: "keripik", Quantity: 3}},
	}

	svc := NewService(store, newCarts(t), &recorderStub{})

	_, err := svc.UpdateStatus(ctx, StatusUpdateRequest{ActorID: "admin", OrderID: "ord-1", Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 2, store.stock("keripik"), "cancellation must not restock by default")
}

func TestUpdateStatus_CancelRestocksWhenEnabled(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(product.Product{ID: "keripik", Name: "Keripik", Stock: 2, Status: product.StatusActive})
	store.orders["ord-1"] = &Order{
		ID: "ord-1", Number: "ORD1", Status: StatusPending,
		Items: []Item{{ProductID: "keripik", Quantity: 3}},
	}

	svc := NewService(store, newCarts(t), &recorderStub{}, WithRestockOnCancel(true))

	_, err := svc.UpdateStatus(ctx, StatusUpdateRequest{ActorID: "admin", OrderID: "ord-1", Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 5, store.stock("keripik"))
}

func TestOrderNumber_Format(t *testing.T) {
	ts := time.Date(2026, 8, 30, 9, 5, 59, 0, time.UTC)
	assert.Equal(t, "ORD202608300905590042", orderNumber(ts, 42))
}
