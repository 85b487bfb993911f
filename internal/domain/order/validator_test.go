package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strhma/ukm-catalog/internal/domain/cart"
	"github.com/strhma/ukm-catalog/internal/domain/product"
)

type readerStub struct {
	products []product.Product
	gotIDs   []string
	calls    int
}

func (r *readerStub) GetActiveByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.calls++
	r.gotIDs = ids
	return r.products, nil
}

func TestValidateStock_BatchesAndTotals(t *testing.T) {
	src := &readerStub{products: []product.Product{
		{ID: "a", Name: "A", Price: decimal.RequireFromString("10000"), Stock: 10, Status: product.StatusActive},
		{ID: "b", Name: "B", Price: decimal.RequireFromString("2500.50"), Stock: 4, Status: product.StatusActive},
	}}

	lines, subtotal, err := ValidateStock(context.Background(), src, cart.Items{"b": 2, "a": 3})
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls, "all lines must be fetched in one batch")
	assert.Equal(t, []string{"a", "b"}, src.gotIDs, "lookup must be sorted for deterministic order")

	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].Product.ID)
	assert.True(t, lines[0].Subtotal.Equal(decimal.RequireFromString("30000")))
	assert.Equal(t, "b", lines[1].Product.ID)
	assert.True(t, lines[1].Subtotal.Equal(decimal.RequireFromString("5001.00")))

	assert.True(t, subtotal.Equal(decimal.RequireFromString("35001.00")), "subtotal: %s", subtotal)
}

func TestValidateStock_MissingProduct(t *testing.T) {
	src := &readerStub{}

	_, _, err := ValidateStock(context.Background(), src, cart.Items{"ghost": 1})

	var perr *ProductUnavailableError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ghost", perr.ProductID)
}

func TestValidateStock_QuantityAboveStock(t *testing.T) {
	src := &readerStub{products: []product.Product{
		{ID: "a", Name: "A", Price: decimal.NewFromInt(100), Stock: 1, Status: product.StatusActive},
	}}

	_, _, err := ValidateStock(context.Background(), src, cart.Items{"a": 2})

	var serr *InsufficientStockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Available)
	assert.Equal(t, 2, serr.Requested)
}

func TestValidateStock_QuantityEqualToStock(t *testing.T) {
	src := &readerStub{products: []product.Product{
		{ID: "a", Name: "A", Price: decimal.NewFromInt(100), Stock: 2, Status: product.StatusActive},
	}}

	lines, _, err := ValidateStock(context.Background(), src, cart.Items{"a": 2})
	require.NoError(t, err, "buying the last units must be allowed")
	require.Len(t, lines, 1)
}
