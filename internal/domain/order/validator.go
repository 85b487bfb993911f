package order

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/strhma/ukm-catalog/internal/domain/cart"
	"github.com/strhma/ukm-catalog/internal/domain/product"
)

// ProductReader is the authoritative price/stock source a validation runs
// against. Both the catalog repository (advisory checks at cart-add time) and
// the checkout transaction (the binding check) satisfy it.
type ProductReader interface {
	GetActiveByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Line is one validated cart line with its authoritative unit price and the
// computed subtotal.
type Line struct {
	Product  product.Product
	Quantity int
	Subtotal decimal.Decimal
}

// ValidateStock checks every cart line against live price and stock in a
// single batched lookup. The whole validation fails on the first product that
// is absent from the active set or whose requested quantity exceeds stock.
// On success it returns the validated lines (ordered by product ID for
// deterministic persistence) and the aggregate total before shipping.
//
// Callers that need the read-then-act window closed must pass the checkout
// transaction as src, so the same snapshot feeds the writes that follow.
func ValidateStock(ctx context.Context, src ProductReader, items cart.Items) ([]Line, decimal.Decimal, error) {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fetched, err := src.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "fetch products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(ids))
	subtotal := decimal.Zero
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, decimal.Zero, &ProductUnavailableError{ProductID: id}
		}

		qty := items[id]
		if qty > p.Stock {
			return nil, decimal.Zero, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   qty,
			}
		}

		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		lines = append(lines, Line{
			Product:  p,
			Quantity: qty,
			Subtotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	return lines, subtotal, nil
}
