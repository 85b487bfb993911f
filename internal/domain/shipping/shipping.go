// Package shipping defines the external shipping-rate collaborator contract.
//
// The checkout engine treats a quote as an opaque additive cost: a missing or
// failing quote never blocks a shipping-less checkout, and the engine only
// rejects a selection when its fields are partially filled in.
package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoRates is returned when the provider answered but offered no usable
// rates for the requested destination and courier.
var ErrNoRates = errors.New("no shipping rates available")

// Quote is a single priced service tier offered by a courier.
type Quote struct {
	Courier     string
	Service     string
	Description string
	Cost        decimal.Decimal
	// ETA is the estimated delivery window as reported by the carrier,
	// e.g. "2-3" (days). Informational only.
	ETA string
}

// Selection is the shipping choice attached to a checkout request. The three
// fields are validated as a unit: either all are present or none are.
type Selection struct {
	Courier string
	Service string
	Cost    decimal.Decimal
}

// Empty reports whether no shipping selection was made at all.
func (s Selection) Empty() bool {
	return s.Courier == "" && s.Service == "" && s.Cost.IsZero()
}

// Partial reports whether the selection is incomplete: some fields filled in
// but not all. Cost alone cannot distinguish "free shipping" from "unset", so
// courier and service carry the fields check.
func (s Selection) Partial() bool {
	if s.Empty() {
		return false
	}
	return s.Courier == "" || s.Service == ""
}

// Provider fetches rate quotes from an external carrier aggregator.
type Provider interface {
	// Cost returns the quotes for delivering weightGrams to destination via
	// the given courier code.
	Cost(ctx context.Context, destination string, weightGrams int, courier string) ([]Quote, error)
	// CostAll queries several couriers concurrently and merges their quotes.
	// Individual courier failures are tolerated as long as at least one
	// courier answers.
	CostAll(ctx context.Context, destination string, weightGrams int, couriers []string) ([]Quote, error)
}
