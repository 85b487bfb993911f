// Package cart defines the session-scoped shopping cart contract.
//
// A cart is nothing more than a mapping of product ID to requested quantity,
// owned by a single session. It enforces no business rules: products may have
// been deleted or gone out of stock since they were added, and nothing is
// checked until checkout time.
package cart

import "context"

// Items maps product ID to requested quantity. Quantities are always >= 1;
// a line that would drop to zero or below is removed instead.
type Items map[string]int

// Count returns the sum of all line quantities.
func (it Items) Count() int {
	total := 0
	for _, qty := range it {
		total += qty
	}
	return total
}

// Clone returns a copy of the mapping, so callers can hold a snapshot without
// racing against later mutations.
func (it Items) Clone() Items {
	out := make(Items, len(it))
	for id, qty := range it {
		out[id] = qty
	}
	return out
}

// Store is a session-keyed cart store. A missing session yields an empty
// cart, and every operation is safe to repeat: Clear on an empty cart is a
// no-op, Remove of an absent line succeeds silently.
//
// Implementations never touch the product catalog or the persistent order
// store; stock and price checks belong to the checkout path.
type Store interface {
	// Add merges qty into the existing line (existing + qty).
	Add(ctx context.Context, sessionID, productID string, qty int) error
	// Update sets the absolute quantity, removing the line when qty <= 0.
	Update(ctx context.Context, sessionID, productID string, qty int) error
	// Remove deletes the line for productID.
	Remove(ctx context.Context, sessionID, productID string) error
	// Clear empties the cart.
	Clear(ctx context.Context, sessionID string) error
	// Items returns a snapshot of the current mapping.
	Items(ctx context.Context, sessionID string) (Items, error)
	// TotalItems returns the sum of quantities across all lines.
	TotalItems(ctx context.Context, sessionID string) (int, error)
}
