// Package cartstore provides session-keyed cart.Store implementations.
//
// The in-memory store is the default for single-node deployments and tests;
// the Redis store survives restarts and shares carts across replicas.
package cartstore

import (
	"context"
	"sync"
	"time"

	"github.com/strhma/ukm-catalog/internal/domain/cart"
)

var _ cart.Store = (*Memory)(nil)

// Memory is a mutex-protected, session-keyed cart store. Carts expire after
// the configured TTL; expiry is enforced lazily on access and by an optional
// background sweep.
type Memory struct {
	ttl time.Duration

	mu    sync.Mutex
	carts map[string]*memoryCart
}

type memoryCart struct {
	items    cart.Items
	lastUsed time.Time
}

// NewMemory creates an in-memory cart store. Sessions idle longer than ttl
// are treated as expired; a non-positive ttl disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:   ttl,
		carts: make(map[string]*memoryCart),
	}
}

// StartSweep runs a background loop that evicts expired carts every interval,
// stopping when ctx is cancelled.
func (m *Memory) StartSweep(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(time.Now())
			}
		}
	}()
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.carts {
		if now.Sub(c.lastUsed) > m.ttl {
			delete(m.carts, id)
		}
	}
}

// get returns the live cart for sessionID, or nil when absent or expired.
// Caller must hold m.mu.
func (m *Memory) get(sessionID string, now time.Time) *memoryCart {
	c, ok := m.carts[sessionID]
	if !ok {
		return nil
	}
	if m.ttl > 0 && now.Sub(c.lastUsed) > m.ttl {
		delete(m.carts, sessionID)
		return nil
	}
	return c
}

// getOrCreate returns the live cart for sessionID, creating it when needed.
// Caller must hold m.mu.
func (m *Memory) getOrCreate(sessionID string, now time.Time) *memoryCart {
	c := m.get(sessionID, now)
	if c == nil {
		c = &memoryCart{items: make(cart.Items)}
		m.carts[sessionID] = c
	}
	c.lastUsed = now
	return c
}

// Add merges qty into the existing line.
func (m *Memory) Add(_ context.Context, sessionID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(sessionID, time.Now())
	c.items[productID] += qty
	if c.items[productID] <= 0 {
		delete(c.items, productID)
	}
	return nil
}

// Update sets the absolute quantity, removing the line when qty <= 0.
func (m *Memory) Update(_ context.Context, sessionID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(sessionID, time.Now())
	if qty <= 0 {
		delete(c.items, productID)
		return nil
	}
	c.items[productID] = qty
	return nil
}

// Remove deletes the line for productID. Removing an absent line is a no-op.
func (m *Memory) Remove(_ context.Context, sessionID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.get(sessionID, time.Now()); c != nil {
		delete(c.items, productID)
	}
	return nil
}

// Clear empties the cart. Clearing an absent cart is a no-op.
func (m *Memory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

// Items returns a snapshot of the current mapping. A missing session yields
// an empty cart.
func (m *Memory) Items(_ context.Context, sessionID string) (cart.Items, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(sessionID, time.Now())
	if c == nil {
		return cart.Items{}, nil
	}
	return c.items.Clone(), nil
}

// TotalItems returns the sum of quantities across all lines.
func (m *Memory) TotalItems(ctx context.Context, sessionID string) (int, error) {
	items, err := m.Items(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return items.Count(), nil
}
