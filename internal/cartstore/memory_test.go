package cartstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strhma/ukm-catalog/internal/domain/cart"
)

func TestMemory_AddMerges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	require.NoError(t, m.Add(ctx, "s1", "kopi", 2))
	require.NoError(t, m.Add(ctx, "s1", "kopi", 3))
	require.NoError(t, m.Add(ctx, "s1", "madu", 1))

	items, err := m.Items(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cart.Items{"kopi": 5, "madu": 1}, items)

	total, err := m.TotalItems(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestMemory_UpdateSetsAndRemoves(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	require.NoError(t, m.Add(ctx, "s1", "kopi", 2))
	require.NoError(t, m.Update(ctx, "s1", "kopi", 7))

	items, err := m.Items(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, items["kopi"], "update must set, not merge")

	require.NoError(t, m.Update(ctx, "s1", "kopi", 0))
	items, err = m.Items(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, items, "zero quantity must remove the line")
}

func TestMemory_OperationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	// All of these hit absent sessions or lines and must succeed silently.
	require.NoError(t, m.Clear(ctx, "nobody"))
	require.NoError(t, m.Remove(ctx, "nobody", "kopi"))

	items, err := m.Items(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, m.Add(ctx, "s1", "kopi", 1))
	require.NoError(t, m.Clear(ctx, "s1"))
	require.NoError(t, m.Clear(ctx, "s1"))
}

func TestMemory_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	require.NoError(t, m.Add(ctx, "s1", "kopi", 1))
	require.NoError(t, m.Add(ctx, "s2", "kopi", 9))

	items, err := m.Items(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, items["kopi"])
}

func TestMemory_SnapshotDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	require.NoError(t, m.Add(ctx, "s1", "kopi", 1))
	items, err := m.Items(ctx, "s1")
	require.NoError(t, err)
	items["kopi"] = 99

	fresh, err := m.Items(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh["kopi"])
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Nanosecond)

	require.NoError(t, m.Add(ctx, "s1", "kopi", 1))
	time.Sleep(time.Millisecond)

	items, err := m.Items(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, items, "expired cart must read as empty")
}

func TestMemory_Sweep(t *testing.T) {
	m := NewMemory(time.Nanosecond)

	require.NoError(t, m.Add(context.Background(), "s1", "kopi", 1))
	time.Sleep(time.Millisecond)
	m.sweep(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.carts)
}
