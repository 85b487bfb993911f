package cartstore

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"

	"github.com/strhma/ukm-catalog/internal/domain/cart"
)

var _ cart.Store = (*Redis)(nil)

// incrByRemoveScript merges a delta into a hash field and removes the field
// when the result drops to zero or below, so cart lines never persist with
// non-positive quantities.
var incrByRemoveScript = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if v <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return v
`)

// Redis is a cart.Store backed by one Redis hash per session. The hash
// expires after the configured TTL, refreshed on every mutation.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis creates a Redis cart store and verifies connectivity with a ping.
func NewRedis(ctx context.Context, opts *redis.Options, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}

	return &Redis{rdb: rdb, ttl: ttl}, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Ping reports connectivity, for readiness checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func cartKey(sessionID string) string {
	return "cart:" + sessionID
}

func (r *Redis) touch(ctx context.Context, key string) {
	if r.ttl > 0 {
		r.rdb.Expire(ctx, key, r.ttl)
	}
}

// Add merges qty into the existing line.
func (r *Redis) Add(ctx context.Context, sessionID, productID string, qty int) error {
	key := cartKey(sessionID)
	if err := incrByRemoveScript.Run(ctx, r.rdb, []string{key}, productID, qty).Err(); err != nil {
		return errors.Wrap(err, "merge cart line")
	}
	r.touch(ctx, key)
	return nil
}

// Update sets the absolute quantity, removing the line when qty <= 0.
func (r *Redis) Update(ctx context.Context, sessionID, productID string, qty int) error {
	key := cartKey(sessionID)
	if qty <= 0 {
		return r.Remove(ctx, sessionID, productID)
	}
	if err := r.rdb.HSet(ctx, key, productID, qty).Err(); err != nil {
		return errors.Wrap(err, "set cart line")
	}
	r.touch(ctx, key)
	return nil
}

// Remove deletes the line for productID.
func (r *Redis) Remove(ctx context.Context, sessionID, productID string) error {
	if err := r.rdb.HDel(ctx, cartKey(sessionID), productID).Err(); err != nil {
		return errors.Wrap(err, "delete cart line")
	}
	return nil
}

// Clear empties the cart. Deleting an absent key succeeds, keeping Clear
// idempotent.
func (r *Redis) Clear(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// Items returns a snapshot of the current mapping. A missing session yields
// an empty cart.
func (r *Redis) Items(ctx context.Context, sessionID string) (cart.Items, error) {
	raw, err := r.rdb.HGetAll(ctx, cartKey(sessionID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}

	items := make(cart.Items, len(raw))
	for productID, qtyStr := range raw {
		qty, err := strconv.Atoi(qtyStr)
		if err != nil || qty <= 0 {
			// Corrupted line: skip it rather than fail the whole cart.
			continue
		}
		items[productID] = qty
	}
	return items, nil
}

// TotalItems returns the sum of quantities across all lines.
func (r *Redis) TotalItems(ctx context.Context, sessionID string) (int, error) {
	items, err := r.Items(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return items.Count(), nil
}
