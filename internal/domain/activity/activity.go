// Package activity defines the append-only record of notable user actions.
package activity

import (
	"context"
	"time"
)

// Known action kinds. Free-form actions are allowed; these are the ones the
// core writes itself.
const (
	ActionOrderCreated       = "order_created"
	ActionOrderStatusUpdated = "order_status_updated"
	ActionProductCreated     = "product_created"
	ActionProductUpdated     = "product_updated"
)

// Entry is a single activity record. Entries are never updated or deleted;
// they exist purely for audit and debugging.
type Entry struct {
	ID        int64
	UserID    string
	Action    string
	Details   string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Recorder appends activity entries. Outside the checkout transaction the
// write is best effort: callers log a failure and move on rather than failing
// the operation that produced the entry.
type Recorder interface {
	Append(ctx context.Context, e Entry) error
}
