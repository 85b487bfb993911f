package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strhma/ukm-catalog/internal/domain/activity"
)

const appendActivitySQL = `INSERT INTO activity_logs (user_id, action, details, ip_address, user_agent)
	VALUES ($1, $2, $3, $4, $5)`

var _ activity.Recorder = (*ActivityLog)(nil)

// ActivityLog implements activity.Recorder backed by PostgreSQL. Entries are
// append only; nothing in the core ever updates or deletes them.
type ActivityLog struct {
	pool *pgxpool.Pool
}

// NewActivityLog returns an ActivityLog that uses the given pool.
func NewActivityLog(pool *pgxpool.Pool) *ActivityLog {
	return &ActivityLog{pool: pool}
}

// Append writes one activity entry.
func (l *ActivityLog) Append(ctx context.Context, e activity.Entry) error {
	return appendActivity(ctx, l.pool, e)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, so checkout can
// append inside its transaction while other call sites write directly.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func appendActivity(ctx context.Context, e execer, entry activity.Entry) error {
	_, err := e.Exec(ctx, appendActivitySQL,
		entry.UserID, entry.Action, entry.Details, entry.IPAddress, entry.UserAgent,
	)
	if err != nil {
		return errors.Wrap(err, "append activity")
	}
	return nil
}
