package app

import (
	"context"
	"time"
)

// UnitOfWork runs state transitions atomically. *database.Coordinator is the
// production implementation.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	AfterCommit(ctx context.Context, hook func(ctx context.Context))
}

// today truncates t to its calendar date in UTC.
func today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
