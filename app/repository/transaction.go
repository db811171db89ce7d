package repository

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"gorm.io/gorm"
)

const (
	txAttempts      = 3
	txRetryDelay    = 20 * time.Millisecond
	txMaxRetryDelay = 200 * time.Millisecond
)

// transaction runs fn in a database transaction and replays it when the
// database aborted it because of lock contention.
func transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return retry.Do(
		func() error {
			return db.WithContext(ctx).Transaction(fn)
		},
		retry.Context(ctx),
		retry.Attempts(txAttempts),
		retry.Delay(txRetryDelay),
		retry.MaxDelay(txMaxRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableTxError),
	)
}
