package redis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

// SnapshotLock serializes snapshot generation for one calendar date across
// processes. The underlying upsert is atomic either way; the lock only
// prevents a concurrent backfill and a scheduled run from interleaving
// whole-date generations. Locks are short-lived, no renewal.
type SnapshotLock struct {
	client   *Client
	lockName string
	ttl      time.Duration
	locked   bool
}

// NewSnapshotLock creates a lock for one snapshot date
func (c *Client) NewSnapshotLock(date time.Time) *SnapshotLock {
	return &SnapshotLock{
		client:   c,
		lockName: "snapshot:lock:" + date.UTC().Format("2006-01-02"),
		ttl:      2 * time.Minute,
	}
}

// TryAcquire attempts to acquire the date lock. Returns false when another
// process is generating the same date.
func (l *SnapshotLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := l.client.lockManager.Lock(ctx, l.lockName, l.ttl)
	if err != nil {
		logger.Debug("snapshot date already locked by another process",
			zap.String("lock", l.lockName),
		)
		return false, nil
	}
	if expiry <= 0 {
		return false, nil
	}

	l.locked = true
	logger.Debug("snapshot date lock acquired",
		zap.String("lock", l.lockName),
		zap.Duration("ttl", l.ttl),
	)
	return true, nil
}

// Release releases the date lock. Safe to call when not held.
func (l *SnapshotLock) Release(ctx context.Context) {
	if !l.locked {
		return
	}
	if err := l.client.lockManager.UnLock(ctx, l.lockName); err != nil {
		// Lock may have already expired naturally
		logger.Warn("failed to release snapshot lock",
			zap.String("lock", l.lockName),
			zap.Error(err),
		)
	}
	l.locked = false
}
