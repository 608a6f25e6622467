package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// sweepLockKey names the scheduled-message sweep among advisory locks.
const sweepLockKey int64 = 7_270_001

// SweepLock is a Postgres session advisory lock that lets only one process
// sweep scheduled messages at a time, whether the sweep comes from the serve
// ticker or a cron run of send-scheduled.
type SweepLock struct {
	db *pgxpool.Pool
}

// NewSweepLock constructs a SweepLock.
func NewSweepLock(db *pgxpool.Pool) *SweepLock {
	return &SweepLock{db: db}
}

// TryAcquire takes the lock without waiting. ok is false when another session
// holds it. When ok is true the caller must call release, which unlocks and
// returns the pinned connection to the pool.
func (l *SweepLock) TryAcquire(ctx context.Context) (release func(), ok bool, err error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, sweepLockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, sweepLockKey); err != nil {
			// The session lock dies with the connection.
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
	}, true, nil
}
