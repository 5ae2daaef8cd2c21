// Package distlock guards survey dispatch across worker processes. Two
// workers ticking at once must not fire the same schedule or run the
// expiry sweep twice, so each fire path takes a short-lived distributed
// lock first. The lock narrows the race window; the repository's
// compare-and-swap claim remains the correctness guarantee.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Every lock key lives under one namespace so operators can inspect and
// clear them as a group.
const keyPrefix = "barangay:lock:"

const (
	// ScheduleLockTTL bounds how long one schedule fire can hold its
	// lock. A worker that dies mid-fire frees the schedule within this
	// window.
	ScheduleLockTTL = 5 * time.Minute

	// SweepLockTTL bounds the nightly expiry sweep.
	SweepLockTTL = 10 * time.Minute
)

// DistLock is the locking contract. A lock instance belongs to one
// goroutine; concurrent acquirers each build their own instance.
type DistLock interface {
	// Acquire attempts to take the lock without blocking. Returns true
	// on success, false when another holder has it.
	Acquire(ctx context.Context) (bool, error)
	// Release frees the lock if this instance still owns it.
	Release(ctx context.Context) error
}

// ForSchedule returns the lock guarding one schedule's fire, keyed by the
// schedule id. Prefers Redis; falls back to a PostgreSQL advisory lock
// when no Redis client is configured.
func ForSchedule(redisClient *redis.Client, db *sql.DB, scheduleID uuid.UUID) DistLock {
	return New(redisClient, db, "schedule:"+scheduleID.String(), ScheduleLockTTL)
}

// ForSweep returns the single lock serializing the expiry sweep.
func ForSweep(redisClient *redis.Client, db *sql.DB) DistLock {
	return New(redisClient, db, "expiry-sweep", SweepLockTTL)
}

// New creates a lock on an arbitrary key using the best available
// backend. Redis is preferred for cross-host locking; the PostgreSQL
// fallback keeps single-database deployments honest without extra
// infrastructure.
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// =============================================================================
// PostgreSQL advisory lock fallback
// =============================================================================
// pg_try_advisory_lock is session-scoped: the lock dies with the
// connection, which gives the same crash-safety a Redis TTL does.

// PGAdvisoryLock implements DistLock over PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock creates an advisory lock whose 64-bit id is derived
// deterministically from the key, so every process maps the same key to
// the same lock.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: advisoryLockID(key)}
}

func advisoryLockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(keyPrefix + key))
	return int64(h.Sum64())
}

// Acquire tries the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("advisory lock %d: %w", l.lockID, err)
	}
	return acquired, nil
}

// Release unlocks the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
