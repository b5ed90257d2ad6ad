// Package distlock serializes report generation across processes.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a single named lock. A Lock is owned by one goroutine; concurrent
// callers create their own Lock for the same key.
type Lock interface {
	// Acquire tries to take the lock without blocking. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if it is still owned.
	Release(ctx context.Context) error
}

// Locker creates locks by key
type Locker interface {
	NewLock(key string) Lock
}

// NewLocker picks the best available backend: Redis when a client is given,
// PostgreSQL advisory locks when only a database is given, otherwise locks
// that always succeed.
func NewLocker(client redis.UniversalClient, db *sql.DB, ttl time.Duration) Locker {
	switch {
	case client != nil:
		return NewRedisLocker(client, ttl)
	case db != nil:
		return &PGAdvisoryLocker{db: db}
	default:
		return NoopLocker{}
	}
}

// NoopLocker hands out locks that are always acquired
type NoopLocker struct{}

func (NoopLocker) NewLock(string) Lock { return noopLock{} }

type noopLock struct{}

func (noopLock) Acquire(context.Context) (bool, error) { return true, nil }
func (noopLock) Release(context.Context) error         { return nil }

// PGAdvisoryLocker uses pg_try_advisory_lock. The lock is session scoped, so
// each Lock pins one pooled connection from Acquire until Release.
type PGAdvisoryLocker struct {
	db *sql.DB
}

func (l *PGAdvisoryLocker) NewLock(key string) Lock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &pgAdvisoryLock{db: l.db, lockID: int64(h.Sum64())}
}

type pgAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

func (l *pgAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, errors.New("advisory lock already held")
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *pgAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
