package distlock

import (
	"context"
	"errors"
	"time"
)

// ErrLockLost cancels a KeepAlive context when the lease could not be renewed
var ErrLockLost = errors.New("lock lost")

// extender is a Lock whose lease expires unless renewed
type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// KeepAlive renews lock every half TTL until stop is called. The returned
// context is cancelled with ErrLockLost as its cause once the lock is no
// longer owned. Locks without a lease get ctx back unchanged.
func KeepAlive(ctx context.Context, lock Lock) (context.Context, func()) {
	ext, ok := lock.(extender)
	if !ok || ext.TTL() <= 0 {
		return ctx, func() {}
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(ext.TTL() / 2)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := ext.Extend(runCtx, ext.TTL()); err != nil {
					cancel(errors.Join(ErrLockLost, err))
					return
				}
			}
		}
	}()

	return runCtx, func() {
		close(done)
		<-stopped
		cancel(nil)
	}
}
