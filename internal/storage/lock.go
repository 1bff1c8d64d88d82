package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/lherron/sv/internal/domain"
)

// Lock acquisition polls at retryDelay until lockWait elapses. flock is
// inter-process only; sv runs one command per process, so that is the
// contention that matters.
const (
	lockWait   = 5 * time.Second
	retryDelay = 25 * time.Millisecond
)

// Well-known lock names, one per artifact
const (
	LockLeases  = "leases"
	LockProtect = "protect"
	LockOplog   = "oplog"
	LockTasks   = "tasks"
	LockCommit  = "commit"
	LockWorkspc = "workspaces"
)

// WithLock runs fn while holding the named advisory lock. The lock is
// released on every exit path, including a panic inside fn. A lock that
// cannot be acquired within the bounded wait fails the operation.
func (s *Store) WithLock(ctx context.Context, name string, fn func() error) error {
	if err := os.MkdirAll(s.lockDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create lock dir: %w", err)
	}
	lockPath := fmt.Sprintf("%s/%s.lock", s.lockDir(), name)
	lock := flock.New(lockPath)

	waitCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	locked, err := lock.TryLockContext(waitCtx, retryDelay)
	if err != nil && waitCtx.Err() == nil {
		return domain.OpFailedf(err, "failed to acquire %s lock", name)
	}
	if !locked {
		return &domain.OperationFailedError{Message: "lock contention"}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release lock", "name", name, "error", err)
		}
	}()

	// Cooperative cancellation: do not start the critical section once
	// the caller's context is done.
	if err := ctx.Err(); err != nil {
		return domain.OpFailedf(err, "cancelled before %s critical section", name)
	}
	return fn()
}
