package tx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned when the store lock cannot be acquired in time.
var ErrLockTimeout = errors.New("store lock timeout")

// Manager wraps transactional boundaries for multi-adapter operations.
type Manager interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

type NoopManager struct{}

func (NoopManager) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// FileLockManager serialises read-modify-write cycles on one data file, both
// between goroutines (a one-slot semaphore) and between processes (advisory
// lock file). The timeout bounds both waits together. Within is re-entrant:
// a nested call on a context that already holds the lock runs fn directly.
type FileLockManager struct {
	sem     chan struct{}
	lock    *flock.Flock
	timeout time.Duration
	retry   time.Duration
}

type heldKey struct{ m *FileLockManager }

func NewFileLockManager(lockPath string, timeout time.Duration) *FileLockManager {
	return &FileLockManager{
		sem:     make(chan struct{}, 1),
		lock:    flock.New(lockPath),
		timeout: timeout,
		retry:   25 * time.Millisecond,
	}
}

func (m *FileLockManager) Within(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(heldKey{m}) != nil {
		return fn(ctx)
	}

	lockCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	select {
	case m.sem <- struct{}{}:
	case <-lockCtx.Done():
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrLockTimeout
		}
		return fmt.Errorf("acquire store lock: %w", lockCtx.Err())
	}
	defer func() { <-m.sem }()

	if err := os.MkdirAll(filepath.Dir(m.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	locked, err := m.lock.TryLockContext(lockCtx, m.retry)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrLockTimeout
		}
		return fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = m.lock.Unlock() }()

	return fn(context.WithValue(ctx, heldKey{m}, true))
}
