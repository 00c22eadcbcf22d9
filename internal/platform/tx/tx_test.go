package tx_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devtrack/internal/platform/tx"
)

func TestFileLockManagerIsReentrant(t *testing.T) {
	t.Parallel()
	m := tx.NewFileLockManager(filepath.Join(t.TempDir(), "data.json.lock"), time.Second)

	calls := 0
	err := m.Within(context.Background(), func(ctx context.Context) error {
		calls++
		return m.Within(ctx, func(context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFileLockManagerSerialisesGoroutines(t *testing.T) {
	t.Parallel()
	m := tx.NewFileLockManager(filepath.Join(t.TempDir(), "data.json.lock"), 5*time.Second)

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		guard   sync.Mutex
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Within(context.Background(), func(context.Context) error {
				guard.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				guard.Unlock()
				time.Sleep(2 * time.Millisecond)
				guard.Lock()
				inside--
				guard.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestFileLockManagerTimesOutWhenLockIsHeldElsewhere(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "data.json.lock")
	other := flock.New(path)
	require.NoError(t, other.Lock())
	defer func() { _ = other.Unlock() }()

	m := tx.NewFileLockManager(path, 100*time.Millisecond)
	err := m.Within(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, tx.ErrLockTimeout)
}

func TestFileLockManagerTimesOutBehindAnotherGoroutine(t *testing.T) {
	t.Parallel()
	m := tx.NewFileLockManager(filepath.Join(t.TempDir(), "data.json.lock"), 50*time.Millisecond)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Within(context.Background(), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	start := time.Now()
	err := m.Within(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, tx.ErrLockTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, m.Within(context.Background(), func(context.Context) error { return nil }))
}

func TestFileLockManagerStopsWaitingWhenCancelled(t *testing.T) {
	t.Parallel()
	m := tx.NewFileLockManager(filepath.Join(t.TempDir(), "data.json.lock"), time.Minute)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Within(context.Background(), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	err := m.Within(ctx, func(context.Context) error {
		t.Error("fn ran without the lock")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, tx.ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)
}

func TestNoopManagerRunsFn(t *testing.T) {
	t.Parallel()
	ran := false
	require.NoError(t, tx.NoopManager{}.Within(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}
