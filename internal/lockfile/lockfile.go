// Package lockfile implements the per-project advisory write lock described
// in 4.3: one request = one commit, serialized across both goroutines in
// this process and other processes sharing the same archive tree.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	inProcessMu sync.Mutex
	inProcess   = make(map[string]*sync.Mutex)
)

func inProcessLockFor(path string) *sync.Mutex {
	inProcessMu.Lock()
	defer inProcessMu.Unlock()
	mu, ok := inProcess[path]
	if !ok {
		mu = &sync.Mutex{}
		inProcess[path] = mu
	}
	return mu
}

// Lock holds an acquired advisory lock. Release must be called exactly once.
type Lock struct {
	file    *os.File
	goMutex *sync.Mutex
}

// Acquire takes the advisory lock at path (typically <repo>/.am.lock),
// creating the file if needed. It first takes an in-process mutex (so two
// goroutines in this server never race on the same flock call) and then an
// OS-level flock (so a second agentmail process respects the same lock).
// It blocks until ctx is done or the lock is obtained.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	goMutex := inProcessLockFor(path)

	acquired := make(chan struct{})
	go func() {
		goMutex.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-ctx.Done():
		// The waiting goroutine still takes the mutex eventually; hand it
		// straight back so later Acquire calls are not blocked forever.
		go func() {
			<-acquired
			goMutex.Unlock()
		}()
		return nil, ctx.Err()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		goMutex.Unlock()
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := flockWithContext(ctx, f); err != nil {
		f.Close()
		goMutex.Unlock()
		return nil, err
	}

	return &Lock{file: f, goMutex: goMutex}, nil
}

// flockWithContext polls LOCK_EX|LOCK_NB so a blocked OS lock still respects
// context cancellation; most acquisitions succeed on the first attempt.
func flockWithContext(ctx context.Context, f *os.File) error {
	const pollInterval = 10 * time.Millisecond
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			return fmt.Errorf("flock: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release unlocks both the OS-level flock and the in-process mutex.
func (l *Lock) Release() error {
	defer l.goMutex.Unlock()
	defer l.file.Close()
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}
