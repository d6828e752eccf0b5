//go:build unix

package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Degraded reports whether this platform lacks OS-level advisory locking.
// On unix the flock implementation protects against other processes.
func Degraded() bool {
	return false
}

// Guard is a held exclusive lock. Release it on every exit path.
type Guard struct {
	mu   sync.Mutex
	file *os.File
}

// Acquire takes an exclusive flock on the file at path, creating it (and
// its parent directory) if missing. It polls with backoff until the lock is
// acquired or timeout elapses, in which case it returns ErrTimeout.
func Acquire(path string, timeout time.Duration) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lockfile: create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	backoff := minBackoff
	for {
		err := flockRetryEINTR(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &Guard{file: f}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			_ = f.Close()
			return nil, fmt.Errorf("lockfile: flock %s: %w", path, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, path, timeout)
		}
		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)
		backoff = nextBackoff(backoff)
	}
}

// Release fsyncs the lock file, drops the flock and closes the descriptor.
// It is idempotent; later calls return nil. The fsync ensures no write
// started inside the critical section is lost to buffering before another
// process can enter.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.file == nil {
		return nil
	}
	fd := int(g.file.Fd())

	syncErr := g.file.Sync()
	unlockErr := flockRetryEINTR(fd, syscall.LOCK_UN)
	closeErr := g.file.Close()
	g.file = nil

	if syncErr != nil {
		syncErr = fmt.Errorf("lockfile: fsync: %w", syncErr)
	}
	if unlockErr != nil {
		unlockErr = fmt.Errorf("lockfile: unlock: %w", unlockErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("lockfile: close: %w", closeErr)
	}
	return errors.Join(syncErr, unlockErr, closeErr)
}

// flockRetryEINTR wraps flock, retrying when a signal interrupts the call.
func flockRetryEINTR(fd, how int) error {
	const maxRetries = 10000
	var err error
	for range maxRetries {
		err = syscall.Flock(fd, how)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}
	return err
}
