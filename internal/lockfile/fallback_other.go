//go:build !unix

package lockfile

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// Degraded reports whether this platform lacks OS-level advisory locking.
// This fallback serializes only within the current process: it does NOT
// protect against other processes touching the same data directory.
func Degraded() bool {
	return true
}

var (
	registryMu sync.Mutex
	registry   = map[string]chan struct{}{}
)

// slotFor returns the process-local semaphore channel for a lock path.
func slotFor(path string) chan struct{} {
	key := filepath.Clean(path)
	registryMu.Lock()
	defer registryMu.Unlock()
	ch, ok := registry[key]
	if !ok {
		ch = make(chan struct{}, 1)
		registry[key] = ch
	}
	return ch
}

// Guard is a held process-local lock.
type Guard struct {
	mu   sync.Mutex
	slot chan struct{}
}

// Acquire takes the process-local lock for path, waiting up to timeout.
func Acquire(path string, timeout time.Duration) (*Guard, error) {
	slot := slotFor(path)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return &Guard{slot: slot}, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, path, timeout)
	}
}

// Release drops the lock. It is idempotent.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.slot == nil {
		return nil
	}
	<-g.slot
	g.slot = nil
	return nil
}
