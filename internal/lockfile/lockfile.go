// Package lockfile provides cross-process mutual exclusion keyed by a lock
// file. Every operation that touches more than one of the audit log, index
// and sidecar stores runs under a Guard acquired here, so writers across
// processes are strictly ordered.
//
// On unix the lock is an advisory flock(2) on the lock file; only
// cooperating processes honor it. On other platforms the package degrades
// to a process-local mutex — see Degraded.
package lockfile

import (
	"errors"
	"time"
)

// ErrTimeout is returned when a lock cannot be acquired before the timeout
// elapses. The caller has mutated nothing at that point, so the operation
// is cleanly retryable.
var ErrTimeout = errors.New("lockfile: timeout")

// PathFor derives the lock file path guarding a resource, e.g.
// PathFor("/data/index.db") == "/data/index.db.lock". The lock file is
// created on first use and never deleted between uses.
func PathFor(resource string) string {
	return resource + ".lock"
}

const (
	minBackoff = time.Millisecond
	maxBackoff = 25 * time.Millisecond
)

func nextBackoff(cur time.Duration) time.Duration {
	cur *= 2
	if cur > maxBackoff {
		return maxBackoff
	}
	return cur
}
