package apply

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Lock is an advisory lock file guarding the reconcile-validate-apply cycle.
// Two concurrent applies against the same unit directory would interleave
// writes and daemon reloads, so the second one refuses to start.
type Lock struct {
	path string
}

// AcquireLock creates the lock file, failing if a live process already holds
// it. A lock left behind by a crashed apply (its recorded pid is gone, or the
// file is unreadable garbage) is broken and taken over.
func AcquireLock(path string) (*Lock, error) {
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			if err := f.Close(); err != nil {
				os.Remove(path)
				return nil, fmt.Errorf("acquire lock: %w", err)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}

		pid, ok := lockHolder(path)
		if ok && pidAlive(pid) {
			return nil, fmt.Errorf("another apply is in progress (pid %d, lock %s)", pid, path)
		}
		if attempt > 0 {
			return nil, fmt.Errorf("another apply is in progress (lock %s)", path)
		}
		// Stale: the holder is gone. Remove and try once more; a race with
		// another breaker is fine, one of us wins the O_EXCL create.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("break stale lock: %w", err)
		}
	}
}

// Release removes the lock file. Safe to call once.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}

func lockHolder(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// pidAlive checks the pid with signal 0. EPERM still means the process
// exists, it just belongs to someone else.
func pidAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
