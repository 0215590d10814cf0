package audit

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("audit storage disabled")

// Config configures audit storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one apply run.
// Keep it compact and schema-stable.
type Entry struct {
	At        time.Time
	Command   string // "apply" or "uninstall"
	Tab       string // drontab path
	Creates   int
	Updates   int
	Deletes   int
	Unchanged int
	OK        int
	Fail      int
	Error     string
	TookMS    int64
	UnitsJSON string // per-unit outcomes, JSON array
}
