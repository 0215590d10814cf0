// Package sysd wraps the systemd primitives the pipeline needs behind a
// small interface, so tests can substitute a fake and the rest of the code
// never reaches for global host state directly.
package sysd

import (
	"context"
	"time"
)

// Manager is the mutation/query surface against the systemd user instance.
//
// These are primitives: no call here triggers a daemon reload on its own.
// The applier decides when to reload, exactly once per batch.
type Manager interface {
	// Reload asks systemd to re-read unit files (daemon-reload).
	Reload(ctx context.Context) error

	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error

	// Enable links the unit into the boot graph; with now it also starts it.
	Enable(ctx context.Context, unit string, now bool) error
	// Disable unlinks the unit; the caller stops it first if needed.
	Disable(ctx context.Context, unit string) error

	// TimerStatus reports scheduling state for a timer unit.
	TimerStatus(ctx context.Context, unit string) (TimerStatus, error)
	// ServiceStatus reports run state for a service unit.
	ServiceStatus(ctx context.Context, unit string) (ServiceStatus, error)

	Close() error
}

// TimerStatus is the subset of [Timer] unit properties the monitor shows.
type TimerStatus struct {
	Unit        string
	Schedule    string // calendar expression as systemd reports it
	LastTrigger time.Time
	NextElapse  time.Time
}

// ServiceStatus is the subset of [Service] unit properties the monitor shows.
type ServiceStatus struct {
	Unit        string
	Active      string // active, inactive, failed, ...
	SubState    string
	Result      string // success, exit-code, ...
	ExecStart   string
	MainPID     uint32
	ActiveSince time.Time
}

// Running reports whether the service currently has a main process.
func (s ServiceStatus) Running() bool { return s.MainPID != 0 }

func parseTimestamp(props map[string]interface{}, key string) time.Time {
	ts, ok := props[key].(uint64)
	if !ok || ts == 0 {
		return time.Time{}
	}
	// systemd timestamps are microseconds since the Unix epoch; the max
	// uint64 sentinel means "not scheduled".
	if ts == ^uint64(0) {
		return time.Time{}
	}
	return time.Unix(int64(ts/1_000_000), 0)
}

func getStringProperty(props map[string]interface{}, key string) (string, bool) {
	if val, ok := props[key].(string); ok {
		return val, true
	}
	return "", false
}
