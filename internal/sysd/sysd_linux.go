//go:build linux

package sysd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Conn talks to the per-user systemd instance over D-Bus.
type Conn struct {
	mu   sync.RWMutex
	conn *dbus.Conn
}

// New connects to the user service manager. If ctx is nil,
// context.Background() is used.
func New(ctx context.Context) (*Conn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

func (c *Conn) get() (*dbus.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, fmt.Errorf("systemd connection is closed")
	}
	return c.conn, nil
}

func (c *Conn) Reload(ctx context.Context) error {
	conn, err := c.get()
	if err != nil {
		return err
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	return nil
}

func (c *Conn) Start(ctx context.Context, unit string) error {
	conn, err := c.get()
	if err != nil {
		return err
	}
	if _, err := conn.StartUnitContext(ctx, unit, "replace", nil); err != nil {
		return fmt.Errorf("failed to start %s: %w", unit, err)
	}
	return nil
}

func (c *Conn) Stop(ctx context.Context, unit string) error {
	conn, err := c.get()
	if err != nil {
		return err
	}
	if _, err := conn.StopUnitContext(ctx, unit, "replace", nil); err != nil {
		if isNoSuchUnitErr(err) {
			return nil
		}
		return fmt.Errorf("failed to stop %s: %w", unit, err)
	}
	return nil
}

func (c *Conn) Restart(ctx context.Context, unit string) error {
	conn, err := c.get()
	if err != nil {
		return err
	}
	if _, err := conn.RestartUnitContext(ctx, unit, "replace", nil); err != nil {
		return fmt.Errorf("failed to restart %s: %w", unit, err)
	}
	return nil
}

func (c *Conn) Enable(ctx context.Context, unit string, now bool) error {
	conn, err := c.get()
	if err != nil {
		return err
	}
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unit, err)
	}
	if now {
		if _, err := conn.StartUnitContext(ctx, unit, "replace", nil); err != nil {
			return fmt.Errorf("enabled %s but failed to start it: %w", unit, err)
		}
	}
	return nil
}

func (c *Conn) Disable(ctx context.Context, unit string) error {
	conn, err := c.get()
	if err != nil {
		return err
	}
	if _, err := conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
		if isNoSuchUnitErr(err) {
			return nil
		}
		return fmt.Errorf("failed to disable %s: %w", unit, err)
	}
	return nil
}

func (c *Conn) TimerStatus(ctx context.Context, unit string) (TimerStatus, error) {
	conn, err := c.get()
	if err != nil {
		return TimerStatus{}, err
	}
	props, err := conn.GetUnitTypePropertiesContext(ctx, unit, "Timer")
	if err != nil {
		return TimerStatus{}, fmt.Errorf("timer properties for %s: %w", unit, err)
	}

	st := TimerStatus{
		Unit:        unit,
		LastTrigger: parseTimestamp(props, "LastTriggerUSec"),
		NextElapse:  parseTimestamp(props, "NextElapseUSecRealtime"),
	}
	// TimersCalendar is an array of (base, spec, next-elapse) triples.
	if cal, ok := props["TimersCalendar"].([][]interface{}); ok && len(cal) > 0 && len(cal[0]) >= 2 {
		if spec, ok := cal[0][1].(string); ok {
			st.Schedule = spec
		}
	}
	return st, nil
}

func (c *Conn) ServiceStatus(ctx context.Context, unit string) (ServiceStatus, error) {
	conn, err := c.get()
	if err != nil {
		return ServiceStatus{}, err
	}

	uprops, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return ServiceStatus{}, fmt.Errorf("unit properties for %s: %w", unit, err)
	}
	sprops, err := conn.GetUnitTypePropertiesContext(ctx, unit, "Service")
	if err != nil {
		return ServiceStatus{}, fmt.Errorf("service properties for %s: %w", unit, err)
	}

	st := ServiceStatus{Unit: unit, ActiveSince: parseTimestamp(uprops, "ActiveEnterTimestamp")}
	st.Active, _ = getStringProperty(uprops, "ActiveState")
	st.SubState, _ = getStringProperty(uprops, "SubState")
	st.Result, _ = getStringProperty(sprops, "Result")
	if pid, ok := sprops["MainPID"].(uint32); ok {
		st.MainPID = pid
	}
	// ExecStart is an array of (path, argv, ...) tuples; the argv is what
	// the user cares about.
	if ex, ok := sprops["ExecStart"].([][]interface{}); ok && len(ex) > 0 && len(ex[0]) >= 2 {
		if argv, ok := ex[0][1].([]string); ok {
			st.ExecStart = strings.Join(argv, " ")
		}
	}
	return st, nil
}

func isNoSuchUnitErr(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	// systemd returns org.freedesktop.systemd1.NoSuchUnit for missing units.
	if strings.Contains(es, "NoSuchUnit") {
		return true
	}
	return strings.Contains(es, "not loaded")
}
