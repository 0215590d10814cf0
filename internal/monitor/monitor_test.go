package monitor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dron/internal/sysd"
	"dron/internal/unit"
	"dron/pkg/logx"
)

type fakeManager struct {
	timers   map[string]sysd.TimerStatus
	services map[string]sysd.ServiceStatus
}

func (m *fakeManager) Reload(context.Context) error                 { return nil }
func (m *fakeManager) Start(context.Context, string) error          { return nil }
func (m *fakeManager) Stop(context.Context, string) error           { return nil }
func (m *fakeManager) Restart(context.Context, string) error        { return nil }
func (m *fakeManager) Enable(context.Context, string, bool) error   { return nil }
func (m *fakeManager) Disable(context.Context, string) error        { return nil }
func (m *fakeManager) Close() error                                 { return nil }

func (m *fakeManager) TimerStatus(_ context.Context, u string) (sysd.TimerStatus, error) {
	return m.timers[u], nil
}

func (m *fakeManager) ServiceStatus(_ context.Context, u string) (sysd.ServiceStatus, error) {
	return m.services[u], nil
}

func writeUnits(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		body := "# " + unit.Marker + "\n[Unit]\nDescription=x\n"
		if err := os.WriteFile(filepath.Join(dir, n), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEntries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeUnits(t, dir, "backup.service", "backup.timer", "tunnel.service")

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	mgr := &fakeManager{
		timers: map[string]sysd.TimerStatus{
			"backup.timer": {
				Unit:       "backup.timer",
				Schedule:   "*-*-* 03:00:00",
				NextElapse: now.Add(15 * time.Hour),
			},
		},
		services: map[string]sysd.ServiceStatus{
			"backup.service": {
				Unit:        "backup.service",
				Result:      "success",
				SubState:    "dead",
				ExecStart:   "/usr/bin/rsync -a /src /dst",
				ActiveSince: now.Add(-2 * time.Hour),
			},
			"tunnel.service": {
				Unit:     "tunnel.service",
				SubState: "running",
				MainPID:  4242,
			},
		},
	}

	m := New(dir, mgr, nil, logx.Nop())
	m.now = func() time.Time { return now }

	entries, err := m.Entries(context.Background(), Options{WithCommand: true})
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 jobs", len(entries))
	}

	backup := entries[0]
	if backup.Job != "backup" {
		t.Fatalf("jobs must sort by name, first is %q", backup.Job)
	}
	if backup.Schedule != "*-*-* 03:00:00" {
		t.Fatalf("schedule: %q", backup.Schedule)
	}
	if backup.Left != "15h0m0s" {
		t.Fatalf("left: %q", backup.Left)
	}
	if !backup.OK {
		t.Fatal("successful result must report OK")
	}
	if !strings.Contains(backup.Status, "2h0m0s ago") {
		t.Fatalf("status: %q", backup.Status)
	}
	if backup.Command != "/usr/bin/rsync -a /src /dst" {
		t.Fatalf("command: %q", backup.Command)
	}

	tunnel := entries[1]
	if tunnel.Schedule != "always" {
		t.Fatalf("timerless job schedule: %q", tunnel.Schedule)
	}
	if !strings.Contains(tunnel.Status, "running") {
		t.Fatalf("status: %q", tunnel.Status)
	}
	if tunnel.PID != "4242" {
		t.Fatalf("pid: %q", tunnel.PID)
	}
}

func TestEntriesEmptyDir(t *testing.T) {
	t.Parallel()
	m := New(t.TempDir(), &fakeManager{}, nil, logx.Nop())
	entries, err := m.Entries(context.Background(), Options{})
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries from an empty dir", len(entries))
	}
}

func TestPrintColumns(t *testing.T) {
	t.Parallel()
	entries := []Entry{{Job: "backup", Schedule: "daily", Status: "success"}}

	var plain bytes.Buffer
	if err := Print(&plain, entries, Options{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(plain.String(), "RATE") || strings.Contains(plain.String(), "COMMAND") {
		t.Fatalf("optional columns leaked: %q", plain.String())
	}
	if !strings.Contains(plain.String(), "JOB") || !strings.Contains(plain.String(), "backup") {
		t.Fatalf("table missing data: %q", plain.String())
	}

	var full bytes.Buffer
	if err := Print(&full, entries, Options{WithRate: true, WithCommand: true}); err != nil {
		t.Fatal(err)
	}
	for _, col := range []string{"RATE", "PID", "COMMAND"} {
		if !strings.Contains(full.String(), col) {
			t.Fatalf("missing column %s: %q", col, full.String())
		}
	}
}

func TestFmtDelta(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{90 * time.Second, "1m30s"},
		{3*time.Hour + 20*time.Minute + 5*time.Second, "3h20m0s"},
		{26 * time.Hour, "1d2h0m0s"},
		{48 * time.Hour, "2d"},
		{-time.Minute, "1m0s"},
	}
	for _, tc := range tests {
		if got := fmtDelta(tc.in); got != tc.want {
			t.Errorf("fmtDelta(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
