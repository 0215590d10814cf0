package job

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTab(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drontab.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write tab: %v", err)
	}
	return path
}

func TestTabLoaderBasic(t *testing.T) {
	t.Parallel()
	path := writeTab(t, `
defaults:
  on_failure:
    - notify
jobs:
  - name: backup
    when: "cron: 0 3 * * *"
    command: /usr/local/bin/run-backup
  - name: sync
    when: 10m
    command: [mbsync, -a]
    on_failure: []
  - name: forever
    when: always
    command: /usr/bin/syncthing
`)
	specs, err := TabLoader{}.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("want 3 specs, got %d", len(specs))
	}

	backup := specs[0]
	if backup.Name != "backup" || backup.Command != "/usr/local/bin/run-backup" {
		t.Fatalf("unexpected spec: %+v", backup)
	}
	if backup.When.Kind != Calendar {
		t.Fatalf("backup schedule kind = %v", backup.When.Kind)
	}
	// defaults.on_failure applies, with the notify shorthand expanded
	if len(backup.OnFailure) != 1 || backup.OnFailure[0] != "dron notify %n" {
		t.Fatalf("OnFailure = %v", backup.OnFailure)
	}

	sync := specs[1]
	if sync.Command != "mbsync -a" {
		t.Fatalf("argv command join = %q", sync.Command)
	}
	// explicit empty list overrides the defaults
	if len(sync.OnFailure) != 0 {
		t.Fatalf("explicit empty on_failure not honored: %v", sync.OnFailure)
	}

	if specs[2].When.Kind != Always {
		t.Fatalf("forever schedule kind = %v", specs[2].When.Kind)
	}
}

func TestTabLoaderArgvQuoting(t *testing.T) {
	t.Parallel()
	path := writeTab(t, `
jobs:
  - name: spaced
    when: daily
    command: ["/bin/echo", "hello world"]
`)
	specs, err := TabLoader{}.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := specs[0].Command; got != `/bin/echo "hello world"` {
		t.Fatalf("Command = %q", got)
	}
}

func TestTabLoaderRawTimer(t *testing.T) {
	t.Parallel()
	path := writeTab(t, `
jobs:
  - name: nightly
    timer:
      OnCalendar: daily
      Persistent: "true"
      RandomizedDelaySec: 300
    command: /bin/true
`)
	specs, err := TabLoader{}.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	w := specs[0].When
	if w.Kind != RawTimer {
		t.Fatalf("Kind = %v", w.Kind)
	}
	want := []Property{
		{Key: "OnCalendar", Value: "daily"},
		{Key: "Persistent", Value: "true"},
		{Key: "RandomizedDelaySec", Value: "300"},
	}
	if len(w.Timer) != len(want) {
		t.Fatalf("Timer = %v", w.Timer)
	}
	for i := range want {
		if w.Timer[i] != want[i] {
			t.Fatalf("Timer[%d] = %+v, want %+v (order must be preserved)", i, w.Timer[i], want[i])
		}
	}
}

func TestTabLoaderWhenAndTimerConflict(t *testing.T) {
	t.Parallel()
	path := writeTab(t, `
jobs:
  - name: clash
    when: daily
    timer:
      OnCalendar: daily
    command: /bin/true
`)
	_, err := TabLoader{}.Load(path)
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("want mutual exclusion error, got %v", err)
	}
}

func TestTabLoaderCollectsAllErrors(t *testing.T) {
	t.Parallel()
	path := writeTab(t, `
jobs:
  - name: "bad name!"
    when: daily
    command: /bin/true
  - name: nocmd
    when: daily
    command: ""
  - name: dup
    when: daily
    command: /bin/true
  - name: dup
    when: daily
    command: /bin/true
`)
	_, err := TabLoader{}.Load(path)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"bad name!", "nocmd", "duplicate job name"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

func TestTabLoaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeTab(t, `
jobs:
  - name: typo
    wehn: daily
    command: /bin/true
`)
	if _, err := (TabLoader{}).Load(path); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestTabLoaderMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := (TabLoader{}).Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
