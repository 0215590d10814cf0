package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFull(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
tab: /etc/dron/drontab.yaml
units_dir: /tmp/units
verify: false
logging:
  level: debug
  console: true
audit:
  driver: file
  path: /tmp/dron/history
notify:
  enabled: true
  channel: ntfy
  ntfy:
    topic: dron-alerts
  retry_base: 500ms
  dedup_window: 30m
`)
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tab != "/etc/dron/drontab.yaml" {
		t.Fatalf("tab: %q", cfg.Tab)
	}
	if cfg.UnitsDir != "/tmp/units" {
		t.Fatalf("units_dir: %q", cfg.UnitsDir)
	}
	if cfg.VerifyEnabled() {
		t.Fatal("verify: false should disable the gate")
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging: %+v", cfg.Logging)
	}

	ac, err := cfg.AuditConfig()
	if err != nil {
		t.Fatalf("audit config: %v", err)
	}
	if ac.Driver != "file" || ac.Path != "/tmp/dron/history" {
		t.Fatalf("audit: %+v", ac)
	}

	nc, err := cfg.NotifyConfig()
	if err != nil {
		t.Fatalf("notify config: %v", err)
	}
	if !nc.Enabled || nc.Channel != "ntfy" || nc.Ntfy.Topic != "dron-alerts" {
		t.Fatalf("notify: %+v", nc)
	}
	if nc.RetryBase != 500*time.Millisecond {
		t.Fatalf("retry_base: %v", nc.RetryBase)
	}
	if nc.DedupWindow != 30*time.Minute {
		t.Fatalf("dedup_window: %v", nc.DedupWindow)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("missing default config must not error: %v", err)
	}
	if cfg.Tab == "" || cfg.UnitsDir == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.UnitsDir, filepath.Join("systemd", "user")) {
		t.Fatalf("units_dir default: %q", cfg.UnitsDir)
	}
	if !cfg.VerifyEnabled() {
		t.Fatal("verify defaults to enabled")
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level default: %q", cfg.Logging.Level)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true); err == nil {
		t.Fatal("explicit missing path must error")
	}
}

func TestLoadJSONPassthrough(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"tab": "/etc/dron/drontab.yaml", "units_dir": "/tmp/units"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tab != "/etc/dron/drontab.yaml" || cfg.UnitsDir != "/tmp/units" {
		t.Fatalf("json config not decoded: %+v", cfg)
	}
}

func TestLoadBadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tab: [unterminated\n")
	_, err := Load(path, true)
	if err == nil {
		t.Fatal("broken yaml must error")
	}
	if !strings.Contains(err.Error(), "yaml") {
		t.Fatalf("error should mention yaml: %v", err)
	}
}

func TestLoadUnknownField(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tab: /x\nunits_dri: /y\n")
	if _, err := Load(path, true); err == nil {
		t.Fatal("unknown field must be rejected")
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "notify:\n  retry_base: soon\n")
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cfg.NotifyConfig(); err == nil {
		t.Fatal("bad duration must be rejected")
	}
}

func TestLoadHomeExpansion(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tab: ~/drontab.yaml\n")
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if cfg.Tab != filepath.Join(home, "drontab.yaml") {
		t.Fatalf("tab: %q", cfg.Tab)
	}
}

func TestExpandHome(t *testing.T) {
	t.Parallel()
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("absolute path must pass through: %q", got)
	}
	if got := ExpandHome("rel/path"); got != "rel/path" {
		t.Fatalf("relative path must pass through: %q", got)
	}
}
