package config

import (
	"dron/internal/audit"
	"dron/internal/notify"
	"dron/pkg/logx"
)

// Config is dron's own configuration, distinct from the drontab. Everything
// has a working default; a missing config file is not an error.
type Config struct {
	// Tab is the drontab path.
	Tab string `json:"tab,omitempty"`
	// UnitsDir is where managed units are written.
	UnitsDir string `json:"units_dir,omitempty"`
	// Verify toggles the validation gate. Pointer so an omitted field
	// defaults to true rather than false.
	Verify *bool `json:"verify,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Audit   *AuditConfig  `json:"audit,omitempty"`
	Notify  *NotifyConfig `json:"notify,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AuditConfig controls the optional apply-history store.
//
// Example:
//
//	"audit": { "driver": "file", "path": "~/.local/share/dron/history" }
type AuditConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifyConfig controls failure notifications.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Channel string `json:"channel"` // "telegram" or "ntfy"

	Telegram NotifyTelegram `json:"telegram"`
	Ntfy     NotifyNtfy     `json:"ntfy"`

	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	DedupWindow   string `json:"dedup_window"`
	TailLines     int    `json:"tail_lines"`
}

type NotifyTelegram struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

type NotifyNtfy struct {
	Server string `json:"server,omitempty"`
	Topic  string `json:"topic"`
	Token  string `json:"token,omitempty"`
}

// VerifyEnabled resolves the three-state Verify field.
func (c *Config) VerifyEnabled() bool {
	return c.Verify == nil || *c.Verify
}

func (c *Config) LogxConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    ExpandHome(c.Logging.File.Path),
		},
	}
}

func (c *Config) AuditConfig() (audit.Config, error) {
	if c.Audit == nil {
		return audit.Config{}, nil
	}
	busy, err := ParseDurationField("audit.busy_timeout", c.Audit.BusyTimeout)
	if err != nil {
		return audit.Config{}, err
	}
	return audit.Config{
		Driver:      c.Audit.Driver,
		Path:        ExpandHome(c.Audit.Path),
		BusyTimeout: busy,
	}, nil
}

func (c *Config) NotifyConfig() (notify.Config, error) {
	if c.Notify == nil {
		return notify.Config{}, nil
	}
	n := c.Notify
	base, err := ParseDurationField("notify.retry_base", n.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	maxDelay, err := ParseDurationField("notify.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	window, err := ParseDurationField("notify.dedup_window", n.DedupWindow)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Enabled: n.Enabled,
		Channel: n.Channel,
		Telegram: notify.TelegramConfig{
			Token:  n.Telegram.Token,
			ChatID: n.Telegram.ChatID,
		},
		Ntfy: notify.NtfyConfig{
			Server: n.Ntfy.Server,
			Topic:  n.Ntfy.Topic,
			Token:  n.Ntfy.Token,
		},
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		DedupWindow:   window,
		TailLines:     n.TailLines,
	}, nil
}
