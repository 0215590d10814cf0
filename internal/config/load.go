package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dron", "config.yaml")
}

// DefaultTab is the drontab path used when neither the config nor the CLI
// names one.
func DefaultTab() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dron", "drontab.yaml")
}

// DefaultUnitsDir is the systemd user unit directory.
func DefaultUnitsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "systemd", "user")
}

// Load reads, strictly decodes and defaults the config. A missing file at
// the default path yields the default config; a missing file at an explicit
// path is an error.
func Load(path string, explicit bool) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := &Config{}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}

	cfg, err = parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func parse(path string, b []byte) (*Config, error) {
	jb, err := yamlToJSON(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// yamlToJSON turns a .yaml/.yml config into JSON so parse can run one strict
// decoder over both formats. Any other extension passes through as JSON.
func yamlToJSON(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("config is not valid yaml: %w", err)
	}
	j, err := json.Marshal(stringKeys(v))
	if err != nil {
		return nil, fmt.Errorf("convert config yaml: %w", err)
	}
	return j, nil
}

// stringKeys rewrites yaml map keys to strings so the tree JSON-marshals.
func stringKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = stringKeys(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeys(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return in
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Tab == "" {
		cfg.Tab = DefaultTab()
	} else {
		cfg.Tab = ExpandHome(cfg.Tab)
	}
	if cfg.UnitsDir == "" {
		cfg.UnitsDir = DefaultUnitsDir()
	} else {
		cfg.UnitsDir = ExpandHome(cfg.UnitsDir)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// ExpandHome resolves a leading ~/ against the current user's home.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/"))
	}
	return p
}
