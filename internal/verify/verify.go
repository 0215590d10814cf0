// Package verify is the validation gate in front of the applier: nothing is
// written to the unit directory unless the whole desired set passes.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dron/internal/unit"
	"dron/pkg/logx"
)

// Error is one validation finding. Findings are collected, not fail-fast,
// so a user fixing a drontab sees every problem at once.
type Error struct {
	Unit string // file name the finding is attributed to; may be empty
	Msg  string
}

func (e Error) Error() string {
	if e.Unit == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Unit, e.Msg)
}

// Checker validates rendered artifacts with systemd's own verifier plus a
// shell syntax pass over embedded command lines.
type Checker struct {
	// Skip disables all checks (--no-verify).
	Skip bool
	// Analyze is the systemd-analyze binary.
	Analyze string
	// Shell is used for `sh -n` command syntax checks.
	Shell string

	Log logx.Logger

	// runCmd is a test seam; nil means exec the real command.
	runCmd func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

func NewChecker(log logx.Logger) *Checker {
	return &Checker{Analyze: "systemd-analyze", Shell: "/bin/sh", Log: log}
}

func (c *Checker) run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if c.runCmd != nil {
		return c.runCmd(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Validate checks every artifact and returns all findings. An empty result
// means the batch may be applied.
func (c *Checker) Validate(ctx context.Context, artifacts []unit.Artifact) []Error {
	if c.Skip || len(artifacts) == 0 {
		return nil
	}

	var errs []Error
	errs = append(errs, c.analyzeBatch(ctx, artifacts)...)
	for _, a := range artifacts {
		errs = append(errs, c.checkCommands(ctx, a)...)
	}
	return errs
}

// analyzeBatch runs systemd-analyze verify over the whole set in one
// invocation. Verifying in bulk is dramatically faster than per-unit, and
// verification must not run concurrently anyway (it trips over its own
// socket setup).
func (c *Checker) analyzeBatch(ctx context.Context, artifacts []unit.Artifact) []Error {
	tdir, err := os.MkdirTemp("", "dron-verify-")
	if err != nil {
		return []Error{{Msg: "verify tempdir: " + err.Error()}}
	}
	defer os.RemoveAll(tdir)

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p := filepath.Join(tdir, a.Name)
		if err := os.WriteFile(p, []byte(a.Body), 0o644); err != nil {
			return []Error{{Unit: a.Name, Msg: "verify write: " + err.Error()}}
		}
		paths = append(paths, p)
	}

	args := append([]string{"--user", "verify"}, paths...)
	stdout, stderr, runErr := c.run(ctx, c.Analyze, args...)
	if len(stdout) != 0 {
		c.Log.Warn("unexpected systemd-analyze stdout", logx.String("out", string(stdout)))
	}

	lines := dedupeLines(string(stderr))
	if len(lines) == 0 {
		// Exit code alone is not trustworthy here; empty stderr is the
		// actual success signal.
		return nil
	}
	if runErr != nil {
		c.Log.Debug("systemd-analyze failed", logx.Err(runErr))
	}

	var errs []Error
	for _, line := range lines {
		errs = append(errs, Error{Unit: attributeLine(line, artifacts), Msg: line})
	}
	return errs
}

// checkCommands runs `sh -n` over every Exec* command line in a service
// artifact. systemd's exec syntax is close enough to shell for this to catch
// the usual quoting mistakes before they land on disk.
func (c *Checker) checkCommands(ctx context.Context, a unit.Artifact) []Error {
	if a.Kind != unit.KindService {
		return nil
	}
	var errs []Error
	for _, line := range strings.Split(a.Body, "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok || !strings.HasPrefix(key, "Exec") {
			continue
		}
		_, stderr, err := c.run(ctx, c.Shell, "-n", "-c", val)
		if err == nil {
			continue
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		errs = append(errs, Error{Unit: a.Name, Msg: key + ": " + msg})
	}
	return errs
}

// dedupeLines collapses repeated stderr lines. In bulk mode systemd-analyze
// spams "Cannot add dependency job" once per unit pair.
func dedupeLines(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

func attributeLine(line string, artifacts []unit.Artifact) string {
	for _, a := range artifacts {
		if strings.Contains(line, a.Name) {
			return a.Name
		}
	}
	return ""
}
