// Package journal reads systemd journal records for managed units via
// journalctl. It backs the past command and the monitor success rate.
package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"dron/pkg/logx"
)

// Entry is one journal record emitted by systemd about a unit.
type Entry struct {
	Time       time.Time
	Message    string
	JobType    string // set on job start records
	UnitResult string // set on failure records
}

type rawEntry struct {
	Realtime   string          `json:"__REALTIME_TIMESTAMP"` // usec since epoch
	Message    json.RawMessage `json:"MESSAGE"`
	JobType    string          `json:"JOB_TYPE"`
	UnitResult string          `json:"UNIT_RESULT"`
}

// Reader queries the user journal.
type Reader struct {
	// Bin is the journalctl binary.
	Bin string
	Log logx.Logger

	// runCmd is a test seam; nil means exec journalctl.
	runCmd func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewReader(log logx.Logger) *Reader {
	return &Reader{Bin: "journalctl", Log: log}
}

// Logs returns the systemd-tagged journal records for a unit, oldest first.
// Only records from systemd itself are requested; they carry the job start
// and unit result markers the success rate is computed from.
func (r *Reader) Logs(ctx context.Context, unitName string) ([]Entry, error) {
	args := []string{
		"--user", "-u", unitName, "-o", "json", "-t", "systemd",
		"--output-fields", "UNIT_RESULT,JOB_TYPE,MESSAGE",
	}
	out, err := r.run(ctx, r.Bin, args...)
	if err != nil {
		return nil, fmt.Errorf("journalctl %s: %w", unitName, err)
	}

	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var raw rawEntry
		if err := json.Unmarshal(sc.Bytes(), &raw); err != nil {
			r.Log.Debug("skipping malformed journal line", logx.Err(err))
			continue
		}
		entries = append(entries, Entry{
			Time:       usecTime(raw.Realtime),
			Message:    decodeMessage(raw.Message),
			JobType:    raw.JobType,
			UnitResult: raw.UnitResult,
		})
	}
	return entries, sc.Err()
}

// SuccessRate derives a unit's historical success ratio from its journal.
// Job start records count runs; unit result records count failures.
// Successful completions are not logged separately, so the rate is
// (started - failed) / started. A unit that never ran scores 1.0.
func (r *Reader) SuccessRate(ctx context.Context, unitName string) (float64, error) {
	entries, err := r.Logs(ctx, unitName)
	if err != nil {
		return 0, err
	}
	started, failed := 0, 0
	for _, e := range entries {
		switch {
		case e.JobType != "":
			started++
		case e.UnitResult != "":
			failed++
		}
	}
	if started == 0 {
		return 1.0, nil
	}
	return float64(started-failed) / float64(started), nil
}

// Tail returns the last n message lines for a unit, for embedding in a
// failure notification.
func (r *Reader) Tail(ctx context.Context, unitName string, n int) ([]string, error) {
	if n <= 0 {
		n = 20
	}
	args := []string{
		"--user", "-u", unitName, "-n", strconv.Itoa(n), "--no-pager", "-o", "cat",
	}
	out, err := r.run(ctx, r.Bin, args...)
	if err != nil {
		return nil, fmt.Errorf("journalctl %s: %w", unitName, err)
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func (r *Reader) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.runCmd != nil {
		return r.runCmd(ctx, name, args...)
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

func usecTime(s string) time.Time {
	usec, err := strconv.ParseUint(s, 10, 64)
	if err != nil || usec == 0 {
		return time.Time{}
	}
	return time.UnixMicro(int64(usec))
}

// decodeMessage handles journalctl's two MESSAGE encodings: a plain JSON
// string, or an array of bytes when the payload is not valid UTF-8.
func decodeMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var b []byte
	if err := json.Unmarshal(raw, &b); err == nil {
		return string(b)
	}
	return string(raw)
}
