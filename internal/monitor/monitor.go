// Package monitor renders the status table for managed jobs: schedule, next
// elapse, last run and its result, straight from systemd.
package monitor

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"dron/internal/journal"
	"dron/internal/state"
	"dron/internal/sysd"
	"dron/internal/unit"
	"dron/pkg/logx"
)

// Options selects optional (and slower) table columns.
type Options struct {
	WithCommand bool
	WithRate    bool // success rate from the journal; queries can be slow
}

// Entry is one row of the monitor table.
type Entry struct {
	Job      string
	Schedule string
	Next     string
	Left     string
	Status   string
	OK       bool
	Rate     string
	Command  string
	PID      string
}

// Monitor collects live status for every managed job in a unit directory.
type Monitor struct {
	Dir     string
	Sysd    sysd.Manager
	Journal *journal.Reader
	Log     logx.Logger

	// now is a test seam.
	now func() time.Time
}

func New(dir string, mgr sysd.Manager, jr *journal.Reader, log logx.Logger) *Monitor {
	return &Monitor{Dir: dir, Sysd: mgr, Journal: jr, Log: log, now: time.Now}
}

// Entries reads the managed artifacts and asks systemd about each job.
// Jobs are keyed by name; a job with a timer reports the timer's schedule,
// a timerless job reports its service state directly.
func (m *Monitor) Entries(ctx context.Context, opts Options) ([]Entry, error) {
	installed, err := state.Read(m.Dir)
	if err != nil {
		return nil, err
	}
	installed = state.Managed(installed)

	timers := map[string]bool{}
	jobs := map[string]bool{}
	for _, a := range installed {
		jobs[a.JobName()] = true
		if a.Kind == unit.KindTimer {
			timers[a.JobName()] = true
		}
	}
	names := make([]string, 0, len(jobs))
	for n := range jobs {
		names = append(names, n)
	}
	sort.Strings(names)

	now := m.now()
	var entries []Entry
	for _, name := range names {
		e := Entry{Job: name}
		if timers[name] {
			ts, err := m.Sysd.TimerStatus(ctx, name+unit.KindTimer.Suffix())
			if err != nil {
				m.Log.Warn("timer status", logx.String("job", name), logx.Err(err))
				e.Schedule = "?"
			} else {
				e.Schedule = ts.Schedule
				e.Next = fmtTime(ts.NextElapse)
				e.Left = fmtDelta(ts.NextElapse.Sub(now))
			}
		} else {
			e.Schedule = "always"
		}

		ss, err := m.Sysd.ServiceStatus(ctx, name+unit.KindService.Suffix())
		if err != nil {
			m.Log.Warn("service status", logx.String("job", name), logx.Err(err))
			e.Status = "?"
		} else {
			e.Status = serviceResult(ss, timers[name], now)
			e.OK = ss.Result == "" || ss.Result == "success"
			if opts.WithCommand {
				e.Command = ss.ExecStart
			}
			if ss.MainPID != 0 {
				e.PID = fmt.Sprintf("%d", ss.MainPID)
			}
		}

		if opts.WithRate && m.Journal != nil {
			rate, err := m.Journal.SuccessRate(ctx, name+unit.KindService.Suffix())
			if err != nil {
				m.Log.Warn("success rate", logx.String("job", name), logx.Err(err))
				e.Rate = "?"
			} else {
				e.Rate = fmt.Sprintf("%.2f", rate)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func serviceResult(ss sysd.ServiceStatus, timerDriven bool, now time.Time) string {
	result := ss.Result
	if result == "" {
		result = ss.SubState
	}
	var ago string
	switch {
	case ss.Running():
		ago = "running"
	case ss.ActiveSince.IsZero():
		ago = "never"
	default:
		ago = fmtDelta(now.Sub(ss.ActiveSince)) + " ago"
	}
	return fmt.Sprintf("%-9s %s", result, ago)
}

// Print writes the table. Columns with no data anywhere are still printed;
// keeping the layout stable makes the output scriptable.
func Print(w io.Writer, entries []Entry, opts Options) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	header := "JOB\tSCHEDULE\tNEXT\tLEFT\tSTATUS"
	if opts.WithRate {
		header += "\tRATE"
	}
	if opts.WithCommand {
		header += "\tPID\tCOMMAND"
	}
	fmt.Fprintln(tw, header)
	for _, e := range entries {
		row := strings.Join([]string{e.Job, e.Schedule, e.Next, e.Left, e.Status}, "\t")
		if opts.WithRate {
			row += "\t" + e.Rate
		}
		if opts.WithCommand {
			row += "\t" + e.PID + "\t" + e.Command
		}
		fmt.Fprintln(tw, row)
	}
	return tw.Flush()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// fmtDelta renders a duration the way a human reads a schedule: coarse,
// seconds dropped past an hour.
func fmtDelta(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d >= 24*time.Hour:
		days := d / (24 * time.Hour)
		rest := (d % (24 * time.Hour)).Truncate(time.Hour)
		if rest == 0 {
			return fmt.Sprintf("%dd", days)
		}
		return fmt.Sprintf("%dd%s", days, rest)
	case d >= time.Hour:
		return d.Truncate(time.Minute).String()
	default:
		return d.Truncate(time.Second).String()
	}
}
