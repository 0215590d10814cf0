package job

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// WhenKind describes the normalized kind of a schedule expression.
type WhenKind int

const (
	// Always means no timer unit at all: the job is triggered externally
	// (started manually, socket/path activated, or kept running as a
	// persistent service).
	Always WhenKind = iota
	// Calendar schedules via OnCalendar.
	Calendar
	// Interval schedules via OnBootSec/OnUnitActiveSec.
	Interval
	// RawTimer carries user-supplied [Timer] directives verbatim.
	RawTimer
)

// When is a parsed schedule expression.
//
// Supported forms:
//   - systemd calendar specs, passed through verbatim: "daily", "*:0/10",
//     "Mon *-*-* 09:00"
//   - cron expressions with an explicit "cron:" prefix: "cron:*/5 * * * *"
//   - "@hourly"-style cron shorthands
//   - intervals: "10m", "1h30m", optionally prefixed "every:" / "interval:"
//   - "always" (or empty): no timer
//
// Parsing never talks to systemd; calendar expressions are only checked for
// real by systemd-analyze at the validation gate.
type When struct {
	Kind     WhenKind
	Calendar string        // OnCalendar expression (Kind == Calendar)
	Every    time.Duration // interval (Kind == Interval)
	Timer    []Property    // raw [Timer] lines (Kind == RawTimer)
}

// HasTimer reports whether this schedule renders a companion timer unit.
func (w When) HasTimer() bool { return w.Kind != Always }

// TimerLines returns the [Timer] section body for this schedule.
func (w When) TimerLines() []Property {
	switch w.Kind {
	case Calendar:
		return []Property{{Key: "OnCalendar", Value: w.Calendar}}
	case Interval:
		d := w.Every.String()
		return []Property{
			{Key: "OnBootSec", Value: d},
			{Key: "OnUnitActiveSec", Value: d},
		}
	case RawTimer:
		return w.Timer
	default:
		return nil
	}
}

func (w When) String() string {
	switch w.Kind {
	case Calendar:
		return w.Calendar
	case Interval:
		return "every " + w.Every.String()
	case RawTimer:
		parts := make([]string, 0, len(w.Timer))
		for _, p := range w.Timer {
			parts = append(parts, p.Key+"="+p.Value)
		}
		return strings.Join(parts, " ")
	default:
		return "always"
	}
}

// ParseWhen parses a schedule expression.
func ParseWhen(raw string) (When, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "always") || strings.EqualFold(s, "manual") {
		return When{Kind: Always}, nil
	}

	low := strings.ToLower(s)
	if expr, ok := strings.CutPrefix(low, "cron:"); ok {
		return parseCron(strings.TrimSpace(s[len(s)-len(expr):]))
	}
	for _, pfx := range []string{"every:", "interval:"} {
		if v, ok := strings.CutPrefix(low, pfx); ok {
			return parseInterval(strings.TrimSpace(s[len(s)-len(v):]))
		}
	}

	// "@hourly", "@every 10m" and friends are unambiguous cron shorthands.
	if strings.HasPrefix(s, "@") {
		return parseCron(s)
	}

	// A bare Go duration is an interval.
	if d, err := time.ParseDuration(s); err == nil {
		return intervalWhen(d)
	}

	// Everything else is a systemd calendar expression, passed through as-is.
	return When{Kind: Calendar, Calendar: s}, nil
}

func parseInterval(v string) (When, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return When{}, fmt.Errorf("bad interval %q: %w", v, err)
	}
	return intervalWhen(d)
}

func intervalWhen(d time.Duration) (When, error) {
	if d < time.Second {
		return When{}, fmt.Errorf("interval %s too short (min 1s)", d)
	}
	return When{Kind: Interval, Every: d.Round(time.Second)}, nil
}

// shorthand cron specs map directly onto systemd's named calendar shortcuts.
var cronShorthands = map[string]string{
	"@hourly":   "hourly",
	"@daily":    "daily",
	"@midnight": "daily",
	"@weekly":   "weekly",
	"@monthly":  "monthly",
	"@yearly":   "yearly",
	"@annually": "yearly",
}

func parseCron(expr string) (When, error) {
	if cal, ok := cronShorthands[strings.ToLower(expr)]; ok {
		return When{Kind: Calendar, Calendar: cal}, nil
	}
	if v, ok := strings.CutPrefix(strings.ToLower(expr), "@every "); ok {
		return parseInterval(strings.TrimSpace(v))
	}

	// Validate with the cron parser first so translation only sees
	// well-formed fields.
	if _, err := cron.ParseStandard(expr); err != nil {
		return When{}, fmt.Errorf("bad cron expression %q: %w", expr, err)
	}

	cal, err := cronToCalendar(expr)
	if err != nil {
		return When{}, err
	}
	return When{Kind: Calendar, Calendar: cal}, nil
}

// cronToCalendar translates a five-field cron expression into an equivalent
// systemd OnCalendar expression.
//
//	m h dom mon dow  ->  [dow] *-mon-dom h:m:00
func cronToCalendar(expr string) (string, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return "", fmt.Errorf("cron expression %q: want 5 fields, got %d", expr, len(fields))
	}

	min, err := cronField(fields[0], 0)
	if err != nil {
		return "", fmt.Errorf("cron minute field: %w", err)
	}
	hour, err := cronField(fields[1], 0)
	if err != nil {
		return "", fmt.Errorf("cron hour field: %w", err)
	}
	dom, err := cronField(fields[2], 1)
	if err != nil {
		return "", fmt.Errorf("cron day-of-month field: %w", err)
	}
	mon, err := cronField(fields[3], 1)
	if err != nil {
		return "", fmt.Errorf("cron month field: %w", err)
	}
	dow, err := cronDOW(fields[4])
	if err != nil {
		return "", fmt.Errorf("cron day-of-week field: %w", err)
	}

	cal := fmt.Sprintf("*-%s-%s %s:%s:00", mon, dom, hour, min)
	if dow != "" {
		cal = dow + " " + cal
	}
	return cal, nil
}

// cronField converts one numeric cron field into systemd calendar syntax.
// base is the smallest legal value, needed because cron's "*/n" starts the
// repetition at the field minimum while systemd wants it spelled out.
func cronField(f string, base int) (string, error) {
	parts := strings.Split(f, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		c, err := cronPart(p, base)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	return strings.Join(out, ","), nil
}

func cronPart(p string, base int) (string, error) {
	body, step, hasStep := strings.Cut(p, "/")
	if hasStep {
		if _, err := strconv.Atoi(step); err != nil {
			return "", fmt.Errorf("bad step %q", p)
		}
	}

	var conv string
	switch {
	case body == "*":
		if hasStep {
			// systemd repetition needs an explicit start value.
			conv = strconv.Itoa(base)
		} else {
			conv = "*"
		}
	case strings.Contains(body, "-"):
		lo, hi, _ := strings.Cut(body, "-")
		if !isInt(lo) || !isInt(hi) {
			return "", fmt.Errorf("bad range %q", p)
		}
		conv = lo + ".." + hi
	default:
		if !isInt(body) {
			return "", fmt.Errorf("bad value %q", p)
		}
		conv = body
	}

	if hasStep {
		conv += "/" + step
	}
	return conv, nil
}

var cronDays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// cronDOW converts the day-of-week field to systemd day names.
// "*" maps to the empty string: the calendar component is simply omitted.
func cronDOW(f string) (string, error) {
	if f == "*" {
		return "", nil
	}
	day := func(s string) (string, error) {
		if n, err := strconv.Atoi(s); err == nil {
			if n < 0 || n > 7 {
				return "", fmt.Errorf("day-of-week %d out of range", n)
			}
			return cronDays[n%7], nil
		}
		// Names pass through; the cron parser has already vetted them.
		if len(s) >= 3 {
			return strings.ToUpper(s[:1]) + strings.ToLower(s[1:3]), nil
		}
		return "", fmt.Errorf("bad day-of-week %q", s)
	}

	parts := strings.Split(f, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if lo, hi, isRange := strings.Cut(p, "-"); isRange {
			l, err := day(lo)
			if err != nil {
				return "", err
			}
			h, err := day(hi)
			if err != nil {
				return "", err
			}
			out = append(out, l+".."+h)
			continue
		}
		d, err := day(p)
		if err != nil {
			return "", err
		}
		out = append(out, d)
	}
	return strings.Join(out, ","), nil
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
