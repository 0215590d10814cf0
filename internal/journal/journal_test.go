package journal

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"dron/pkg/logx"
)

func fakeReader(out string, argsOut *[]string) *Reader {
	r := NewReader(logx.Nop())
	r.runCmd = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if argsOut != nil {
			*argsOut = append([]string{name}, args...)
		}
		return []byte(out), nil
	}
	return r
}

func TestLogsParsesRecords(t *testing.T) {
	t.Parallel()
	out := strings.Join([]string{
		`{"__REALTIME_TIMESTAMP":"1722510000000000","MESSAGE":"Starting backup.service...","JOB_TYPE":"start"}`,
		`{"__REALTIME_TIMESTAMP":"1722510005000000","MESSAGE":"backup.service: Failed with result 'exit-code'.","UNIT_RESULT":"exit-code"}`,
		`not json at all`,
		`{"__REALTIME_TIMESTAMP":"1722510010000000","MESSAGE":[104,105]}`,
	}, "\n")

	var args []string
	r := fakeReader(out, &args)
	entries, err := r.Logs(context.Background(), "backup.service")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (malformed line skipped)", len(entries))
	}

	if entries[0].JobType != "start" {
		t.Fatalf("job type: %q", entries[0].JobType)
	}
	want := time.UnixMicro(1722510000000000)
	if !entries[0].Time.Equal(want) {
		t.Fatalf("time: %v, want %v", entries[0].Time, want)
	}
	if entries[1].UnitResult != "exit-code" {
		t.Fatalf("unit result: %q", entries[1].UnitResult)
	}
	if entries[2].Message != "hi" {
		t.Fatalf("byte-array message: %q", entries[2].Message)
	}

	joined := strings.Join(args, " ")
	for _, frag := range []string{"journalctl", "--user", "-u backup.service", "-t systemd", "--output-fields UNIT_RESULT,JOB_TYPE,MESSAGE"} {
		if !strings.Contains(joined, frag) {
			t.Fatalf("args missing %q: %v", frag, args)
		}
	}
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()
	start := `{"__REALTIME_TIMESTAMP":"1","JOB_TYPE":"start","MESSAGE":"x"}`
	fail := `{"__REALTIME_TIMESTAMP":"2","UNIT_RESULT":"exit-code","MESSAGE":"x"}`

	tests := []struct {
		name string
		out  string
		want float64
	}{
		{"never ran", "", 1.0},
		{"all good", strings.Join([]string{start, start, start}, "\n"), 1.0},
		{"one of four failed", strings.Join([]string{start, fail, start, start, start}, "\n"), 0.75},
		{"all failed", strings.Join([]string{start, fail}, "\n"), 0.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := fakeReader(tc.out, nil)
			got, err := r.SuccessRate(context.Background(), "j.service")
			if err != nil {
				t.Fatalf("rate: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTail(t *testing.T) {
	t.Parallel()
	var args []string
	r := fakeReader("line one\nline two\n", &args)

	lines, err := r.Tail(context.Background(), "backup.service", 5)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(lines) != 2 || lines[0] != "line one" || lines[1] != "line two" {
		t.Fatalf("lines: %v", lines)
	}
	joined := strings.Join(args, " ")
	for _, frag := range []string{"-n 5", "-o cat", "--no-pager"} {
		if !strings.Contains(joined, frag) {
			t.Fatalf("args missing %q: %v", frag, args)
		}
	}
}

func TestTailDefaultCount(t *testing.T) {
	t.Parallel()
	var args []string
	r := fakeReader("", &args)
	if _, err := r.Tail(context.Background(), "j.service", 0); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "-n 20") {
		t.Fatalf("default count not applied: %v", args)
	}
}
