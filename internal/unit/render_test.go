package unit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dron/internal/job"
)

func timedSpec(t *testing.T, name, when, command string) job.Spec {
	t.Helper()
	w, err := job.ParseWhen(when)
	require.NoError(t, err)
	return job.Spec{Name: name, When: w, Command: command}
}

func TestRenderTimedJob(t *testing.T) {
	t.Parallel()
	spec := timedSpec(t, "backup", "daily", "/usr/local/bin/run-backup")

	arts, err := Render(spec)
	require.NoError(t, err)
	require.Len(t, arts, 2)

	svc, timer := arts[0], arts[1]
	assert.Equal(t, "backup.service", svc.Name)
	assert.Equal(t, KindService, svc.Kind)
	assert.Equal(t, "backup.timer", timer.Name)
	assert.Equal(t, KindTimer, timer.Kind)

	for _, a := range arts {
		assert.True(t, IsManaged(a.Body), "%s missing managed marker", a.Name)
		assert.Equal(t, "backup", a.JobName())
	}

	assert.Contains(t, svc.Body, "ExecStart=/usr/local/bin/run-backup")
	assert.Contains(t, timer.Body, "OnCalendar=daily")
	assert.Contains(t, timer.Body, "WantedBy=timers.target")
}

func TestRenderAlwaysJobHasNoTimer(t *testing.T) {
	t.Parallel()
	spec := timedSpec(t, "syncthing", "always", "/usr/bin/syncthing")

	arts, err := Render(spec)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, KindService, arts[0].Kind)
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()
	spec := timedSpec(t, "job", "hourly", "/bin/true")
	spec.OnFailure = []string{"dron notify %n"}
	spec.Extra = []job.Property{
		{Key: "CPUQuota", Value: "50%"},
		{Key: "[Unit]After", Value: "network-online.target"},
	}

	first, err := Render(spec)
	require.NoError(t, err)
	second, err := Render(spec)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Body, second[i].Body, "rendering must be byte-stable")
	}
}

func TestRenderFailureHook(t *testing.T) {
	t.Parallel()
	spec := timedSpec(t, "job", "daily", "/bin/true")
	spec.OnFailure = []string{"dron notify %n"}

	arts, err := Render(spec)
	require.NoError(t, err)
	assert.Contains(t, arts[0].Body,
		"ExecStopPost=/bin/sh -c 'if [ $$EXIT_STATUS != 0 ]; then dron notify %n; fi'")
}

func TestRenderExtraSectionAddressing(t *testing.T) {
	t.Parallel()
	spec := timedSpec(t, "job", "daily", "/bin/true")
	spec.Extra = []job.Property{
		{Key: "CPUQuota", Value: "50%"},
		{Key: "[Unit]After", Value: "network-online.target"},
		{Key: "[Install]WantedBy", Value: "default.target"},
	}

	arts, err := Render(spec)
	require.NoError(t, err)
	body := arts[0].Body

	// Section-less keys land in [Service]; "[Section]Key" keys land in theirs.
	svcIdx := strings.Index(body, "[Service]")
	require.GreaterOrEqual(t, svcIdx, 0)
	assert.Contains(t, body[svcIdx:], "CPUQuota=50%")

	unitIdx := strings.Index(body, "[Unit]")
	require.GreaterOrEqual(t, unitIdx, 0)
	unitSection := body[unitIdx:svcIdx]
	assert.Contains(t, unitSection, "After=network-online.target")

	assert.Contains(t, body, "[Install]\nWantedBy=default.target")
}

func TestRenderRejectsInvalidSpec(t *testing.T) {
	t.Parallel()
	_, err := Render(job.Spec{Name: "bad name!", Command: "/bin/true"})
	require.Error(t, err)
}

func TestRenderAllCollectsErrors(t *testing.T) {
	t.Parallel()
	specs := []job.Spec{
		timedSpec(t, "good", "daily", "/bin/true"),
		{Name: "bad one", Command: "/bin/true"},
		{Name: "nocmd"},
	}
	arts, errs := RenderAll(specs)
	assert.Len(t, arts, 2) // good renders service + timer
	assert.Len(t, errs, 2)
}

func TestIsManaged(t *testing.T) {
	t.Parallel()
	assert.True(t, IsManaged("# (MANAGED BY DRON)\n[Unit]\n"))
	assert.True(t, IsManaged("# <MANAGED BY DRON>\n[Unit]\n"), "legacy marker must stay recognized")
	assert.False(t, IsManaged("[Unit]\nDescription=hand-written\n"))
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	k, ok := KindOf("foo.service")
	assert.True(t, ok)
	assert.Equal(t, KindService, k)

	k, ok = KindOf("foo.timer")
	assert.True(t, ok)
	assert.Equal(t, KindTimer, k)

	_, ok = KindOf("foo.socket")
	assert.False(t, ok)
}
