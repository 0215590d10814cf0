package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dron/internal/unit"
)

func managed(kind unit.Kind, job, extra string) unit.Artifact {
	return unit.Artifact{
		Kind: kind,
		Name: job + kind.Suffix(),
		Body: "# " + unit.Marker + "\n[Unit]\nDescription=" + job + "\n" + extra,
	}
}

func TestDiffFreshInstall(t *testing.T) {
	t.Parallel()
	desired := []unit.Artifact{
		managed(unit.KindService, "backup", ""),
		managed(unit.KindTimer, "backup", ""),
	}

	plan, err := Diff(desired, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Count(Create))
	assert.Equal(t, 2, plan.Changes())
}

func TestDiffIdempotent(t *testing.T) {
	t.Parallel()
	desired := []unit.Artifact{
		managed(unit.KindService, "backup", ""),
		managed(unit.KindTimer, "backup", ""),
		managed(unit.KindService, "sync", ""),
	}

	plan, err := Diff(desired, desired)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Changes(), "identical sets must produce no changes")
	assert.Equal(t, 3, plan.Count(Unchanged))
}

func TestDiffUpdateOnBodyChange(t *testing.T) {
	t.Parallel()
	installed := []unit.Artifact{managed(unit.KindTimer, "backup", "OnCalendar=daily\n")}
	desired := []unit.Artifact{managed(unit.KindTimer, "backup", "OnCalendar=hourly\n")}

	plan, err := Diff(desired, installed)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Count(Update))

	op := plan.Ops[0]
	assert.Equal(t, Update, op.Kind)
	require.NotNil(t, op.Previous)
	assert.Contains(t, op.Previous.Body, "OnCalendar=daily")
	assert.Contains(t, op.Artifact.Body, "OnCalendar=hourly")
}

func TestDiffOrdering(t *testing.T) {
	t.Parallel()
	installed := []unit.Artifact{
		managed(unit.KindService, "old", ""),
		managed(unit.KindTimer, "old", ""),
		managed(unit.KindService, "changed", "v1\n"),
	}
	desired := []unit.Artifact{
		managed(unit.KindService, "changed", "v2\n"),
		managed(unit.KindService, "fresh", ""),
	}

	plan, err := Diff(desired, installed)
	require.NoError(t, err)

	var kinds []OpKind
	var names []string
	for _, op := range plan.Ops {
		kinds = append(kinds, op.Kind)
		names = append(names, op.Artifact.Name)
	}
	// Updates come first, then creates, then deletes with the timer ahead of
	// its service.
	assert.Equal(t, []OpKind{Update, Create, Delete, Delete}, kinds)
	assert.Equal(t, []string{"changed.service", "fresh.service", "old.timer", "old.service"}, names)
}

func TestDiffNeverDeletesUnmanaged(t *testing.T) {
	t.Parallel()
	foreign := unit.Artifact{
		Kind: unit.KindService,
		Name: "handmade.service",
		Body: "[Unit]\nDescription=hand-written\n",
	}

	plan, err := Diff(nil, []unit.Artifact{foreign})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Changes(), "unmanaged units are not ours to delete")
}

func TestDiffCollisionWithUnmanagedIsError(t *testing.T) {
	t.Parallel()
	foreign := unit.Artifact{
		Kind: unit.KindService,
		Name: "backup.service",
		Body: "[Unit]\nDescription=hand-written\n",
	}
	desired := []unit.Artifact{managed(unit.KindService, "backup", "")}

	_, err := Diff(desired, []unit.Artifact{foreign})
	require.Error(t, err)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "backup.service", rerr.Name)
}

func TestDiffLegacyMarkerStillOwned(t *testing.T) {
	t.Parallel()
	legacy := unit.Artifact{
		Kind: unit.KindService,
		Name: "old.service",
		Body: "# <MANAGED BY DRON>\n[Unit]\n",
	}

	plan, err := Diff(nil, []unit.Artifact{legacy})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Count(Delete), "legacy-marked units are still managed")
}
