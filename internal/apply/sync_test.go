package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dron/internal/reconcile"
	"dron/internal/unit"
	"dron/internal/verify"
	"dron/pkg/logx"
)

type fakeValidator struct {
	errs  []verify.Error
	calls int
}

func (v *fakeValidator) Validate(context.Context, []unit.Artifact) []verify.Error {
	v.calls++
	return v.errs
}

func dirSnapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	snap := map[string]string{}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		snap[e.Name()] = string(b)
	}
	return snap
}

func TestSyncApplies(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mgr := &fakeManager{}
	a := New(dir, mgr, logx.Nop())
	vd := &fakeValidator{}

	desired := []unit.Artifact{art(unit.KindService, "backup"), art(unit.KindTimer, "backup")}
	res, err := a.Sync(context.Background(), desired, SyncOptions{Checker: vd})
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 1, vd.calls)
	assert.False(t, res.Report.Failed())

	for _, d := range desired {
		b, err := os.ReadFile(filepath.Join(dir, d.Name))
		require.NoError(t, err)
		assert.Equal(t, d.Body, string(b))
	}
}

func TestSyncNoChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	svc := art(unit.KindService, "backup")
	require.NoError(t, os.WriteFile(filepath.Join(dir, svc.Name), []byte(svc.Body), 0o644))

	mgr := &fakeManager{}
	a := New(dir, mgr, logx.Nop())
	vd := &fakeValidator{}

	previewed := false
	res, err := a.Sync(context.Background(), []unit.Artifact{svc}, SyncOptions{
		Checker: vd,
		Preview: func(*reconcile.Plan) { previewed = true },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Plan.Changes())
	assert.Nil(t, res.Report)
	assert.False(t, previewed)
	assert.Equal(t, 0, vd.calls, "an empty plan is not validated")
	assert.Empty(t, mgr.calls)
}

func TestSyncValidationFailureWritesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	stale := art(unit.KindService, "stale")
	require.NoError(t, os.WriteFile(filepath.Join(dir, stale.Name), []byte(stale.Body), 0o644))
	before := dirSnapshot(t, dir)

	mgr := &fakeManager{}
	a := New(dir, mgr, logx.Nop())
	vd := &fakeValidator{errs: []verify.Error{{Unit: "backup.service", Msg: "Unknown key name 'ExecStrat'"}}}

	desired := []unit.Artifact{art(unit.KindService, "backup"), art(unit.KindTimer, "backup")}
	res, err := a.Sync(context.Background(), desired, SyncOptions{Checker: vd})
	require.NoError(t, err)
	require.Len(t, res.Validation, 1)
	assert.Nil(t, res.Report)

	// one bad artifact blocks the whole batch: no write, no delete, no reload
	assert.Equal(t, before, dirSnapshot(t, dir))
	assert.Empty(t, mgr.calls)
}

func TestSyncForeignUnitCollision(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	foreign := "[Unit]\nDescription=hand written backup\n[Service]\nExecStart=/usr/local/bin/theirs\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup.service"), []byte(foreign), 0o644))

	mgr := &fakeManager{}
	a := New(dir, mgr, logx.Nop())

	desired := []unit.Artifact{art(unit.KindService, "backup")}
	res, err := a.Sync(context.Background(), desired, SyncOptions{})
	require.Error(t, err)
	assert.Nil(t, res)

	var rerr *reconcile.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "backup.service", rerr.Name)

	b, rdErr := os.ReadFile(filepath.Join(dir, "backup.service"))
	require.NoError(t, rdErr)
	assert.Equal(t, foreign, string(b), "the foreign unit must survive untouched")
	assert.Empty(t, mgr.calls)
}

func TestSyncConfirmDeclined(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	old := art(unit.KindService, "old")
	require.NoError(t, os.WriteFile(filepath.Join(dir, old.Name), []byte(old.Body), 0o644))

	mgr := &fakeManager{}
	a := New(dir, mgr, logx.Nop())

	res, err := a.Sync(context.Background(), nil, SyncOptions{
		Confirm: func(plan *reconcile.Plan) bool { return false },
	})
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Nil(t, res.Report)

	_, statErr := os.Stat(filepath.Join(dir, old.Name))
	assert.NoError(t, statErr, "a declined confirmation must not delete")
	assert.Empty(t, mgr.calls)
}
