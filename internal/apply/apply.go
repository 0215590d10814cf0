// Package apply pushes a validated change plan into the unit directory and
// activates the result through systemd.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dron/internal/reconcile"
	"dron/internal/sysd"
	"dron/internal/unit"
	"dron/pkg/logx"
)

// Status tracks an artifact through its apply lifecycle.
type Status string

const (
	StatusWritten   Status = "written"
	StatusActivated Status = "activated"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusRemoved   Status = "removed"
)

// Outcome is the final state of one plan operation.
type Outcome struct {
	Name   string
	Op     reconcile.OpKind
	Status Status
	Err    string
}

// Report summarizes an apply run.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) add(o Outcome) { r.Outcomes = append(r.Outcomes, o) }

// Failed reports whether any operation failed.
func (r *Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Skipped reports whether any operation was abandoned after an earlier
// failure.
func (r *Report) Skipped() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusSkipped {
			return true
		}
	}
	return false
}

// Applier executes change plans against a unit directory.
type Applier struct {
	Dir  string
	Sysd sysd.Manager
	Log  logx.Logger
}

func New(dir string, mgr sysd.Manager, log logx.Logger) *Applier {
	return &Applier{Dir: dir, Sysd: mgr, Log: log}
}

// Apply executes the plan's changes in order: updates, creates, then deletes.
// The first failed write aborts the remaining writes (they are reported as
// skipped), but a single daemon reload still runs so systemd agrees with
// whatever made it to disk. Unchanged operations are never touched.
func (a *Applier) Apply(ctx context.Context, plan *reconcile.Plan) (*Report, error) {
	rep := &Report{}
	var changes []reconcile.Op
	for _, op := range plan.Ops {
		if op.Kind != reconcile.Unchanged {
			changes = append(changes, op)
		}
	}
	if len(changes) == 0 {
		a.Log.Info("nothing to apply")
		return rep, nil
	}

	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return rep, fmt.Errorf("unit dir: %w", err)
	}

	// Jobs whose desired state includes a timer are driven by it; their
	// services must not be started directly.
	timerDriven := map[string]bool{}
	for _, op := range plan.Ops {
		if op.Kind != reconcile.Delete && op.Artifact.Kind == unit.KindTimer {
			timerDriven[op.Artifact.JobName()] = true
		}
	}

	var written []reconcile.Op
	aborted := false
	for _, op := range changes {
		if aborted {
			rep.add(Outcome{Name: op.Artifact.Name, Op: op.Kind, Status: StatusSkipped})
			continue
		}
		switch op.Kind {
		case reconcile.Create, reconcile.Update:
			path := filepath.Join(a.Dir, op.Artifact.Name)
			if err := os.WriteFile(path, []byte(op.Artifact.Body), 0o644); err != nil {
				a.Log.Error("write unit", logx.String("unit", op.Artifact.Name), logx.Err(err))
				rep.add(Outcome{Name: op.Artifact.Name, Op: op.Kind, Status: StatusFailed, Err: err.Error()})
				aborted = true
				continue
			}
			a.Log.Info("wrote unit", logx.String("unit", op.Artifact.Name), logx.String("op", op.Kind.String()))
			rep.add(Outcome{Name: op.Artifact.Name, Op: op.Kind, Status: StatusWritten})
			written = append(written, op)
		case reconcile.Delete:
			if err := a.removeUnit(ctx, op.Artifact); err != nil {
				a.Log.Error("remove unit", logx.String("unit", op.Artifact.Name), logx.Err(err))
				rep.add(Outcome{Name: op.Artifact.Name, Op: op.Kind, Status: StatusFailed, Err: err.Error()})
				aborted = true
				continue
			}
			a.Log.Info("removed unit", logx.String("unit", op.Artifact.Name))
			rep.add(Outcome{Name: op.Artifact.Name, Op: op.Kind, Status: StatusRemoved})
		}
	}

	// One reload for the whole batch, even after a partial failure.
	if err := a.Sysd.Reload(ctx); err != nil {
		a.Log.Error("daemon reload", logx.Err(err))
		return rep, fmt.Errorf("daemon reload: %w", err)
	}

	for _, op := range written {
		if err := a.activate(ctx, op, timerDriven); err != nil {
			a.Log.Error("activate unit", logx.String("unit", op.Artifact.Name), logx.Err(err))
			setOutcome(rep, op.Artifact.Name, StatusFailed, err.Error())
			continue
		}
		setOutcome(rep, op.Artifact.Name, StatusActivated, "")
	}
	return rep, nil
}

// activate brings a freshly written unit into its running state. Timers are
// enabled and started so their next elapse is scheduled; services only run
// directly when no timer drives them.
func (a *Applier) activate(ctx context.Context, op reconcile.Op, timerDriven map[string]bool) error {
	name := op.Artifact.Name
	switch op.Artifact.Kind {
	case unit.KindTimer:
		if op.Kind == reconcile.Create {
			return a.Sysd.Enable(ctx, name, true)
		}
		// Restart re-reads the schedule for an updated timer.
		return a.Sysd.Restart(ctx, name)
	case unit.KindService:
		if timerDriven[op.Artifact.JobName()] {
			return nil
		}
		if op.Kind == reconcile.Create {
			return a.Sysd.Enable(ctx, name, true)
		}
		return a.Sysd.Restart(ctx, name)
	}
	return nil
}

// removeUnit stops and disables a managed unit, then unlinks its file.
// Timers are ordered before their services in the plan, so a job's schedule
// is gone before the service it would have fired.
func (a *Applier) removeUnit(ctx context.Context, art unit.Artifact) error {
	if err := a.Sysd.Stop(ctx, art.Name); err != nil {
		return fmt.Errorf("stop %s: %w", art.Name, err)
	}
	if err := a.Sysd.Disable(ctx, art.Name); err != nil {
		return fmt.Errorf("disable %s: %w", art.Name, err)
	}
	path := filepath.Join(a.Dir, art.Name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func setOutcome(rep *Report, name string, st Status, errMsg string) {
	for i := range rep.Outcomes {
		if rep.Outcomes[i].Name == name {
			rep.Outcomes[i].Status = st
			rep.Outcomes[i].Err = errMsg
			return
		}
	}
}
