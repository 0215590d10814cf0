package apply

import (
	"context"

	"dron/internal/reconcile"
	"dron/internal/state"
	"dron/internal/unit"
	"dron/internal/verify"
)

// Validator checks rendered artifacts before anything touches the disk.
// *verify.Checker satisfies it.
type Validator interface {
	Validate(ctx context.Context, artifacts []unit.Artifact) []verify.Error
}

// SyncOptions carries the optional hooks around the plan.
type SyncOptions struct {
	// Checker gates the apply. When it reports any error the unit
	// directory stays untouched.
	Checker Validator
	// Preview, if set, sees the plan before validation and apply.
	Preview func(plan *reconcile.Plan)
	// Confirm, if set, is asked before a plan containing deletes runs.
	Confirm func(plan *reconcile.Plan) bool
}

// SyncResult reports how far a Sync got.
type SyncResult struct {
	Plan       *reconcile.Plan
	Report     *Report
	Validation []verify.Error
	Aborted    bool
}

// Sync diffs the desired set against the installed units, validates the
// result and applies the plan. Validation is all-or-nothing: one bad
// artifact and no file is written. An empty plan, a validation failure or
// a declined confirmation all return early with the corresponding fields
// set and a nil Report.
func (a *Applier) Sync(ctx context.Context, desired []unit.Artifact, opts SyncOptions) (*SyncResult, error) {
	installed, err := state.Read(a.Dir)
	if err != nil {
		return nil, err
	}
	plan, err := reconcile.Diff(desired, installed)
	if err != nil {
		return nil, err
	}
	res := &SyncResult{Plan: plan}
	if plan.Changes() == 0 {
		return res, nil
	}
	if opts.Preview != nil {
		opts.Preview(plan)
	}
	if opts.Checker != nil {
		if verrs := opts.Checker.Validate(ctx, plan.Desired()); len(verrs) > 0 {
			res.Validation = verrs
			return res, nil
		}
	}
	if opts.Confirm != nil && plan.Count(reconcile.Delete) > 0 && !opts.Confirm(plan) {
		res.Aborted = true
		return res, nil
	}
	rep, err := a.Apply(ctx, plan)
	res.Report = rep
	return res, err
}
