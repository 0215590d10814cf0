package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dron/internal/apply"
	"dron/internal/audit"
	"dron/internal/reconcile"
	"dron/internal/sysd"
	"dron/internal/unit"
	"dron/internal/verify"
	"dron/pkg/logx"
)

var flagYes bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Compile the drontab and sync the installed units to it",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		desired, err := a.loadDesired(a.cfg.Tab)
		if err != nil {
			fail(err)
		}
		os.Exit(runApply(cmdContext(cmd), a, desired, "apply"))
	},
}

func init() {
	applyCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "apply without confirming deletions")
}

// runApply drives reconcile, verify and apply for an already rendered
// desired set. Shared by apply, edit, watch and uninstall.
func runApply(ctx context.Context, a *app, desired []unit.Artifact, command string) int {
	if err := os.MkdirAll(a.cfg.UnitsDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitValidation
	}
	lock, err := apply.AcquireLock(a.lockPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitValidation
	}
	defer lock.Release()

	mgr, err := sysd.New(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitValidation
	}
	defer mgr.Close()

	checker := verify.NewChecker(a.log)
	checker.Skip = flagNoVerify || !a.cfg.VerifyEnabled()

	started := time.Now()
	res, applyErr := apply.New(a.cfg.UnitsDir, mgr, a.log).Sync(ctx, desired, apply.SyncOptions{
		Checker: checker,
		Preview: printPlan,
		Confirm: func(plan *reconcile.Plan) bool {
			if flagYes {
				return true
			}
			return confirm(fmt.Sprintf("Going to delete %d unit(s). Continue?", plan.Count(reconcile.Delete)))
		},
	})
	if res == nil {
		fmt.Fprintln(os.Stderr, "error:", applyErr)
		return exitValidation
	}
	if res.Plan.Changes() == 0 {
		fmt.Println("nothing to do, units are up to date")
		return exitOK
	}
	if len(res.Validation) > 0 {
		for _, ve := range res.Validation {
			fmt.Fprintln(os.Stderr, ve.Error())
		}
		fmt.Fprintf(os.Stderr, "%d validation error(s), nothing applied\n", len(res.Validation))
		return exitValidation
	}
	if res.Aborted {
		fmt.Println("aborted")
		return exitValidation
	}

	rep := res.Report
	recordRun(ctx, a, command, res.Plan, rep, applyErr, time.Since(started))

	for _, oc := range rep.Outcomes {
		if oc.Err != "" {
			fmt.Printf("%-9s %-40s %s (%s)\n", oc.Op.String(), oc.Name, oc.Status, oc.Err)
		} else {
			fmt.Printf("%-9s %-40s %s\n", oc.Op.String(), oc.Name, oc.Status)
		}
	}
	if applyErr != nil {
		fmt.Fprintln(os.Stderr, "error:", applyErr)
		return exitPartial
	}
	if rep.Failed() || rep.Skipped() {
		fmt.Fprintln(os.Stderr, "apply incomplete; see outcomes above")
		return exitPartial
	}
	fmt.Println("applied")
	return exitOK
}

// recordRun appends the run to the audit store, best-effort.
func recordRun(ctx context.Context, a *app, command string, plan *reconcile.Plan, rep *apply.Report, applyErr error, took time.Duration) {
	store, err := a.openStore()
	if err != nil {
		a.log.Warn("audit store open failed", logx.Err(err))
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	ok, failCount := 0, 0
	for _, oc := range rep.Outcomes {
		switch oc.Status {
		case apply.StatusFailed, apply.StatusSkipped:
			failCount++
		default:
			ok++
		}
	}
	e := audit.Entry{
		At:        time.Now(),
		Command:   command,
		Tab:       a.cfg.Tab,
		Creates:   plan.Count(reconcile.Create),
		Updates:   plan.Count(reconcile.Update),
		Deletes:   plan.Count(reconcile.Delete),
		Unchanged: plan.Count(reconcile.Unchanged),
		OK:        ok,
		Fail:      failCount,
		TookMS:    took.Milliseconds(),
	}
	if applyErr != nil {
		e.Error = applyErr.Error()
	}
	if b, err := json.Marshal(rep.Outcomes); err == nil {
		e.UnitsJSON = string(b)
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := store.Append(wctx, e); err != nil {
		a.log.Warn("audit append failed", logx.Err(err))
	}
}
