package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dron/internal/audit"
	"dron/internal/config"
	"dron/internal/job"
	"dron/internal/journal"
	"dron/internal/reconcile"
	"dron/internal/state"
	"dron/internal/unit"
	"dron/pkg/logx"
)

// Exit codes. Partial applies get their own code so wrapper scripts can tell
// "nothing happened" from "some units are live, some are not".
const (
	exitOK         = 0
	exitValidation = 1
	exitPartial    = 2
)

// app wires the config and logger for one command invocation.
type app struct {
	cfg    *config.Config
	logSvc *logx.Service
	log    logx.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig, flagConfig != "")
	if err != nil {
		return nil, err
	}
	if flagTab != "" {
		cfg.Tab = config.ExpandHome(flagTab)
	}
	if flagUnitsDir != "" {
		cfg.UnitsDir = config.ExpandHome(flagUnitsDir)
	}

	lc := cfg.LogxConfig()
	if flagVerbose {
		lc.Level = "debug"
	}
	if !lc.Console && !lc.File.Enabled {
		lc.Console = true
	}
	svc, log := logx.New(lc)
	return &app{cfg: cfg, logSvc: svc, log: log}, nil
}

func (a *app) Close() {
	if a.logSvc != nil {
		_ = a.logSvc.Close()
	}
}

// openStore opens the audit store; disabled storage yields (nil, nil).
func (a *app) openStore() (audit.Store, error) {
	ac, err := a.cfg.AuditConfig()
	if err != nil {
		return nil, err
	}
	return audit.Open(ac, a.log)
}

func (a *app) journalReader() *journal.Reader {
	return journal.NewReader(a.log)
}

func (a *app) lockPath() string {
	return filepath.Join(a.cfg.UnitsDir, ".dron.lock")
}

// loadDesired parses the drontab and renders every job. Load and render
// errors are collected, not fail-fast.
func (a *app) loadDesired(tab string) ([]unit.Artifact, error) {
	specs, err := job.TabLoader{}.Load(tab)
	if err != nil {
		return nil, err
	}
	artifacts, errs := unit.RenderAll(specs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return artifacts, nil
}

// buildPlan diffs desired against everything installed in the unit dir.
// Collisions with foreign units surface here as a diff error.
func (a *app) buildPlan(desired []unit.Artifact) (*reconcile.Plan, error) {
	installed, err := state.Read(a.cfg.UnitsDir)
	if err != nil {
		return nil, err
	}
	return reconcile.Diff(desired, installed)
}

func printPlan(plan *reconcile.Plan) {
	for _, op := range plan.Ops {
		if op.Kind == reconcile.Unchanged {
			continue
		}
		fmt.Printf("%-9s %s\n", op.Kind.String(), op.Artifact.Name)
	}
	fmt.Printf("%d to create, %d to update, %d to delete, %d unchanged\n",
		plan.Count(reconcile.Create), plan.Count(reconcile.Update),
		plan.Count(reconcile.Delete), plan.Count(reconcile.Unchanged))
}

// confirm asks on the terminal and defaults to yes.
func confirm(prompt string) bool {
	fmt.Printf("%s [Y/n] ", prompt)
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func cmdContext(cmd interface{ Context() context.Context }) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
