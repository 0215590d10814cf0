package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dron/internal/watch"
	"dron/pkg/logx"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the drontab and apply it on every change",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Deleting jobs under a watcher shouldn't block on a prompt.
		flagYes = true

		apply := func(ctx context.Context) error {
			desired, err := a.loadDesired(a.cfg.Tab)
			if err != nil {
				return err
			}
			if code := runApply(ctx, a, desired, "apply"); code != exitOK {
				return fmt.Errorf("apply exited with code %d", code)
			}
			return nil
		}

		// Initial sync before watching.
		if err := apply(ctx); err != nil {
			a.log.Warn("initial apply failed", logx.Err(err))
		}

		w := watch.New(a.cfg.Tab, a.log, apply)
		if err := w.Run(ctx); err != nil {
			fail(err)
		}
	},
}
