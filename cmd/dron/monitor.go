package main

import (
	"os"

	"github.com/spf13/cobra"

	"dron/internal/monitor"
	"dron/internal/sysd"
)

var (
	flagMonCommand bool
	flagMonRate    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show schedule and status for every managed job",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		ctx := cmdContext(cmd)
		mgr, err := sysd.New(ctx)
		if err != nil {
			fail(err)
		}
		defer mgr.Close()

		mon := monitor.New(a.cfg.UnitsDir, mgr, a.journalReader(), a.log)
		opts := monitor.Options{WithCommand: flagMonCommand, WithRate: flagMonRate}
		entries, err := mon.Entries(ctx, opts)
		if err != nil {
			fail(err)
		}
		if err := monitor.Print(os.Stdout, entries, opts); err != nil {
			fail(err)
		}
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&flagMonCommand, "with-command", false, "include the command column")
	monitorCmd.Flags().BoolVar(&flagMonRate, "with-rate", false, "include the success rate column (slow, reads the journal)")
}
