package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"dron/internal/job"
	"dron/internal/sysd"
	"dron/internal/unit"
)

var flagRunExec bool

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a job right now, ignoring its timer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		name := args[0]
		ctx := cmdContext(cmd)

		if flagRunExec {
			// Run the command in the foreground instead of going through
			// systemd, for quick debugging of a job definition.
			specs, err := job.TabLoader{}.Load(a.cfg.Tab)
			if err != nil {
				fail(err)
			}
			var command string
			for _, s := range specs {
				if s.Name == name {
					command = s.Command
					break
				}
			}
			if command == "" {
				fail(fmt.Errorf("no such job: %s", name))
			}
			c := exec.CommandContext(ctx, "/bin/sh", "-c", command)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			c.Stdin = os.Stdin
			if err := c.Run(); err != nil {
				if ee, ok := err.(*exec.ExitError); ok {
					os.Exit(ee.ExitCode())
				}
				fail(err)
			}
			return
		}

		mgr, err := sysd.New(ctx)
		if err != nil {
			fail(err)
		}
		defer mgr.Close()

		unitName := name + unit.KindService.Suffix()
		if err := mgr.Start(ctx, unitName); err != nil {
			fail(err)
		}
		fmt.Printf("started %s, follow it with: journalctl --user -u %s -f\n", unitName, unitName)
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagRunExec, "exec", false, "run the command directly instead of starting the service")
}
