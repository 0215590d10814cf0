package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dron/internal/job"
)

var (
	flagPrintUnits bool
	flagPrintPlan  bool
)

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the jobs defined in the drontab",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		if flagPrintPlan {
			desired, err := a.loadDesired(a.cfg.Tab)
			if err != nil {
				fail(err)
			}
			plan, err := a.buildPlan(desired)
			if err != nil {
				fail(err)
			}
			printPlan(plan)
			return
		}

		if flagPrintUnits {
			desired, err := a.loadDesired(a.cfg.Tab)
			if err != nil {
				fail(err)
			}
			for _, art := range desired {
				fmt.Printf("# %s\n%s\n", art.Name, art.Body)
			}
			return
		}

		specs, err := job.TabLoader{}.Load(a.cfg.Tab)
		if err != nil {
			fail(err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB\tSCHEDULE\tCOMMAND")
		for _, s := range specs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.When.String(), s.Command)
		}
		if err := tw.Flush(); err != nil {
			fail(err)
		}
	},
}

func init() {
	printCmd.Flags().BoolVar(&flagPrintUnits, "units", false, "print rendered unit files instead of the job table")
	printCmd.Flags().BoolVar(&flagPrintPlan, "plan", false, "print the change plan against the installed units")
}
