package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var flagHistoryN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent apply runs from the audit store",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		store, err := a.openStore()
		if err != nil {
			fail(err)
		}
		if store == nil {
			fail(fmt.Errorf("audit storage is disabled; set audit.driver in the config"))
		}
		defer store.Close()

		entries, err := store.Recent(cmdContext(cmd), flagHistoryN)
		if err != nil {
			fail(err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tCOMMAND\t+\t~\t-\tOK\tFAIL\tTOOK\tERROR")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%dms\t%s\n",
				e.At.Local().Format(time.RFC3339), e.Command,
				e.Creates, e.Updates, e.Deletes, e.OK, e.Fail, e.TookMS, e.Error)
		}
		if err := tw.Flush(); err != nil {
			fail(err)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryN, "limit", "n", 20, "number of entries to show")
}
