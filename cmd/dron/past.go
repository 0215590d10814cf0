package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dron/internal/unit"
)

var pastCmd = &cobra.Command{
	Use:   "past <job>",
	Short: "Show past runs of a job from the journal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		unitName := args[0] + unit.KindService.Suffix()
		entries, err := a.journalReader().Logs(cmdContext(cmd), unitName)
		if err != nil {
			fail(err)
		}
		for _, e := range entries {
			fmt.Printf("%s %s\n", e.Time.Format(time.RFC3339), e.Message)
		}
	},
}
