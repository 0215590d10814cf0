package main

import (
	"os"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove every unit dron manages",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		if !flagYes && !confirm("Going to remove all dron managed jobs. Continue?") {
			os.Exit(1)
		}
		// Reconciling against an empty desired set turns every managed unit
		// into a delete.
		flagYes = true
		os.Exit(runApply(cmdContext(cmd), a, nil, "uninstall"))
	},
}

func init() {
	uninstallCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip confirmation")
}
