package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dron/internal/state"
)

var flagManagedBody bool

var managedCmd = &cobra.Command{
	Use:   "managed",
	Short: "List the installed units dron owns",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		installed, err := state.Read(a.cfg.UnitsDir)
		if err != nil {
			fail(err)
		}
		for _, art := range state.Managed(installed) {
			if flagManagedBody {
				fmt.Printf("# %s\n%s\n", art.Name, art.Body)
			} else {
				fmt.Println(art.Name)
			}
		}
	},
}

func init() {
	managedCmd.Flags().BoolVar(&flagManagedBody, "body", false, "print unit bodies too")
}
