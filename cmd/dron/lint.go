package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the drontab without touching anything",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		if _, err := a.loadDesired(a.cfg.Tab); err != nil {
			fail(err)
		}
		fmt.Println("all good")
	},
}
