package main

import (
	"errors"

	"github.com/spf13/cobra"

	"dron/internal/notify"
)

// notifyCmd is what the rendered ExecStopPost failure hook invokes. Hidden
// because it only makes sense when called with a failing unit's name.
var notifyCmd = &cobra.Command{
	Use:    "notify <unit>",
	Short:  "Send a failure alert for a unit",
	Args:   cobra.ExactArgs(1),
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		nc, err := a.cfg.NotifyConfig()
		if err != nil {
			fail(err)
		}
		store, err := a.openStore()
		if err != nil {
			fail(err)
		}
		if store != nil {
			defer store.Close()
		}

		svc, err := notify.New(nc, store, a.journalReader(), a.log)
		if err != nil {
			// Disabled notifications are not an error for the hook; failing
			// jobs should not spawn failing hooks.
			if errors.Is(err, notify.ErrDisabled) {
				return
			}
			fail(err)
		}
		if err := svc.JobFailed(cmdContext(cmd), args[0]); err != nil {
			if errors.Is(err, notify.ErrDisabled) {
				return
			}
			fail(err)
		}
	},
}
