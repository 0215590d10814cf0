package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

const starterTab = `# dron job table, applied with "dron apply" or "dron edit".
#
# defaults:
#   on_failure: [notify]
#
# jobs:
#   - name: backup
#     when: "cron: 0 3 * * *"
#     command: /home/user/scripts/run-backup
#
#   - name: sync-mail
#     when: "every: 10m"
#     command: mbsync -a

jobs: []
`

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the drontab and apply it (like 'crontab -e')",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()

		tab := a.cfg.Tab
		if _, err := os.Stat(tab); os.IsNotExist(err) {
			if !confirm(fmt.Sprintf("tabfile %s doesn't exist. Create?", tab)) {
				os.Exit(1)
			}
			if err := os.MkdirAll(filepath.Dir(tab), 0o755); err != nil {
				fail(err)
			}
			if err := os.WriteFile(tab, []byte(starterTab), 0o644); err != nil {
				fail(err)
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			a.log.Warn("no EDITOR set, falling back to nano")
			editor = "nano"
		}

		tdir, err := os.MkdirTemp("", "dron-edit-")
		if err != nil {
			fail(err)
		}
		defer os.RemoveAll(tdir)

		// Edit a copy; the real tab is only overwritten once the edited
		// version lints and applies.
		tpath := filepath.Join(tdir, filepath.Base(tab))
		orig, err := os.ReadFile(tab)
		if err != nil {
			fail(err)
		}
		if err := os.WriteFile(tpath, orig, 0o644); err != nil {
			fail(err)
		}

		ctx := cmdContext(cmd)
		for {
			ec := exec.CommandContext(ctx, editor, tpath)
			ec.Stdin = os.Stdin
			ec.Stdout = os.Stdout
			ec.Stderr = os.Stderr
			if err := ec.Run(); err != nil {
				fail(err)
			}

			edited, err := os.ReadFile(tpath)
			if err != nil {
				fail(err)
			}
			if string(edited) == string(orig) {
				fmt.Println("no modification made")
				return
			}

			desired, err := a.loadDesired(tpath)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				if confirm("Got errors. Try again?") {
					continue
				}
				os.Exit(exitValidation)
			}
			if code := runApply(ctx, a, desired, "apply"); code != exitOK {
				if confirm("Got errors. Try again?") {
					continue
				}
				os.Exit(code)
			}

			// Write through the original path so symlinked tabs stay symlinks.
			if err := os.WriteFile(tab, edited, 0o644); err != nil {
				fail(err)
			}
			fmt.Printf("wrote changes to %s, don't forget to commit\n", tab)
			return
		}
	},
}
