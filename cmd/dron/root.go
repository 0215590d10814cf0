package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagTab      string
	flagUnitsDir string
	flagVerbose  bool
	flagNoVerify bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dron",
	Short: "dron - cron replacement on top of systemd user timers",
	Long: `dron compiles a declarative job table (drontab) into systemd user units,
diffs them against what is installed, and applies the difference. Jobs get
systemd's logging, monitoring and failure handling for free.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.config/dron/config.yaml)")
	pf.StringVar(&flagTab, "tab", "", "drontab file (default from config)")
	pf.StringVar(&flagUnitsDir, "units-dir", "", "systemd user unit directory (default from config)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&flagNoVerify, "no-verify", false, "skip unit verification before applying")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(managedCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(pastCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(notifyCmd)
}
