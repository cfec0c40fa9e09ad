package main

import (
	"fmt"
	"os"

	"cadence/cmd/cadence/commands"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "In-process periodic job scheduler",
	Long: `cadence runs declared jobs on human-friendly schedules ("every 10 minutes",
"every monday at 09:00") and persists the schedule so runs survive restarts.

Available commands:
  run       - Start the scheduler (default)
  validate  - Check a config file without starting anything
  jobs      - Show the schedule that run would start with
  version   - Show version information

Examples:
  cadence -c /etc/cadence.yaml
  cadence run --run-all
  cadence jobs --json`,
	SilenceUsage: true,
	RunE:         commands.RunCmd.RunE,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "./cadence.yaml", "path to config (json or yaml)")
	commands.AddRunFlags(rootCmd)

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
