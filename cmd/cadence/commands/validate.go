package commands

import (
	"fmt"

	"cadence/internal/app"

	"github.com/spf13/cobra"
)

// ValidateCmd checks a config file the same way startup does.
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a config file without starting anything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := app.Validate(cfgPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d jobs)\n", cfgPath, len(cfg.Jobs))
		return nil
	},
}
