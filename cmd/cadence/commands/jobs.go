package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"cadence/internal/app"

	"github.com/spf13/cobra"
)

// JobsCmd prints the schedule run would start with: the restored snapshot
// plus declared jobs that were not restored. Nothing is dispatched.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show the schedule that run would start with",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := app.New(cfgPath, app.Options{})
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.Stop(ctx, app.StopRunOnce)
		}()
		if err := a.Prepare(cmd.Context()); err != nil {
			return err
		}

		st := a.Status()
		out := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st.Jobs)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFUNC\tNEXT RUN\tSCHEDULE")
		for _, j := range st.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.ID, j.Func, j.NextRun.Format(time.RFC3339), j.Schedule)
		}
		return w.Flush()
	},
}

func init() {
	JobsCmd.Flags().BoolP("json", "j", false, "output as JSON")
}
