package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cadence/internal/app"

	"github.com/spf13/cobra"
)

// RunCmd starts the scheduler in the foreground until SIGINT or SIGTERM.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scheduler",
	Long: `Start the scheduler in the foreground.

run restores the saved schedule, binds declared jobs that were not restored,
ticks until interrupted and saves the schedule on the way out (when
snapshot.save_on_stop is set).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		runAll, _ := cmd.Flags().GetBool("run-all")
		stopTTL, _ := cmd.Flags().GetDuration("stop-timeout")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := app.New(cfgPath, app.Options{RunAllOnStart: runAll})
		if err != nil {
			return err
		}
		stop := func(reason app.StopReason) {
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTTL)
			defer cancel()
			_ = a.Stop(stopCtx, reason)
		}

		if err := a.Start(ctx); err != nil {
			stop(app.StopFatalError)
			return fmt.Errorf("start: %w", err)
		}

		select {
		case <-ctx.Done():
			stop(app.StopSignal)
			return nil
		case <-a.Done():
			stop(app.StopFatalError)
			return a.Err()
		}
	},
}

// AddRunFlags registers the run flags on cmd. The root command shares them so
// that a bare "cadence" behaves like "cadence run".
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("run-all", false, "dispatch every job once at startup")
	cmd.Flags().Duration("stop-timeout", 15*time.Second, "upper bound for graceful shutdown")
}

func init() {
	AddRunFlags(RunCmd)
}
