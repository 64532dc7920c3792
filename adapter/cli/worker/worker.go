package worker

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mugi0227/nagi-sub000/adapter/cli"
)

// Cmd is the worker command group
var Cmd = &cobra.Command{
	Use:   "worker",
	Short: "Background job control",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the periodic driver in the foreground",
	Long: `Run the plan, heartbeat, and retrospective sweeps until interrupted.

The standalone worker binary is the production deployment; this command
runs the same loops inside the CLI process for local use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Driver == nil {
			return errors.New("the worker requires a database connection")
		}

		ctx := cmd.Context()
		if app.OutboxProcessor != nil {
			go app.OutboxProcessor.Start(ctx)
		}
		if err := app.Driver.Start(ctx); err != nil {
			return fmt.Errorf("failed to start driver: %w", err)
		}

		fmt.Println("Worker running. Press Ctrl+C to stop.")
		<-ctx.Done()

		app.Driver.Stop()
		if app.OutboxProcessor != nil {
			app.OutboxProcessor.Stop()
		}

		stats := app.Driver.GetStats()
		fmt.Printf("Stopped. plans=%d nudges=%d retrospectives=%d\n",
			stats.PlansGenerated, stats.NudgesRaised, stats.RetrospectivesClosed)
		return nil
	},
}

func init() {
	Cmd.AddCommand(runCmd)
}
