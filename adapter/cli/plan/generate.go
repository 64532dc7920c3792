package plan

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mugi0227/nagi-sub000/adapter/cli"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
)

var (
	generateStart   string
	generateDays    int
	generateFromNow bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and store a plan",
	Long: `Compute a fresh plan over the horizon and store it.

Examples:
  nagi plan generate
  nagi plan generate --days 14
  nagi plan generate --from-now`,
	Aliases: []string{"gen"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GeneratePlanHandler == nil {
			fmt.Println("Plan generation requires a database connection.")
			fmt.Println("Set DATABASE_URL or SQLITE_PATH and try again.")
			return nil
		}

		command := commands.GeneratePlanCommand{
			UserID:           app.CurrentUserID,
			MaxDays:          generateDays,
			FilterByAssignee: true,
			FromNow:          generateFromNow,
		}
		if generateStart != "" {
			start, err := time.Parse("2006-01-02", generateStart)
			if err != nil {
				return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
			}
			command.Start = start
		}

		view, err := app.GeneratePlanHandler.Handle(cmd.Context(), command)
		if err != nil {
			return fmt.Errorf("failed to generate plan: %w", err)
		}

		printScheduleView(queries.ScheduleViewFromPlan(view))
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateStart, "start", "s", "", "first day of the horizon (YYYY-MM-DD)")
	generateCmd.Flags().IntVarP(&generateDays, "days", "n", 0, "number of days to plan")
	generateCmd.Flags().BoolVar(&generateFromNow, "from-now", false, "plan the first day from the current time onward")
}
