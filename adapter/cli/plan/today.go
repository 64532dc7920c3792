package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mugi0227/nagi-sub000/adapter/cli"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
)

var todayDate string

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's plan",
	Long: `Display the plan for today or a specific date.

Examples:
  nagi plan today
  nagi plan today --date 2026-03-02`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetTodayHandler == nil {
			fmt.Println("Plan viewing requires a database connection.")
			fmt.Println("Set DATABASE_URL or SQLITE_PATH and try again.")
			return nil
		}

		query := queries.GetTodayQuery{UserID: app.CurrentUserID}
		if todayDate != "" {
			date, err := time.Parse("2006-01-02", todayDate)
			if err != nil {
				return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
			}
			query.Date = date
		}

		view, err := app.GetTodayHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to get today's plan: %w", err)
		}

		fmt.Printf("Today %s (%s)\n", view.Date, view.State)
		fmt.Println(strings.Repeat("=", 60))

		if len(view.Tasks) == 0 && len(view.Meetings) == 0 && len(view.Completed) == 0 {
			fmt.Println("\n  Nothing planned for this day.")
			fmt.Println("\n  Use 'nagi plan generate' to build a plan")
			return nil
		}

		for _, task := range view.Tasks {
			fmt.Printf("\n[ ] %s (%dm)\n", task.Title, task.Minutes)
			for _, block := range task.Blocks {
				fmt.Printf("    %s - %s\n", block.Start.Format("15:04"), block.End.Format("15:04"))
			}
		}
		for _, meeting := range view.Meetings {
			fmt.Printf("\n[M] %s - %s  meeting\n",
				meeting.Start.Format("15:04"), meeting.End.Format("15:04"))
		}
		for _, done := range view.Completed {
			fmt.Printf("\n[x] %s - %s  completed\n",
				done.Start.Format("15:04"), done.End.Format("15:04"))
		}

		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("Capacity: %dm | Allocated: %dm | Meetings: %dm | Free: %dm\n",
			view.CapacityMinutes, view.AllocatedMinutes, view.MeetingMinutes, view.AvailableMinutes)
		if view.OverflowMinutes > 0 {
			fmt.Printf("Overflow: %dm does not fit today\n", view.OverflowMinutes)
		}
		return nil
	},
}

func init() {
	todayCmd.Flags().StringVarP(&todayDate, "date", "d", "", "date to show (YYYY-MM-DD)")
}
