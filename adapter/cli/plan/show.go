package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mugi0227/nagi-sub000/adapter/cli"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
)

var (
	showStart        string
	showDays         int
	showAllAssignees bool
	showConstraints  bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current plan",
	Long: `Display the stored plan, or a forecast when none exists.

Examples:
  nagi plan show
  nagi plan show --days 7
  nagi plan show --start 2026-03-02 --constraints`,
	Aliases: []string{"view"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetScheduleHandler == nil {
			fmt.Println("Plan viewing requires a database connection.")
			fmt.Println("Set DATABASE_URL or SQLITE_PATH and try again.")
			return nil
		}

		query := queries.GetScheduleQuery{
			UserID:               app.CurrentUserID,
			MaxDays:              showDays,
			FilterByAssignee:     !showAllAssignees,
			ApplyPlanConstraints: showConstraints,
		}
		if showStart != "" {
			start, err := time.Parse("2006-01-02", showStart)
			if err != nil {
				return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
			}
			query.Start = start
		}

		view, err := app.GetScheduleHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to get plan: %w", err)
		}

		printScheduleView(view)
		return nil
	},
}

func printScheduleView(view *queries.ScheduleViewDTO) {
	fmt.Printf("Plan (%s, %s)\n", view.State, view.Timezone)
	fmt.Println(strings.Repeat("=", 60))

	titles := make(map[string]string, len(view.TaskInfos))
	for _, info := range view.TaskInfos {
		titles[info.TaskID.String()] = info.Title
	}

	for _, day := range view.Days {
		if day.AllocatedMinutes == 0 && len(day.TimeBlocks) == 0 {
			continue
		}
		fmt.Printf("\n%s  capacity %dm, allocated %dm", day.Date, day.CapacityMinutes, day.AllocatedMinutes)
		if day.OverflowMinutes > 0 {
			fmt.Printf(", overflow %dm", day.OverflowMinutes)
		}
		fmt.Println()
		for _, block := range day.TimeBlocks {
			marker := "[ ]"
			if block.Ghost {
				marker = "[x]"
			}
			title := titles[block.TaskID.String()]
			if title == "" {
				title = block.TaskID.String()
			}
			fmt.Printf("  %s %s - %s  %s (%s)\n",
				marker,
				block.Start.Format("15:04"),
				block.End.Format("15:04"),
				title,
				block.Kind,
			)
		}
	}

	if len(view.Unscheduled) > 0 {
		fmt.Println("\nUnscheduled:")
		for _, u := range view.Unscheduled {
			title := titles[u.TaskID.String()]
			if title == "" {
				title = u.TaskID.String()
			}
			fmt.Printf("  - %s (%s)\n", title, u.Reason)
		}
	}
	if len(view.PendingChanges) > 0 {
		fmt.Println("\nPending changes since the plan was generated:")
		for _, c := range view.PendingChanges {
			fmt.Printf("  - %s: %s\n", c.ChangeType, c.Title)
		}
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%d days, %d tasks placed\n", len(view.Days), len(view.TaskInfos))
}

func init() {
	showCmd.Flags().StringVarP(&showStart, "start", "s", "", "first day of the horizon (YYYY-MM-DD)")
	showCmd.Flags().IntVarP(&showDays, "days", "n", 0, "number of days to show")
	showCmd.Flags().BoolVar(&showAllAssignees, "all-assignees", false, "include tasks assigned to others")
	showCmd.Flags().BoolVar(&showConstraints, "constraints", false, "respect stored plan pins and locks in the forecast")
}
