package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mugi0227/nagi-sub000/adapter/cli"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
)

var (
	moveDate  string
	moveStart string
	moveEnd   string
)

var moveBlockCmd = &cobra.Command{
	Use:   "move-block <task-id>",
	Short: "Move a time block",
	Long: `Move one of a task's time blocks to a new start and end.

The block is pinned to its new slot and survives the next regeneration.

Examples:
  nagi plan move-block 4f1f... --date 2026-03-02 --start 14:00 --end 15:30
  nagi plan move-block 4f1f... --date 2026-03-02 --start 2026-03-03T09:00 --end 2026-03-03T10:00`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.MoveTimeBlockHandler == nil {
			fmt.Println("Moving blocks requires a database connection.")
			fmt.Println("Set DATABASE_URL or SQLITE_PATH and try again.")
			return nil
		}

		taskID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid task ID: %w", err)
		}
		originalDate, err := time.Parse("2006-01-02", moveDate)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
		}
		newStart, err := parseBlockTime(moveStart, originalDate)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		newEnd, err := parseBlockTime(moveEnd, originalDate)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}

		err = app.MoveTimeBlockHandler.Handle(cmd.Context(), commands.MoveTimeBlockCommand{
			UserID:       app.CurrentUserID,
			TaskID:       taskID,
			OriginalDate: originalDate,
			NewStart:     newStart,
			NewEnd:       newEnd,
		})
		if err != nil {
			return fmt.Errorf("failed to move block: %w", err)
		}

		fmt.Printf("Moved block of task %s to %s - %s\n",
			taskID,
			newStart.Format("2006-01-02 15:04"),
			newEnd.Format("15:04"),
		)
		return nil
	},
}

// parseBlockTime accepts either "HH:MM" on the given date or a full
// "2006-01-02T15:04" timestamp for cross-day moves.
func parseBlockTime(value string, date time.Time) (time.Time, error) {
	if clock, err := time.Parse("15:04", value); err == nil {
		return time.Date(date.Year(), date.Month(), date.Day(),
			clock.Hour(), clock.Minute(), 0, 0, time.Local), nil
	}
	if ts, err := time.Parse("2006-01-02T15:04", value); err == nil {
		return time.Date(ts.Year(), ts.Month(), ts.Day(),
			ts.Hour(), ts.Minute(), 0, 0, time.Local), nil
	}
	return time.Parse(time.RFC3339, value)
}

func init() {
	moveBlockCmd.Flags().StringVarP(&moveDate, "date", "d", "", "date the block currently sits on (YYYY-MM-DD)")
	moveBlockCmd.Flags().StringVar(&moveStart, "start", "", "new start (HH:MM or 2006-01-02T15:04)")
	moveBlockCmd.Flags().StringVar(&moveEnd, "end", "", "new end (HH:MM or 2006-01-02T15:04)")
	_ = moveBlockCmd.MarkFlagRequired("date")
	_ = moveBlockCmd.MarkFlagRequired("start")
	_ = moveBlockCmd.MarkFlagRequired("end")
}
