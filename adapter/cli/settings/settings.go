package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mugi0227/nagi-sub000/adapter/cli"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
)

var Cmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage schedule settings",
}

var (
	settingsJSON bool

	setDay    string
	setStart  string
	setEnd    string
	setOff    bool
	setBuffer float64
	setBreak  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show schedule settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetSettingsHandler == nil {
			return errors.New("settings require a database connection")
		}
		if app.CurrentUserID == uuid.Nil {
			return errors.New("current user not configured")
		}

		settings, err := app.GetSettingsHandler.Handle(cmd.Context(), queries.GetSettingsQuery{
			UserID: app.CurrentUserID,
		})
		if err != nil {
			return err
		}

		if settingsJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(settings)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Weekly work hours:")
		for i, day := range settings.WeeklyWorkHours {
			name := time.Weekday(i).String()
			if !day.Enabled {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-9s off\n", name)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %-9s %s - %s\n", name, day.Start, day.End)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Buffer: %.1fh per day\n", settings.BufferHours)
		fmt.Fprintf(cmd.OutOrStdout(), "Break after task: %dm\n", settings.BreakAfterTaskMinutes)
		return nil
	},
}

var setHoursCmd = &cobra.Command{
	Use:   "set-hours",
	Short: "Change working hours for a weekday",
	Long: `Change one weekday's working window, or mark it off.

Examples:
  nagi settings set-hours --day monday --start 10:00 --end 19:00
  nagi settings set-hours --day sunday --off
  nagi settings set-hours --buffer 1.5 --break 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.SaveSettingsHandler == nil {
			return errors.New("settings require a database connection")
		}
		if app.CurrentUserID == uuid.Nil {
			return errors.New("current user not configured")
		}

		current, err := app.GetSettingsHandler.Handle(cmd.Context(), queries.GetSettingsQuery{
			UserID: app.CurrentUserID,
		})
		if err != nil {
			return err
		}

		hours := current.WeeklyWorkHours
		if setDay != "" {
			idx, err := weekdayIndex(setDay)
			if err != nil {
				return err
			}
			if setOff {
				hours[idx].Enabled = false
			} else {
				hours[idx].Enabled = true
				if setStart != "" {
					hours[idx].Start = setStart
				}
				if setEnd != "" {
					hours[idx].End = setEnd
				}
			}
		}

		command := commands.SaveSettingsCommand{
			UserID:                app.CurrentUserID,
			WeeklyWorkHours:       hours,
			BufferHours:           current.BufferHours,
			BreakAfterTaskMinutes: current.BreakAfterTaskMinutes,
		}
		if cmd.Flags().Changed("buffer") {
			command.BufferHours = setBuffer
		}
		if cmd.Flags().Changed("break") {
			command.BreakAfterTaskMinutes = setBreak
		}

		if _, err := app.SaveSettingsHandler.Handle(cmd.Context(), command); err != nil {
			return err
		}

		if settingsJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"updated": true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings saved.")
		return nil
	},
}

func weekdayIndex(name string) (int, error) {
	for i := 0; i < 7; i++ {
		day := time.Weekday(i).String()
		if strings.EqualFold(name, day) || strings.EqualFold(name, day[:3]) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday: %s", name)
}

func init() {
	Cmd.PersistentFlags().BoolVar(&settingsJSON, "json", false, "output as JSON")

	setHoursCmd.Flags().StringVar(&setDay, "day", "", "weekday to change (monday, tue, ...)")
	setHoursCmd.Flags().StringVar(&setStart, "start", "", "work start (HH:MM)")
	setHoursCmd.Flags().StringVar(&setEnd, "end", "", "work end (HH:MM)")
	setHoursCmd.Flags().BoolVar(&setOff, "off", false, "mark the day as non-working")
	setHoursCmd.Flags().Float64Var(&setBuffer, "buffer", 0, "daily buffer hours")
	setHoursCmd.Flags().IntVar(&setBreak, "break", 0, "break minutes inserted after each task")

	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(setHoursCmd)
}
