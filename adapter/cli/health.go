package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check CLI wiring health",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		switch {
		case app == nil:
			return fmt.Errorf("app not initialized; check database configuration")
		case app.GetScheduleHandler == nil || app.GeneratePlanHandler == nil:
			return fmt.Errorf("schedule handlers not wired")
		case app.GetSettingsHandler == nil || app.SaveSettingsHandler == nil:
			return fmt.Errorf("settings handlers not wired")
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
