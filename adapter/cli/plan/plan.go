package plan

import (
	"github.com/spf13/cobra"
)

// Cmd is the plan command group
var Cmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage your daily plan",
	Long:  `Generate, view, and adjust the multi-day schedule plan.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(generateCmd)
	Cmd.AddCommand(moveBlockCmd)
	Cmd.AddCommand(todayCmd)
}
