package main

import (
	"time"

	"github.com/fentz26/caretaker/internal/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live fleet dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.New(apiAddr, watchRefresh).Run()
	},
}

var watchRefresh time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchRefresh, "refresh", tui.DefaultRefresh, "Refresh interval")
}
