package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive notes screen",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession()
		if err != nil {
			fatal("Failed to initialize jotter", err)
		}
		if err := tui.Run(ctx, s.store, s.errs); err != nil {
			fatal("TUI failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
