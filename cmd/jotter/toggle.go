package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Flip the completed flag of a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession()
		if err != nil {
			fatal("Failed to initialize jotter", err)
		}
		if err := s.store.List(ctx); err != nil {
			fatal("Failed to list notes", err)
		}

		note, ok := s.store.Snapshot().Find(args[0])
		if !ok {
			fatal("Cannot toggle note", fmt.Errorf("no note with id %s", args[0]))
		}
		updated, err := s.store.ToggleCompleted(ctx, note)
		if err != nil {
			fatal("Cannot toggle note", err)
		}
		if err := s.finish(); err != nil {
			fatal("Failed to update note", err)
		}

		state := "pending"
		if updated.Completed {
			state = "completed"
		}
		fmt.Printf("Note %s is now %s\n", updated.ID, state)
	},
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}
