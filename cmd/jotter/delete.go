package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession()
		if err != nil {
			fatal("Failed to initialize jotter", err)
		}
		if err := s.store.List(ctx); err != nil {
			fatal("Failed to list notes", err)
		}
		if err := s.store.Remove(ctx, id); err != nil {
			fatal("Cannot delete note", err)
		}
		if err := s.finish(); err != nil {
			fatal("Failed to delete note", err)
		}

		fmt.Printf("Note deleted: %s\n", id)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
