package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/core"
)

var createCmd = &cobra.Command{
	Use:   "create [name] [description]",
	Short: "Create a note",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession()
		if err != nil {
			fatal("Failed to initialize jotter", err)
		}

		s.store.SetField(core.FieldName, args[0])
		s.store.SetField(core.FieldDescription, args[1])
		note, err := s.store.Create(ctx)
		if err != nil {
			fatal("Cannot create note", err)
		}
		if err := s.finish(); err != nil {
			fatal("Failed to create note", err)
		}

		fmt.Printf("Note created: %s\n", note.ID)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
