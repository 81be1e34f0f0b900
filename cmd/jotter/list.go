package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes",
	Args:  cobra.NoArgs,
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
		notes := s.store.Snapshot().Notes

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(notes); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		for _, n := range notes {
			box := "[ ]"
			if n.Completed {
				box = "[x]"
			}
			fmt.Printf("%s %s %s - %s\n", n.ID, box, n.Name, n.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
