package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print notes as other clients create them",
	Long:  `Watch subscribes to onCreateTodo and prints every note created by another client until interrupted.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSession()
		if err != nil {
			fatal("Failed to initialize jotter", err)
		}
		states := s.store.Watch(ctx)
		if err := s.store.Mount(ctx); err != nil {
			fatal("Failed to start watching", err)
		}
		defer s.store.Unmount(context.WithoutCancel(ctx))

		seen := make(map[string]struct{})
		for _, n := range s.store.Snapshot().Notes {
			seen[n.ID] = struct{}{}
		}
		fmt.Fprintf(os.Stderr, "Watching %s (%d notes)...\n", cfg.Endpoint, len(seen))

		encoder := json.NewEncoder(os.Stdout)
		for state := range states {
			for i := len(state.Notes) - 1; i >= 0; i-- {
				n := state.Notes[i]
				if _, ok := seen[n.ID]; ok {
					continue
				}
				seen[n.ID] = struct{}{}
				if watchJSON {
					_ = encoder.Encode(n)
					continue
				}
				fmt.Printf("%s %s - %s (from %s)\n", n.ID, n.Name, n.Description, n.ClientID)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Output one JSON object per note")
}
