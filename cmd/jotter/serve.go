package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter"
	"github.com/aretw0/jotter/internal/server"
)

var (
	serveAddr    string
	serveBackend string
	serveDir     string
	serveDSN     string
	serveAPIKey  string
	serveUnsafe  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a development GraphQL notes server",
	Long: `Serve answers listTodos, createTodo, updateTodo and deleteTodo over HTTP
and streams onCreateTodo over WebSocket (graphql-transport-ws), storing
notes in memory, in a directory of YAML files or in SQLite.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		sc := cfg.Serve
		if flags.Changed("addr") {
			sc.Addr = serveAddr
		}
		if flags.Changed("backend") {
			sc.Backend = serveBackend
		}
		if flags.Changed("dir") {
			sc.Dir = serveDir
		}
		if flags.Changed("dsn") {
			sc.DSN = serveDSN
		}
		if flags.Changed("require-key") {
			sc.APIKey = serveAPIKey
		}

		uri := ""
		switch sc.Backend {
		case "fs":
			uri = sc.Dir
		case "sqlite":
			uri = sc.DSN
		}

		ctx, cancel := signalContext()
		defer cancel()

		backend, err := jotter.Open(uri,
			jotter.WithAdapter(sc.Backend),
			jotter.WithLogger(slog.Default()),
			jotter.WithDevSafety(!serveUnsafe),
		)
		if err != nil {
			fatal("Failed to open backend", err)
		}
		defer jotter.Close(context.Background(), backend)

		srv := server.New(backend, server.Config{
			Addr:   sc.Addr,
			APIKey: sc.APIKey,
			Logger: slog.Default(),
		})
		slog.Info("serving notes", "backend", sc.Backend, "addr", sc.Addr)
		if err := srv.ListenAndServe(ctx); err != nil {
			fatal("Server failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default localhost:8080)")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "Storage: memory, fs or sqlite (default memory)")
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "Notes directory for the fs backend")
	serveCmd.Flags().StringVar(&serveDSN, "dsn", "", "Database for the sqlite backend")
	serveCmd.Flags().StringVar(&serveAPIKey, "require-key", "", "Require this x-api-key from clients")
	serveCmd.Flags().BoolVar(&serveUnsafe, "unsafe", false, "Use the real data path even under go run")
}
