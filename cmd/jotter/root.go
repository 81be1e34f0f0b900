package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/internal/config"
	"github.com/aretw0/jotter/internal/platform"
)

var (
	verbose    bool
	configPath string
	endpoint   string
	wsEndpoint string
	apiKey     string

	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jotter",
	Short: "A shared notes list backed by a GraphQL API",
	Long: `Jotter keeps a list of notes in sync with a GraphQL backend.
Changes are applied locally first and confirmed in the background;
notes created by other clients show up through a live subscription.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		return loadConfig(cmd)
	},
}

// loadConfig resolves settings: config file, then environment, then flags.
func loadConfig(cmd *cobra.Command) error {
	path, required := configPath, configPath != ""
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path, _ = platform.ProjectConfig(wd)
		}
	}
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			slog.Debug("no user config directory", "error", err)
		}
	}

	loaded, err := config.Load(path, required)
	if err != nil {
		return err
	}
	loaded.ApplyEnv(os.LookupEnv)

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		loaded.Endpoint = endpoint
	}
	if flags.Changed("ws-endpoint") {
		loaded.WSEndpoint = wsEndpoint
	}
	if flags.Changed("api-key") {
		loaded.APIKey = apiKey
	}

	cfg = loaded
	slog.Debug("configuration loaded", "path", path, "endpoint", cfg.Endpoint)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/jotter/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "GraphQL HTTP endpoint")
	rootCmd.PersistentFlags().StringVar(&wsEndpoint, "ws-endpoint", "", "GraphQL WebSocket endpoint (derived from --endpoint when empty)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key sent as x-api-key")
}
