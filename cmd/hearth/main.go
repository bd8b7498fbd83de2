// Hearth - natural-language home control.
//
// Hearth turns sentences like "turn on the desk lamp" into pin writes on a
// small catalogue of household devices. It runs as an interactive terminal
// session, a headless API server, or both.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"
	// Optional dotenv file loaded before the config
	defaultEnvFile = ".env"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running hearth with no subcommand
// starts the interactive session.
func newRootCmd() *cobra.Command {
	var configPath, envFile string

	root := &cobra.Command{
		Use:           "hearth",
		Short:         "Natural-language control for a small smart home",
		Long:          `Hearth interprets plain-English commands and drives household devices through a pin driver.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), options{
				configPath:  resolveConfigPath(configPath),
				interactive: true,
				in:          cmd.InOrStdin(),
				out:         cmd.OutOrStdout(),
			})
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default $HEARTH_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before the config, ignored if missing")

	root.AddCommand(
		newServeCmd(&configPath),
		newTokenCmd(&configPath),
		newMigrateCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and automation engine without a terminal session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), options{
				configPath: resolveConfigPath(*configPath),
				out:        cmd.OutOrStdout(),
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hearth %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// resolveConfigPath returns the flag value, then HEARTH_CONFIG, then the
// default path.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}
