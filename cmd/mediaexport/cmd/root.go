// Package cmd implements the CLI commands for mediaexport.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astralstream/mediaexport/internal/config"
	"github.com/astralstream/mediaexport/internal/observability"
	"github.com/astralstream/mediaexport/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// cfg is the loaded configuration, available to all subcommands after
// PersistentPreRunE.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mediaexport",
	Short:   "Trim and remux video files without re-encoding",
	Version: version.Short(),
	Long: `mediaexport copies coded samples from a source video into a new
container, optionally trimmed to a time range, without re-encoding.

It inspects tracks, plans output parameters per quality tier, estimates
output sizes, and records export history. A status API server exposes
jobs and live progress.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initRuntime()
	}

	// Global flags are NOT bound to viper. Changed() decides whether a flag
	// overrides config/env values, preserving the priority
	// CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/mediaexport, $HOME/.mediaexport)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initRuntime loads configuration and configures the default logger.
func initRuntime() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	logCfg := cfg.Logging
	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
	logCfg.Level = strings.ToLower(logCfg.Level)
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	logger = observability.WithApp(logger, "mediaexport")
	observability.SetDefault(logger)
	return nil
}
