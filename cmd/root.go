// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tokgrab/internal/config"
	"tokgrab/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig string
	flagToken  string
	flagDB     string
	flagDebug  bool
)

// cfg holds the loaded configuration (merged: defaults < config file < env < flags).
var cfg *config.Config

// logger is built from cfg once flags are parsed.
var (
	logger    = zerolog.Nop()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "tokgrab",
	Short: "Telegram bot that fetches TikTok videos without the watermark",
	Long: `tokgrab resolves TikTok short links through several public extraction
services and sends the video back in Telegram. It also ships the admin
tooling: user registry, broadcast and CSV export.`,
	SilenceUsage:       true,
	PersistentPreRunE:  loadConfig,
	PersistentPostRunE: closeLog,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/tokgrab/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Telegram bot token (overrides config and "+config.TokenEnv+")")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "User registry database path")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < env < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagToken != "" {
		cfg.Token = flagToken
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err = logging.New(logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		Debug: flagDebug,
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}

	logger.Debug().Str("config", flagConfig).Msg("configuration loaded")
	return nil
}

func closeLog(cmd *cobra.Command, args []string) error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}
