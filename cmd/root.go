package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cwbudde/mcsbridge/internal/config"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	configPath string
	cfg        = config.Default()
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mcsbridge",
	Short: "Minimize Starlark functions with the MCS global optimizer",
	Long: `mcsbridge runs Starlark scripts that call the multilevel coordinate
search optimizer on their own functions, either directly, from the command
line or as jobs submitted to an HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		// Logs go to stderr so command output stays parseable
		opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)

		slog.Debug("Configuration loaded", "path", configPath, "data_dir", cfg.DataDir, "store", cfg.Store)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// dataDir returns the flag value if set, else the configured directory.
func dataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.DataDir
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
