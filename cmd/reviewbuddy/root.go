package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/reviewbuddy/placewatch"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "reviewbuddy",
	Short: "Review scores for the place shown in a browser tab",
	Long: `reviewbuddy drives a Chrome tab on a place-details page, reads the
place name and address, asks the scoring service for a review score and
renders it in a panel injected into the page.

It follows client-side navigations: a new place triggers a new score, and
leaving the place page removes the panel.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "YAML config file",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(inspectCmd)
}

// loadConfig reads --config when given, defaults otherwise.
func loadConfig() (*placewatch.Config, error) {
	if cfgFile == "" {
		return placewatch.DefaultConfig(), nil
	}
	return placewatch.LoadConfigFile(cfgFile)
}

func newLogger(debug bool) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
