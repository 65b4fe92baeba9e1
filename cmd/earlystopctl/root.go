package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tsawler/go-earlystop/tracking"
)

var rootCmd = &cobra.Command{
	Use:   "earlystopctl",
	Short: "Drive, inspect and export early-stopped training runs",
	Long: `Earlystopctl drives training loops with early stopping, records every
run and its per-epoch metrics in a local store, and exports the stopping
state carried by saved checkpoints.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("store", "memory", "run store backend: memory|sqlite")
	rootCmd.PersistentFlags().String("db", "earlystop.db", "sqlite database path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug|info|warn|error")
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("EARLYSTOP")
	// EARLYSTOP_LOG_LEVEL maps to --log-level
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(viper.GetString("log-level")),
		TimeFormat: "15:04:05",
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore builds and initializes the tracking store selected by the
// global flags
func openStore(ctx context.Context) (tracking.Store, error) {
	store, err := tracking.NewStore(viper.GetString("store"), viper.GetString("db"))
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
