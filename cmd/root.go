package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/planthub/authapi/config"
)

var logJSON bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planthub",
	Short: "PlantHub authentication API",
	Long: `PlantHub authentication API: cookie based sessions, account
management and the auth event stream.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
}

// newLogger builds the process logger. JSON output is the default in
// production.
func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if !cfg.Production() {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if logJSON || cfg.Production() {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
