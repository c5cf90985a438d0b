package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Teamial/devtrack/internal/config"
	"github.com/Teamial/devtrack/internal/logger"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var (
	flagVerbose  bool
	flagDebugLog string
)

var rootCmd = &cobra.Command{
	Use:   "devtrack",
	Short: "Track workspace activity and auto-commit with generated summaries",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg, err = config.Load(cwd)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the shared logger from the persistent flags.
func newLogger() logger.Logger {
	return logger.New(flagDebugLog != "", flagDebugLog, flagVerbose)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show internal warnings on stdout")
	rootCmd.PersistentFlags().StringVar(&flagDebugLog, "debug-log", "", "Write internal debug logs to this file")
}
