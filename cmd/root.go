// Package cmd implements the remind command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/remindhq/remind/internal/log"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:   "remind",
	Short: "remind is a personal knowledge base with semantic retrieval",
	Long: `remind stores your sources, notes and insights in PostgreSQL,
embeds them for similarity search, and answers questions from the
retrieved material with inline citations.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// newLogger builds the process logger. Debug level is enabled by the
// --debug flag or the DEBUG environment variable.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugFlag || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
