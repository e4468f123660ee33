// Package main provides the bibrename CLI entry point.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	logJSON     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors hides cobra's own messages, such as unknown flags.
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bibrename",
	Short: "Rename academic PDFs from their DOI metadata",
	Long: `bibrename finds the DOI printed on the first pages of each PDF, looks it
up in Crossref (falling back to OpenAlex), and renames the file from the
publication's year, first author, title and journal.

Batches are resolved together so that every output name is unique.
All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		slog.SetDefault(newLogger(os.Stderr, logLevel(slog.LevelWarn), logJSON))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.Version = Version
}

// logLevel returns base, or debug when --verbose is set.
func logLevel(base slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return base
}

// newLogger builds the process logger. Logs go to w so stdout stays
// reserved for command output.
func newLogger(w io.Writer, level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
