package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// Output format constants.
const (
	jsonFormat = "json"
	yamlFormat = "yaml"
	textFormat = "text"
)

var (
	// Global flags.
	verbose bool
	output  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "torchdata",
	Short: "Composable lazy data pipelines",
	Long: `Torchdata builds lazily-evaluated data pipelines from YAML definitions.

Pipelines compose pull-based stream operators: sources, transforms,
keyed joins, and stream splitters. Nothing runs until the output is
consumed.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&output, "output", textFormat, "Output format (text, json, yaml)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// cliLogger adapts the standard logger to the pipe logging interface. It is
// wired into pipes only with --verbose, except warnings and errors, which
// always print.
type cliLogger struct{}

func (cliLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	if verbose {
		log.Printf("DEBUG %s %v", msg, keysAndValues)
	}
}

func (cliLogger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	if verbose {
		log.Printf("INFO %s %v", msg, keysAndValues)
	}
}

func (cliLogger) Warn(ctx context.Context, msg string, keysAndValues ...any) {
	log.Printf("WARN %s %v", msg, keysAndValues)
}

func (cliLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	log.Printf("ERROR %s %v", msg, keysAndValues)
}
