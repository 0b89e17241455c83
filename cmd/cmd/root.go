// Package cmd wires the cobra root command and its subcommands. It carries
// no business logic of its own: every subcommand delegates straight into
// cmd/handlers, which in turn delegates into internal/app.
package cmd

import (
	"fmt"
	"os"

	"incidentrag/cmd/handlers"
	"incidentrag/internal/config"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "incidentrag",
	Short: "Grounded fix suggestions for production incidents, retrieved from a curated corpus",
	Long: `incidentrag is a retrieval-augmented engine over a corpus of resolved
production incidents. Given a natural-language description of a problem,
it classifies the query, retrieves candidates with a hybrid dense+sparse
search, validates topical relevance, and generates a cited answer grounded
only in admitted incidents — refusing rather than guessing when the
corpus holds no evidence.`,
}

// Execute runs the root command. It is the sole entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.incidentrag.yaml)")

	rootCmd.AddCommand(handlers.NewQueryCmd())
	rootCmd.AddCommand(handlers.NewIngestCmd())
	rootCmd.AddCommand(handlers.NewFeedbackCmd())
}

func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
}
