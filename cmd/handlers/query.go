package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"incidentrag/internal/app"
	"incidentrag/internal/config"

	"github.com/spf13/cobra"
)

// NewQueryCmd creates the query command: the operator surface for C6-C8,
// running a single natural-language query through the full pipeline and
// printing the resulting RAGResponse.
func NewQueryCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Ask the incident corpus a question and get a grounded, cited answer",
		Long: `Run a natural-language query through the router, hybrid retriever,
semantic validator, and grounded generator, and print the resulting answer
along with its citations and confidence score.

Examples:
  incidentrag query "JSP-1052"
  incidentrag query "UPI timeout on Axis Bank"
  incidentrag query --json "why do webhook deliveries keep failing"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryRun(cmd, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full RAGResponse as JSON")
	return cmd
}

func queryRun(cmd *cobra.Command, text string, asJSON bool) error {
	cfg := config.Get()
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer application.Close()

	resp, err := application.Engine.Answer(context.Background(), text)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", resp.GeneratedAnswer)
	fmt.Fprintf(cmd.OutOrStdout(), "strategy: %s   confidence: %.2f (%s)   status: %s\n",
		resp.RAGStrategy, resp.ConfidenceScore, resp.Metadata.ConfidenceLevel, resp.Metadata.Status)
	if len(resp.Sources) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "sources: %v\n", resp.Sources)
	}
	if resp.RefusalReason != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "refusal reason: %s\n", resp.RefusalReason)
	}
	return nil
}
