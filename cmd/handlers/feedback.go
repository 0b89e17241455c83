package handlers

import (
	"fmt"
	"time"

	"incidentrag/internal/app"
	"incidentrag/internal/config"
	"incidentrag/internal/core"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewFeedbackCmd creates the feedback command: the append-only sink for
// caller relevance judgements. Feedback is recorded, never applied live.
func NewFeedbackCmd() *cobra.Command {
	var (
		query        string
		resultID     string
		rating       int
		helpful      bool
		feedbackText string
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record a relevance judgement against a prior query result",
		Long: `Append a feedback record for a previously returned incident citation.
Feedback is stored for operator review; it is never applied to retrieval
within the same request.

Example:
  incidentrag feedback --query="UPI timeout" --result-id=JSP-1000 --rating=5 --helpful`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return feedbackRun(cmd, query, resultID, rating, helpful, feedbackText)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "the original query text")
	cmd.Flags().StringVar(&resultID, "result-id", "", "the cited incident id being rated")
	cmd.Flags().IntVar(&rating, "rating", 0, "relevance rating, 1-5")
	cmd.Flags().BoolVar(&helpful, "helpful", false, "whether the result was helpful")
	cmd.Flags().StringVar(&feedbackText, "text", "", "optional free-text feedback")
	cmd.MarkFlagRequired("result-id")
	cmd.MarkFlagRequired("rating")
	return cmd
}

func feedbackRun(cmd *cobra.Command, query, resultID string, rating int, helpful bool, feedbackText string) error {
	cfg := config.Get()
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer application.Close()

	fb := core.Feedback{
		ID:           uuid.NewString(),
		Query:        query,
		ResultID:     resultID,
		Rating:       rating,
		Helpful:      helpful,
		FeedbackText: feedbackText,
		CreatedAt:    time.Now().UTC(),
	}

	if err := application.Corpus.AddFeedback(fb); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded feedback %s\n", fb.ID)
	return nil
}
