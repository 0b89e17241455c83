// Package llm wraps the Gemini client from google.golang.org/genai with the
// two raw primitives the rest of the pipeline needs: embedding text into a
// fixed-dimension vector, and generating text from a prompt. Higher-level
// concerns (caching, retries, rate limiting, interfaces) live in
// internal/embedding and internal/generation; this package only talks to
// the wire.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for text generation.
	DefaultModel = "gemini-2.0-flash"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimension is the output dimension requested via
	// Matryoshka truncation. D is fixed at corpus build time.
	DefaultEmbeddingDimension = int32(768)

	// TaskTypeRetrievalDocument and TaskTypeRetrievalQuery are the
	// embed_content task_type values the Gemini embedding model uses to
	// produce asymmetric vectors for stored documents versus incoming
	// queries.
	TaskTypeRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Client wraps a single genai.Client and the model names it defaults to.
type Client struct {
	modelName      string
	embeddingModel string
	dimension      int32
	gClient        *genai.Client
}

// NewClient builds a Client. An empty apiKey falls back to the
// GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY and GOOGLE_AI_API_KEY environment
// variables and then to viper's embedding.api_key; an empty modelName or
// embeddingModel, or a zero dimension, falls back to the package defaults.
func NewClient(apiKey, modelName, embeddingModel string, dimension int32) (*Client, error) {
	if apiKey == "" {
		apiKey = resolveAPIKey()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set embedding.api_key / generative.api_key or GEMINI_API_KEY")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if dimension == 0 {
		dimension = DefaultEmbeddingDimension
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      modelName,
		embeddingModel: embeddingModel,
		dimension:      dimension,
		gClient:        gClient,
	}, nil
}

func resolveAPIKey() string {
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return viper.GetString("embedding.api_key")
}

// GenerateText produces text conditioned on prompt at the given temperature.
func (c *Client) GenerateText(ctx context.Context, prompt string, temperature float32, maxTokens int32) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// EmbedText maps text to a unit-norm dense vector of the client's configured
// dimension, using Matryoshka output truncation. taskType is passed straight
// through to embed_content's task_type (e.g. TaskTypeRetrievalDocument or
// TaskTypeRetrievalQuery), so the document and query sides of a retrieval
// pair get the asymmetric vectors the model is trained to produce.
func (c *Client) EmbedText(ctx context.Context, text, taskType string) ([]float32, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}
	dim := c.dimension
	cfg := &genai.EmbedContentConfig{OutputDimensionality: &dim, TaskType: taskType}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}
	return resp.Embeddings[0].Values, nil
}

// Close releases the underlying client's resources, if any.
func (c *Client) Close() {}
