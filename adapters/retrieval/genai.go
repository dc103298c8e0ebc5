// Package retrieval provides knowledge base implementations behind the
// getKbTool interface.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voxstream/voxstream/domain/repositories"
)

const answerPrompt = "Answer the question using only well established facts. " +
	"Keep the answer short, two or three sentences, suitable for being read aloud. " +
	"Question: %s"

// GenAIRetriever answers knowledge base queries with a Gemini model.
type GenAIRetriever struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

func NewGenAIRetriever(ctx context.Context, apiKey string, logger *zap.Logger) (*GenAIRetriever, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIRetriever{
		client: client,
		logger: logger,
		model:  "gemini-2.0-flash",
	}, nil
}

// Retrieve implements repositories.KnowledgeRetriever
func (r *GenAIRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf(answerPrompt, query), genai.RoleUser),
	}

	response, err := r.client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("genai retrieval failed: %w", err)
	}

	text := response.Text()
	if text == "" {
		r.logger.Warn("genai returned an empty answer", zap.String("query", query))
		return "No results found.", nil
	}
	return text, nil
}

var _ repositories.KnowledgeRetriever = (*GenAIRetriever)(nil)
