package repositories

import "context"

// KnowledgeRetriever abstracts the knowledge base behind the lookup tool.
type KnowledgeRetriever interface {
	// Retrieve answers a free-form query against the knowledge base.
	Retrieve(ctx context.Context, query string) (string, error)
}
