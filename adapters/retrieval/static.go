package retrieval

import (
	"context"
	"strings"

	"github.com/voxstream/voxstream/domain/repositories"
)

// StaticRetriever serves answers from a fixed document set. It backs
// development setups with no model API key.
type StaticRetriever struct {
	documents map[string]string
	fallback  string
}

func NewStaticRetriever(documents map[string]string) *StaticRetriever {
	return &StaticRetriever{
		documents: documents,
		fallback:  "No results found.",
	}
}

// Retrieve implements repositories.KnowledgeRetriever by keyword match over
// the document titles and bodies.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	needle := strings.ToLower(query)
	for title, body := range r.documents {
		if strings.Contains(strings.ToLower(title), needle) ||
			strings.Contains(strings.ToLower(body), needle) {
			return body, nil
		}
	}

	// Fall back to any document sharing a word with the query.
	for _, word := range strings.Fields(needle) {
		if len(word) < 4 {
			continue
		}
		for _, body := range r.documents {
			if strings.Contains(strings.ToLower(body), word) {
				return body, nil
			}
		}
	}
	return r.fallback, nil
}

var _ repositories.KnowledgeRetriever = (*StaticRetriever)(nil)
