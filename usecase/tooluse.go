// Package usecase holds the application services sitting between the
// transport layers and the domain.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
)

const defaultQuery = "travel policy"

// ToolRouter resolves the model's tool invocations. The date and travel
// policy tools answer locally; getKbTool goes through the configured
// knowledge retriever.
type ToolRouter struct {
	retriever repositories.KnowledgeRetriever
	logger    *zap.Logger
	now       func() time.Time
}

func NewToolRouter(retriever repositories.KnowledgeRetriever, logger *zap.Logger) *ToolRouter {
	return &ToolRouter{
		retriever: retriever,
		logger:    logger,
		now:       time.Now,
	}
}

// toolUsePayload is the slice of the toolUse event the router needs. The
// content field is a JSON string of tool arguments.
type toolUsePayload struct {
	ToolName string `json:"toolName"`
	Content  string `json:"content"`
}

// Invoke resolves one tool call and returns the result as a JSON object
// string with a single result field.
func (r *ToolRouter) Invoke(ctx context.Context, toolName string, content []byte) (string, error) {
	var payload toolUsePayload
	if err := json.Unmarshal(content, &payload); err != nil {
		payload = toolUsePayload{ToolName: toolName}
	}

	switch toolName {
	case "getDateTool":
		return resultJSON(r.now().UTC().Format("Monday, 2006-01-02 15-04-05"))
	case "getTravelPolicyTool":
		return resultJSON("Travel with pet is not allowed at the XYZ airline.")
	case "getKbTool":
		return r.retrieve(ctx, payload.Content)
	}
	return "", fmt.Errorf("unknown tool %q", toolName)
}

func (r *ToolRouter) retrieve(ctx context.Context, content string) (string, error) {
	if r.retriever == nil {
		return resultJSON("Knowledge base not configured.")
	}

	query := ExtractQuery(content)
	if query == "" {
		query = defaultQuery
		r.logger.Warn("no query in tool arguments, using default",
			zap.String("query", query))
	}

	answer, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		r.logger.Error("knowledge base retrieval failed",
			zap.String("query", query),
			zap.Error(err))
		return resultJSON(fmt.Sprintf("Error in knowledge base retrieval: %v", err))
	}
	if answer == "" {
		answer = "No results found."
	}
	return resultJSON(answer)
}

func resultJSON(result string) (string, error) {
	data, err := json.Marshal(map[string]string{"result": result})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var queryPattern = regexp.MustCompile(`(?i)query[=:]\s*([^&\n]+)`)

// ExtractQuery pulls the query string out of tool arguments. The model is
// inconsistent about the parameter name, so this checks "query", then
// "argName1", then any key containing "query", and finally falls back to a
// loose key=value scan of non-JSON content.
func ExtractQuery(content string) string {
	if content == "" {
		return ""
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(content), &args); err != nil {
		if m := queryPattern.FindStringSubmatch(content); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}

	if q, ok := args["query"].(string); ok && q != "" {
		return q
	}
	if q, ok := args["argName1"].(string); ok && q != "" {
		return q
	}
	for key, value := range args {
		if strings.Contains(strings.ToLower(key), "query") {
			if q, ok := value.(string); ok && q != "" {
				return q
			}
		}
	}
	return ""
}
