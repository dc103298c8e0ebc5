package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type staticRetriever struct {
	answer  string
	err     error
	queries []string
}

func (r *staticRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	r.queries = append(r.queries, query)
	return r.answer, r.err
}

func resultOf(t *testing.T, raw string) string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("Tool result is not a JSON object: %v", err)
	}
	return out["result"]
}

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"standard name", `{"query":"travel policy"}`, "travel policy"},
		{"alternative name", `{"argName1":"pet rules"}`, "pet rules"},
		{"fuzzy key", `{"searchQuery":"baggage"}`, "baggage"},
		{"case insensitive key", `{"KB_Query":"lounge access"}`, "lounge access"},
		{"non json key value", `query: visa requirements`, "visa requirements"},
		{"non json equals", `query=refunds&limit=3`, "refunds"},
		{"no query", `{"limit":3}`, ""},
		{"empty", ``, ""},
		{"non json without query", `just some text`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractQuery(tt.content); got != tt.want {
				t.Errorf("ExtractQuery(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestInvokeDateTool(t *testing.T) {
	router := NewToolRouter(nil, zap.NewNop())
	router.now = func() time.Time {
		return time.Date(2026, time.August, 31, 9, 30, 0, 0, time.UTC)
	}

	raw, err := router.Invoke(context.Background(), "getDateTool", []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got := resultOf(t, raw); got != "Monday, 2026-08-31 09-30-00" {
		t.Errorf("Unexpected date result: %s", got)
	}
}

func TestInvokeTravelPolicyTool(t *testing.T) {
	router := NewToolRouter(nil, zap.NewNop())
	raw, err := router.Invoke(context.Background(), "getTravelPolicyTool", []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(resultOf(t, raw), "XYZ airline") {
		t.Errorf("Unexpected policy result: %s", raw)
	}
}

func TestInvokeKbTool(t *testing.T) {
	retriever := &staticRetriever{answer: "Pets fly in the cabin under 8 kg."}
	router := NewToolRouter(retriever, zap.NewNop())

	content, _ := json.Marshal(map[string]string{
		"toolName": "getKbTool",
		"content":  `{"query":"pet policy"}`,
	})
	raw, err := router.Invoke(context.Background(), "getKbTool", content)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got := resultOf(t, raw); got != retriever.answer {
		t.Errorf("Unexpected kb result: %s", got)
	}
	if len(retriever.queries) != 1 || retriever.queries[0] != "pet policy" {
		t.Errorf("Expected retriever queried with extracted query, got %v", retriever.queries)
	}
}

func TestInvokeKbToolDefaultQuery(t *testing.T) {
	retriever := &staticRetriever{answer: "ok"}
	router := NewToolRouter(retriever, zap.NewNop())

	raw, err := router.Invoke(context.Background(), "getKbTool", []byte(`{"content":"{}"}`))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resultOf(t, raw) != "ok" {
		t.Errorf("Unexpected result: %s", raw)
	}
	if len(retriever.queries) != 1 || retriever.queries[0] != defaultQuery {
		t.Errorf("Expected default query, got %v", retriever.queries)
	}
}

func TestInvokeKbToolRetrievalError(t *testing.T) {
	retriever := &staticRetriever{err: errors.New("index offline")}
	router := NewToolRouter(retriever, zap.NewNop())

	raw, err := router.Invoke(context.Background(), "getKbTool", []byte(`{"content":"{\"query\":\"x\"}"}`))
	if err != nil {
		t.Fatalf("Retrieval errors should come back as tool results, got %v", err)
	}
	if !strings.Contains(resultOf(t, raw), "index offline") {
		t.Errorf("Expected error surfaced in result, got %s", raw)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	router := NewToolRouter(nil, zap.NewNop())
	if _, err := router.Invoke(context.Background(), "launchRocketTool", []byte(`{}`)); err == nil {
		t.Error("Expected error for unknown tool")
	}
}
