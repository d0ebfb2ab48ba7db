package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/productassist/internal/advisor"
	"github.com/ziadkadry99/productassist/internal/catalog"
	"github.com/ziadkadry99/productassist/internal/retriever"
	"github.com/ziadkadry99/productassist/internal/session"
)

// mockSearcher returns one document whose code is the upper-cased query.
type mockSearcher struct {
	err error
}

func (m *mockSearcher) Search(_ context.Context, query string, k int) ([]retriever.Match, error) {
	if m.err != nil {
		return nil, m.err
	}
	if query == "nothing" {
		return nil, nil
	}
	d := catalog.NewDocument(map[string]string{catalog.FieldCode: strings.ToUpper(query), catalog.FieldName: "Item " + query})
	return []retriever.Match{{Document: d, Exact: true, Similarity: 1}}, nil
}

func (m *mockSearcher) ParallelSearch(ctx context.Context, queries []string, k int) [][]retriever.Match {
	out := make([][]retriever.Match, len(queries))
	for i, q := range queries {
		out[i], _ = m.Search(ctx, q, k)
	}
	return out
}

type mockAsker struct {
	sessions []string
	result   *session.Result
	err      error
}

func (m *mockAsker) Submit(_ context.Context, sessionID, question string, clearHistory bool) (*session.Result, error) {
	m.sessions = append(m.sessions, sessionID)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &session.Result{
		Message:  "Try the drill.",
		Products: []advisor.Product{{Product: "Cordless drill", Code: "AB12CD"}},
	}, nil
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	var sb strings.Builder
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"search_catalog", searchCatalogTool, "search_catalog"},
		{"search_catalog_batch", searchCatalogBatchTool, "search_catalog_batch"},
		{"ask_product_question", askProductQuestionTool, "ask_product_question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(&mockSearcher{}, nil)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.sessionID == "" {
		t.Error("default session id not set")
	}
}

func TestHandleSearchCatalog(t *testing.T) {
	srv := NewServer(&mockSearcher{}, nil)
	ctx := context.Background()

	t.Run("basic search", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "ab12cd", "limit": 3}

		result, err := srv.handleSearchCatalog(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		if text := resultText(t, result); !strings.Contains(text, "AB12CD (exact match)") {
			t.Errorf("result text = %q", text)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleSearchCatalog(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})

	t.Run("no results", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "nothing"}

		result, _ := srv.handleSearchCatalog(ctx, req)
		if text := resultText(t, result); text != "No products found." {
			t.Errorf("result text = %q", text)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		notReady := NewServer(&mockSearcher{err: retriever.ErrNotReady}, nil)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "x"}

		result, _ := notReady.handleSearchCatalog(ctx, req)
		if !result.IsError || !strings.Contains(resultText(t, result), "still being built") {
			t.Errorf("result = %+v", result)
		}
	})
}

func TestHandleSearchCatalogBatch(t *testing.T) {
	srv := NewServer(&mockSearcher{}, nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"queries": []any{"aa11bb", "nothing", "cc22dd"}}

	result, err := srv.handleSearchCatalogBatch(context.Background(), req)
	if err != nil || result.IsError {
		t.Fatalf("result = %+v, err = %v", result, err)
	}
	text := resultText(t, result)
	first, second := strings.Index(text, "AA11BB"), strings.Index(text, "CC22DD")
	if first < 0 || second < 0 || first > second {
		t.Errorf("results out of order:\n%s", text)
	}
	if !strings.Contains(text, "## Query 2: nothing\n\nNo products found.") {
		t.Errorf("empty query result missing:\n%s", text)
	}
}

func TestHandleAskProductQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("default session", func(t *testing.T) {
		asker := &mockAsker{}
		srv := NewServer(&mockSearcher{}, asker)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "need a drill"}

		for i := 0; i < 2; i++ {
			result, err := srv.handleAskProductQuestion(ctx, req)
			if err != nil || result.IsError {
				t.Fatalf("result = %+v, err = %v", result, err)
			}
			if text := resultText(t, result); !strings.Contains(text, "- Cordless drill (AB12CD)") {
				t.Errorf("result text = %q", text)
			}
		}
		if asker.sessions[0] != srv.sessionID || asker.sessions[1] != srv.sessionID {
			t.Errorf("sessions = %v, want default %s", asker.sessions, srv.sessionID)
		}
	})

	t.Run("explicit session", func(t *testing.T) {
		asker := &mockAsker{}
		srv := NewServer(&mockSearcher{}, asker)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "q", "session_id": "abc"}
		srv.handleAskProductQuestion(ctx, req)
		if asker.sessions[0] != "abc" {
			t.Errorf("session = %q", asker.sessions[0])
		}
	})

	t.Run("credentials", func(t *testing.T) {
		srv := NewServer(&mockSearcher{}, &mockAsker{err: fmt.Errorf("%w: expired", session.ErrCredentials)})
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "q"}
		result, _ := srv.handleAskProductQuestion(ctx, req)
		if !result.IsError || !strings.Contains(resultText(t, result), "credentials") {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		srv := NewServer(&mockSearcher{}, &mockAsker{result: &session.Result{Message: session.CancelledMessage, Cancelled: true}})
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "q"}
		result, _ := srv.handleAskProductQuestion(ctx, req)
		if result.IsError || !strings.Contains(resultText(t, result), "replaced by a newer one") {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("other error", func(t *testing.T) {
		srv := NewServer(&mockSearcher{}, &mockAsker{err: errors.New("boom")})
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "q"}
		result, _ := srv.handleAskProductQuestion(ctx, req)
		if !result.IsError {
			t.Error("expected tool error")
		}
	})
}
