package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/productassist/internal/retriever"
	"github.com/ziadkadry99/productassist/internal/session"
)

const defaultLimit = 6

// handleSearchCatalog runs one hybrid catalog search.
func (s *Server) handleSearchCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}

	matches, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, retriever.ErrNotReady) {
			return mcp.NewToolResultError("The catalog index is still being built. Try again shortly."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(retriever.FormatMatches(matches)), nil
}

// handleSearchCatalogBatch fans several searches out at once.
func (s *Server) handleSearchCatalogBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queries, err := request.RequireStringSlice("queries")
	if err != nil || len(queries) == 0 {
		return mcp.NewToolResultError("missing required parameter: queries"), nil
	}

	limit := request.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}

	results := s.searcher.ParallelSearch(ctx, queries, limit)
	var sb strings.Builder
	for i, q := range queries {
		fmt.Fprintf(&sb, "## Query %d: %s\n\n", i+1, q)
		sb.WriteString(retriever.FormatMatches(results[i]))
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleAskProductQuestion answers through the session coordinator.
func (s *Server) handleAskProductQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		sessionID = s.sessionID
	}

	res, err := s.asker.Submit(ctx, sessionID, question, request.GetBool("clear_history", false))
	if err != nil {
		if errors.Is(err, session.ErrCredentials) {
			return mcp.NewToolResultError("The model provider rejected its credentials. Try again later."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("question failed: %v", err)), nil
	}
	if res.Cancelled {
		return mcp.NewToolResultText("This question was replaced by a newer one in the same conversation."), nil
	}
	return mcp.NewToolResultText(formatAnswer(res)), nil
}

func formatAnswer(res *session.Result) string {
	var sb strings.Builder
	sb.WriteString(res.Message)
	sb.WriteString("\n")
	if len(res.Products) > 0 {
		sb.WriteString("\nRecommended products:\n")
		for _, p := range res.Products {
			fmt.Fprintf(&sb, "- %s (%s)\n", p.Product, p.Code)
		}
	}
	return sb.String()
}
