// Package mcp exposes catalog search and product questions as MCP tools
// over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/productassist/internal/retriever"
	"github.com/ziadkadry99/productassist/internal/session"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Searcher runs catalog searches.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retriever.Match, error)
	ParallelSearch(ctx context.Context, queries []string, k int) [][]retriever.Match
}

// Asker answers product questions for a session.
type Asker interface {
	Submit(ctx context.Context, sessionID, question string, clearHistory bool) (*session.Result, error)
}

// Server wraps an MCP server that exposes the catalog tools.
type Server struct {
	searcher Searcher
	asker    Asker
	// sessionID is used for questions that name no session, so one MCP
	// client keeps a single conversation by default.
	sessionID string
	mcp       *server.MCPServer
}

// NewServer creates a new MCP server. asker may be nil, in which case
// only the search tools are registered.
func NewServer(searcher Searcher, asker Asker) *Server {
	s := &Server{
		searcher:  searcher,
		asker:     asker,
		sessionID: session.NewID(),
	}

	s.mcp = server.NewMCPServer(
		"productassist",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchCatalogTool, s.handleSearchCatalog)
	s.mcp.AddTool(searchCatalogBatchTool, s.handleSearchCatalogBatch)
	if s.asker != nil {
		s.mcp.AddTool(askProductQuestionTool, s.handleAskProductQuestion)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
