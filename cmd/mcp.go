package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/productassist/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing catalog
search and product question tools for AI agents. Logs go to stderr.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().Bool("search-only", false, "expose only the search tools, without a chat model")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searchOnly, _ := cmd.Flags().GetBool("search-only")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, nil, false)
	if err != nil {
		return err
	}
	if a.creds != nil {
		go a.creds.Run(ctx)
	}
	if err := a.loadIndex(ctx, false); err != nil {
		return err
	}

	mcpserver.Version = Version

	var srv *mcpserver.Server
	if searchOnly {
		srv = mcpserver.NewServer(a.retriever, nil)
	} else {
		coord, store, err := a.newCoordinator(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		srv = mcpserver.NewServer(a.retriever, coord)
	}

	fmt.Fprintf(os.Stderr, "productassist MCP server started on stdio (documents=%d)\n", a.retriever.Len())
	return srv.Serve()
}
