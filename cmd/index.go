package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/productassist/internal/retriever"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the catalog index ahead of serving",
	Long: `Loads the catalog, embeds every product, and writes the document and
similarity index artifacts to the data directory. An index that matches the
current catalog and embedding model is reused unless --rebuild is given.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().Bool("rebuild", false, "ignore persisted artifacts and re-embed the whole catalog")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	rebuild, _ := cmd.Flags().GetBool("rebuild")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, nil, true)
	if err != nil {
		return err
	}
	if err := a.loadIndex(ctx, rebuild); err != nil {
		return err
	}

	docsPath, annPath := retrieverArtifacts(a)
	fmt.Printf("Indexed %d products in %s\n", a.retriever.Len(), time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Documents: %s\n", docsPath)
	fmt.Printf("  Index:     %s\n", annPath)
	return nil
}

// retrieverArtifacts returns where the ready index was persisted.
func retrieverArtifacts(a *app) (string, string) {
	return retriever.ArtifactPaths(a.cfg.Catalog.DataDir, a.retriever.Hash())
}
