package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/productassist/internal/retriever"
)

var queryCmd = &cobra.Command{
	Use:   "query [query...]",
	Short: "Search the catalog by product code, name, or description",
	Long: `Runs each argument as a separate catalog search, concurrently. Product
codes and exact names are matched directly; anything else falls back to
semantic similarity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 0, "maximum number of similarity results per query (defaults to retrieval.top_k)")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.Retrieval.TopK
	}

	a, err := newApp(ctx, cfg, nil, true)
	if err != nil {
		return err
	}
	if err := a.loadIndex(ctx, false); err != nil {
		return err
	}

	results := a.retriever.ParallelSearch(ctx, args, limit)

	if jsonOutput {
		return printQueryResultsJSON(args, results)
	}

	for i, q := range args {
		if len(args) > 1 {
			fmt.Printf("=== %s ===\n", q)
		}
		fmt.Println(retriever.FormatMatches(results[i]))
	}
	return nil
}

type queryMatchJSON struct {
	Rank       int               `json:"rank"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Similarity float64           `json:"similarity"`
	Exact      bool              `json:"exact"`
	Fields     map[string]string `json:"fields"`
}

type queryResultJSON struct {
	Query   string           `json:"query"`
	Matches []queryMatchJSON `json:"matches"`
}

func printQueryResultsJSON(queries []string, results [][]retriever.Match) error {
	out := make([]queryResultJSON, len(queries))
	for i, q := range queries {
		out[i] = queryResultJSON{Query: q, Matches: []queryMatchJSON{}}
		for j, m := range results[i] {
			out[i].Matches = append(out[i].Matches, queryMatchJSON{
				Rank:       j + 1,
				Code:       m.Document.Code(),
				Name:       m.Document.Name(),
				Similarity: float64(m.Similarity),
				Exact:      m.Exact,
				Fields:     m.Document.Fields,
			})
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
