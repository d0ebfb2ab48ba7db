package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/productassist/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "productassist",
	Short: "Answer shopper questions from a product catalog",
	Long: `productassist indexes a product catalog for exact and semantic lookup
and answers shopper questions with a language model, keeping a short
conversation history per session. It serves an HTTP and websocket API,
an interactive REPL, and MCP tools for AI agents.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
