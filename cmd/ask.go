package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/productassist/internal/session"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask product questions in an interactive session",
	Long: `Starts a conversation with the product assistant. Each question is
answered with the previous exchanges of the session as context.

Type /clear to start the next question without history, or /exit to quit.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("session", "", "resume an existing session id (stored sessions only)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = session.NewID()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, nil, true)
	if err != nil {
		return err
	}
	if a.creds != nil {
		go a.creds.Run(ctx)
	}
	if err := a.loadIndex(ctx, false); err != nil {
		return err
	}
	coord, store, err := a.newCoordinator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Session %s, %d products indexed.\n", sessionID, a.retriever.Len())
	fmt.Println("Type /clear to forget the conversation, /exit to quit.")
	fmt.Println()

	prompt := promptui.Prompt{Label: "Question"}
	clearHistory := false
	for {
		question, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading question: %w", err)
		}

		question = strings.TrimSpace(question)
		switch question {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			clearHistory = true
			fmt.Println("History will be cleared with the next question.")
			continue
		}

		res, err := coord.Submit(ctx, sessionID, question, clearHistory)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		clearHistory = false
		printAnswer(res)
	}
}

func printAnswer(res *session.Result) {
	fmt.Println()
	fmt.Println(res.Message)
	if len(res.Products) > 0 {
		fmt.Println()
		fmt.Println("Products:")
		for _, p := range res.Products {
			fmt.Printf("  - %s (%s)\n", p.Product, p.Code)
		}
	}
	if verbose && len(res.Attributes) > 0 {
		fmt.Println()
		fmt.Println("Customer attributes:")
		for _, k := range sortedKeys(res.Attributes) {
			fmt.Printf("  %s: %v\n", k, res.Attributes[k])
		}
	}
	fmt.Printf("\n(%s, attributes %s)\n\n",
		res.Duration.Round(time.Millisecond), res.AttributeDuration.Round(time.Millisecond))
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
