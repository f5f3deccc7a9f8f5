package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

var (
	queryTopK    int
	querySession string
	queryTimeout time.Duration
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about ingested documents",
	Long: `Embeds the question, retrieves the most similar chunks from the
vector store and synthesizes an answer grounded in them.

With --session the exchange is appended to a chat session so the
conversation can be reviewed later with "docqa sessions history".`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of contexts to retrieve (default 5)")
	queryCmd.Flags().StringVar(&querySession, "session", "", "session id to record the exchange in")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 2*time.Minute, "how long to wait for the answer")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("workflow engine not configured")
	}
	question := args[0]

	event, err := driving.NewQueryEvent(question, queryTopK)
	if err != nil {
		return err
	}

	ctx := context.Background()
	runID, err := engine.Trigger(ctx, event)
	if err != nil {
		return fmt.Errorf("starting query: %w", err)
	}

	state, err := waitWithSpinner(ctx, cmd, runID, "Thinking", queryTimeout)
	if err != nil {
		return err
	}
	if !state.Status.Success() {
		return fmt.Errorf("query %s: %s", state.Status, state.Error)
	}

	var result driving.QueryResult
	if err := json.Unmarshal(state.Output, &result); err != nil {
		return fmt.Errorf("decoding run output: %w", err)
	}

	if querySession != "" && sessionStore != nil {
		if err := sessionStore.AppendMessage(ctx, querySession, question, result.Answer, result.Sources); err != nil {
			logger.Warn("recording exchange in session %s: %v", querySession, err)
		}
	}

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(result.Answer)
	if result.NumContexts > 0 {
		cmd.Println()
		cmd.Printf("Sources (%d contexts): %s\n", result.NumContexts, uniqueSources(result.Sources))
	}
	return nil
}

// uniqueSources deduplicates while preserving first-seen order.
func uniqueSources(sources []string) string {
	seen := make(map[string]bool, len(sources))
	out := ""
	for _, s := range sources {
		if seen[s] {
			continue
		}
		seen[s] = true
		if out != "" {
			out += ", "
		}
		out += s
	}
	return out
}
