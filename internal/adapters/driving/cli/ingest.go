package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
)

var (
	ingestSourceID string
	ingestTimeout  time.Duration
	ingestNoWait   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [pdf-path]",
	Short: "Ingest a document into the vector store",
	Long: `Extracts text from a PDF (or plain text file), splits it into
overlapping chunks, embeds them and stores the vectors for retrieval.

Ingestion is asynchronous: the command triggers a durable run and waits
for it to finish. Re-ingesting the same document within four hours is
rejected; use --source to ingest the same file under a different name.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourceID, "source", "", "source id for the document (default: file name)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 5*time.Minute, "how long to wait for the run to finish")
	ingestCmd.Flags().BoolVar(&ingestNoWait, "no-wait", false, "trigger the run and exit without waiting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("workflow engine not configured")
	}

	event, err := driving.NewIngestEvent(args[0], ingestSourceID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	runID, err := engine.Trigger(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			return fmt.Errorf("this document was ingested recently; try again later (%w)", err)
		}
		return fmt.Errorf("starting ingest: %w", err)
	}

	if ingestNoWait {
		cmd.Printf("Run %s started. Check it with: docqa runs status %s\n", runID, runID)
		return nil
	}

	state, err := waitWithSpinner(ctx, cmd, runID, "Ingesting", ingestTimeout)
	if err != nil {
		return err
	}
	if !state.Status.Success() {
		return fmt.Errorf("ingest %s: %s", state.Status, state.Error)
	}

	var result driving.IngestResult
	if err := json.Unmarshal(state.Output, &result); err != nil {
		return fmt.Errorf("decoding run output: %w", err)
	}
	cmd.Printf("Ingested %d chunks from %s\n", result.Ingested, args[0])
	return nil
}

// waitWithSpinner polls the run while showing a spinner with the
// current step, and returns the terminal state.
func waitWithSpinner(ctx context.Context, cmd *cobra.Command, runID, verb string, timeout time.Duration) (*driving.RunState, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(verb),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	deadline := time.Now().Add(timeout)
	for {
		state, err := engine.Poll(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("polling run %s: %w", runID, err)
		}
		if state.Status.Terminal() {
			return state, nil
		}
		if state.CurrentStep != "" {
			bar.Describe(fmt.Sprintf("%s (%s)", verb, state.CurrentStep))
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("run %s is still %s; resume it later with: docqa runs resume %s: %w",
				runID, state.Status, runID, domain.ErrTimeout)
		}
		_ = bar.Add(1)
		time.Sleep(200 * time.Millisecond)
	}
}
