package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and control workflow runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list [workflow]",
	Short: "List runs, most recent first",
	Long: `Lists workflow runs. Pass a workflow name (ingest_document or
query_document) to filter; omit it to list everything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRunsList,
}

var runsStatusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show a run's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsStatus,
}

var runsResumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume an interrupted or failed run",
	Long: `Re-drives a run. Steps that already completed are replayed from
their recorded output, so no work is redone and no document is embedded
or stored twice.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsResume,
}

var runsCancelCmd = &cobra.Command{
	Use:   "cancel [run-id]",
	Short: "Cancel a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsCancel,
}

var runsResumeTimeout time.Duration

func init() {
	runsResumeCmd.Flags().DurationVar(&runsResumeTimeout, "timeout", 5*time.Minute, "how long to wait for the resumed run")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsResumeCmd)
	runsCmd.AddCommand(runsCancelCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("workflow engine not configured")
	}

	workflow := ""
	if len(args) == 1 {
		workflow = args[0]
	}

	runs, err := engine.Runs(context.Background(), workflow)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs found.")
		return nil
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-16s  %-9s  %s",
			run.ID, run.Workflow, run.Status, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if run.LastError != "" {
			line += "  " + run.LastError
		}
		cmd.Println(line)
	}
	return nil
}

func runRunsStatus(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("workflow engine not configured")
	}

	state, err := engine.Poll(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("polling run: %w", err)
	}

	cmd.Printf("Run:      %s\n", state.RunID)
	cmd.Printf("Workflow: %s\n", state.Workflow)
	cmd.Printf("Status:   %s\n", state.Status)
	if state.CurrentStep != "" {
		cmd.Printf("Step:     %s\n", state.CurrentStep)
	}
	if state.Error != "" {
		cmd.Printf("Error:    %s\n", state.Error)
	}
	if len(state.Output) > 0 {
		pretty, err := json.MarshalIndent(json.RawMessage(state.Output), "", "  ")
		if err == nil {
			cmd.Printf("Output:   %s\n", pretty)
		}
	}
	return nil
}

func runRunsResume(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("workflow engine not configured")
	}
	runID := args[0]

	ctx := context.Background()
	if err := engine.Resume(ctx, runID); err != nil {
		return fmt.Errorf("resuming run: %w", err)
	}

	state, err := waitWithSpinner(ctx, cmd, runID, "Resuming", runsResumeTimeout)
	if err != nil {
		return err
	}
	if !state.Status.Success() {
		return fmt.Errorf("resumed run %s: %s", state.Status, state.Error)
	}
	cmd.Printf("Run %s succeeded.\n", runID)
	return nil
}

func runRunsCancel(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("workflow engine not configured")
	}

	if err := engine.Cancel(context.Background(), args[0]); err != nil {
		return fmt.Errorf("cancelling run: %w", err)
	}
	cmd.Printf("Cancellation requested for run %s.\n", args[0])
	return nil
}
