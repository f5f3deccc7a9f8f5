package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new [document-name]",
	Short: "Start a new chat session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsNew,
}

var sessionsHistoryCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show a session's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsHistory,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsNewCmd)
	sessionsCmd.AddCommand(sessionsHistoryCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	if sessionStore == nil {
		return errors.New("session store not configured")
	}

	sessions, err := sessionStore.ListSessions(context.Background())
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		cmd.Println("No sessions yet. Start one with: docqa sessions new <document-name>")
		return nil
	}

	for _, s := range sessions {
		cmd.Printf("%s  %s  %d messages  (%s)\n",
			s.SessionID, s.CreatedAt.Local().Format("2006-01-02 15:04"), len(s.Messages), s.PDFName)
	}
	return nil
}

func runSessionsNew(cmd *cobra.Command, args []string) error {
	if sessionStore == nil {
		return errors.New("session store not configured")
	}

	id, err := sessionStore.CreateSession(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	cmd.Println(id)
	return nil
}

func runSessionsHistory(cmd *cobra.Command, args []string) error {
	if sessionStore == nil {
		return errors.New("session store not configured")
	}

	messages, err := sessionStore.GetHistory(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if len(messages) == 0 {
		cmd.Println("No messages in this session.")
		return nil
	}

	for _, m := range messages {
		cmd.Printf("[%s]\n", m.Timestamp.Local().Format("2006-01-02 15:04:05"))
		cmd.Printf("Q: %s\n", m.Question)
		cmd.Printf("A: %s\n", m.Answer)
		if len(m.Sources) > 0 {
			cmd.Printf("Sources: %s\n", uniqueSources(m.Sources))
		}
		cmd.Println()
	}
	return nil
}
