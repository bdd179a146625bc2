package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teems-ai/eve/internal/state"
	"github.com/teems-ai/eve/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list <tenant>",
	Short: "List a tenant's sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewConversationStore(cfg.DataDir)

		ctx := context.Background()
		list, err := store.List(ctx, args[0])
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tTITLE\tAGENT\tMESSAGES\tUPDATED")
		for _, conv := range list {
			msgs, err := store.Messages(ctx, conv.SessionKey, 0)
			if err != nil {
				msgs = nil
			}
			agent := conv.ActiveAgent
			if agent == "" {
				agent = "eve"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				conv.SessionKey,
				conv.Title,
				agent,
				len(msgs),
				conv.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <tenant> <session|all>",
	Short: "Clear one of a tenant's sessions, or all of them",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewConversationStore(cfg.DataDir)
		ctx := context.Background()

		if args[1] == "all" {
			list, err := store.List(ctx, args[0])
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			for _, conv := range list {
				if err := store.Delete(ctx, conv.SessionKey); err != nil {
					return fmt.Errorf("delete session %s: %w", conv.SessionKey, err)
				}
			}
			fmt.Printf("Cleared %d sessions.\n", len(list))
			return nil
		}

		key := types.NewSessionKey(args[0], args[1])
		if err := store.Delete(ctx, key); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("session not found: %s", args[1])
			}
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s cleared.\n", args[1])
		return nil
	},
}
