package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tgstate/internal/domain"
)

func secretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "List persisted secret chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := appCtx.Restore(); err != nil {
				return err
			}
			return printChats(cmd.OutOrStdout(), appCtx.Engine.SecretChats(), appCtx.Engine.OurID())
		},
	}
	cmd.AddCommand(secretsStartCmd(), secretsRmCmd())
	return cmd
}

func secretsStartCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "start <peer-id>",
		Short: "Open a secret chat with a user and wait for them to accept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("peer id %q: %w", args[0], err)
			}
			ctx := cmd.Context()
			if _, err := appCtx.Start(ctx); err != nil {
				return err
			}
			chat, err := appCtx.Lifecycle.StartSecretChat(ctx, domain.UserID(peer))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Secret chat %s requested; waiting for %d.\n", chat.ID, peer)

			deadline := time.Now().Add(wait)
			for !appCtx.Lifecycle.CanSend(chat.ID) && time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(appCtx.Config.AuthPollInterval):
				}
				if _, err := appCtx.Sync(ctx); err != nil {
					return err
				}
			}
			if err := appCtx.Lifecycle.Flush(context.WithoutCancel(ctx)); err != nil {
				return err
			}

			if !appCtx.Lifecycle.CanSend(chat.ID) {
				fmt.Fprintf(out, "Not accepted within %s; the request stays open on the server.\n", wait)
				return nil
			}
			cur, _ := appCtx.Engine.SecretChat(chat.ID)
			return printChats(out, []domain.SecretChat{cur}, appCtx.Engine.OurID())
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for the peer to accept")
	return cmd
}

func secretsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <chat-id>",
		Short: "Terminate a secret chat locally and drop it from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("chat id %q: %w", args[0], err)
			}
			if _, err := appCtx.Restore(); err != nil {
				return err
			}
			chatID := domain.SecretChatID(id)
			if _, ok := appCtx.Engine.SecretChat(chatID); !ok {
				return fmt.Errorf("no secret chat %s", chatID)
			}
			appCtx.Lifecycle.Attach()
			if err := appCtx.Lifecycle.Remove(chatID); err != nil {
				return err
			}
			appCtx.Lifecycle.Drain(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Secret chat %s removed.\n", chatID)
			return nil
		},
	}
}
