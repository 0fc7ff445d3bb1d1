package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, then keep the stores flushed until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := appCtx.Start(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %d on %s.\n", res.UserID, appCtx.Engine.WorkingShard())
			fmt.Fprintf(out, "Restored %d secret chat(s); %d new message(s), %d dialog(s), %d contact(s).\n",
				res.ChatsRestored, res.Difference.Messages, len(res.Dialogs), len(res.Contacts))
			for _, chat := range appCtx.Lifecycle.Pending() {
				fmt.Fprintf(out, "Secret chat %s from %d is waiting for a decision.\n", chat.ID, chat.AdminID)
			}

			if once {
				return appCtx.Lifecycle.Flush(context.WithoutCancel(ctx))
			}
			return appCtx.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "flush and exit after login instead of staying connected")
	return cmd
}
