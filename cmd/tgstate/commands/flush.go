package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"tgstate/internal/store"
)

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Rewrite every store in the current format",
		Long: "Loads the auth, cursor and secret-chat stores and writes them back.\n" +
			"Secret chat files written by older versions are upgraded in the process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := appCtx.Restore()
			if err != nil {
				return err
			}
			eng := appCtx.Engine
			out := cmd.OutOrStdout()

			if res.AuthRestored {
				if err := appCtx.Auth.SaveAuth(store.SnapshotAuth(eng)); err != nil {
					return err
				}
				fmt.Fprintln(out, "auth: rewritten")
			} else {
				fmt.Fprintln(out, "auth: not logged in, skipped")
			}
			if err := appCtx.Cursor.SaveCursor(eng.Cursor()); err != nil {
				return err
			}
			fmt.Fprintln(out, "state: rewritten")
			n, err := appCtx.Secrets.SaveSecretChats(eng.SecretChats())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "secret: rewritten with %d chat(s)\n", n)
			return nil
		},
	}
}
