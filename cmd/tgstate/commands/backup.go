package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tgstate/internal/store"
)

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Seal the stores into a passphrase-protected file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := readPassphrase(cmd, true)
			if err != nil {
				return err
			}
			sealed, n, err := store.SealBackup(appCtx.Config.StateDir(), pass)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], sealed, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sealed %d store file(s) into %s.\n", n, args[0])
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Unseal a backup into the state directory, replacing its stores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			pass, err := readPassphrase(cmd, false)
			if err != nil {
				return err
			}
			n, err := store.OpenBackup(appCtx.Config.StateDir(), pass, sealed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d store file(s) into %s.\n", n, appCtx.Config.StateDir())
			return nil
		},
	}
}

func readPassphrase(cmd *cobra.Command, confirm bool) (string, error) {
	pass, err := terminal.Passphrase(cmd.Context(), "Backup passphrase: ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", fmt.Errorf("passphrase required")
	}
	if confirm {
		again, err := terminal.Passphrase(cmd.Context(), "Repeat passphrase: ")
		if err != nil {
			return "", err
		}
		if again != pass {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return pass, nil
}
