package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tgstate/internal/crypto"
	"tgstate/internal/domain"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print shards, the update cursor and secret chats from the stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := appCtx.Restore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			eng := appCtx.Engine

			fmt.Fprintf(out, "State dir: %s\n", appCtx.Config.StateDir())
			if !res.AuthRestored {
				fmt.Fprintln(out, "Not logged in; built-in shard table shown.")
			} else {
				fmt.Fprintf(out, "User: %d\n", res.UserID)
			}
			fmt.Fprintf(out, "Working shard: %s\n\n", eng.WorkingShard())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SHARD\tENDPOINT\tKEY\tSIGNED")
			for _, sh := range eng.Shards() {
				key := "-"
				if sh.HasKey {
					key = fmt.Sprintf("%016x", uint64(sh.KeyID))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", sh.ID, sh.Endpoint(), key, sh.Signed)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			c := eng.Cursor()
			fmt.Fprintf(out, "\nCursor: pts=%d qts=%d seq=%d date=%d\n\n", c.Pts, c.Qts, c.Seq, c.Date)
			return printChats(out, eng.SecretChats(), eng.OurID())
		},
	}
}

func printChats(out io.Writer, chats []domain.SecretChat, ourID domain.UserID) error {
	if len(chats) == 0 {
		fmt.Fprintln(out, "No secret chats.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPEER\tNAME\tSTATE\tLAYER\tSEQ IN/OUT\tKEY\tDIGEST")
	for _, c := range chats {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%d/%d\t%s\t%s\n",
			c.ID, c.Peer(ourID), c.Name, c.State, c.Layer, c.InSeq, c.OutSeq,
			crypto.Fingerprint(c.Key[:]), c.Digest)
	}
	return tw.Flush()
}
