package sagactl

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
	"github.com/spf13/cobra"
)

func newLogCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log <saga-id>",
		Short: "Print the saga log of one checkout attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := opts.open(cmd.Context(), opts.DSN)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closeFn()

			var entries []saga.Entry
			err = store.WithinTx(cmd.Context(), func(ctx context.Context, tx marketplace.Tx) error {
				entries, err = tx.Entries(ctx, args[0])
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				if entries == nil {
					entries = []saga.Entry{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "No entries for saga: %s\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tSTEP\tSTATUS\tAT\tDATA")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Seq, e.Step, e.Status, e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), e.Data)
			}
			return tw.Flush()
		},
	}
}
