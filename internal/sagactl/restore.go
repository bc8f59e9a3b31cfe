package sagactl

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
	"github.com/spf13/cobra"
)

func newRestoreCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <saga-id>",
		Short: "Give back the stock a saga reserved, unless it was already restored",
		Long: `Runs compensate_stock for a saga whose process died before compensating.

The quantities come from the saga's latest reserve_stock entry. Running it
twice is safe: the second run sees the compensate_stock entry and does nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := opts.open(cmd.Context(), opts.DSN)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closeFn()

			res, err := marketplace.RestoreSaga(cmd.Context(), store, saga.NewRunner(nil), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return json.NewEncoder(out).Encode(res)
			}
			if res.Skipped != "" {
				fmt.Fprintf(out, "saga %s: nothing to do (%s)\n", args[0], res.Skipped)
				return nil
			}
			for _, it := range res.Items {
				fmt.Fprintf(out, "product %d: +%d (stock now %d)\n", it.ProductID, it.Quantity, it.ResultingStock)
			}
			return nil
		},
	}
}
