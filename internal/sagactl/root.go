package sagactl

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/spf13/cobra"
)

// Opener returns the store a command works on and a func to release it.
type Opener func(ctx context.Context, dsn string) (marketplace.Store, func(), error)

type RootOptions struct {
	DSN    string
	Format string // "text" | "json"
	open   Opener
}

func NewRootCommand(open Opener, defaultDSN string) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "sagactl",
		Short: "Inspect and repair checkout sagas",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", defaultDSN, "postgres DSN")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newLogCommand(opts))
	cmd.AddCommand(newRestoreCommand(opts))
	return cmd
}
