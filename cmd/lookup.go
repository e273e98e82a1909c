package cmd

import (
	"fmt"

	"github.com/agentic-research/blocklink/internal/sourcestore"
	"github.com/spf13/cobra"
)

func newLookupCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lookup <db> <block-key>",
		Short: "Print the source a block was compiled from",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sourcestore.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entry, err := store.Lookup(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entry)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), entry.Content)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the path and content as JSON")
	return cmd
}
