package cmd

import (
	"fmt"

	"github.com/agentic-research/blocklink/internal/ctxlog"
	"github.com/agentic-research/blocklink/internal/sourcestore"
	"github.com/agentic-research/blocklink/internal/vtree"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newBuildCmd(g *globals) *cobra.Command {
	var (
		dbPath    string
		emitState string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "build <state>",
		Short: "Run one build pass over a state file or directory",
		Long: `Build compiles every .ts and .tsx unit of the virtual tree and links the
results into a manifest. <state> is either a JSON document with a top-level
"fileSystem" array or a directory whose layout is the tree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := g.runBuild(ctx, args[0])
			if err != nil {
				return err
			}

			if dbPath != "" {
				store, err := sourcestore.Open(dbPath)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				if err := store.Save(ctx, res.SourceMap); err != nil {
					return err
				}
				ctxlog.FromContext(ctx).Info("Source map saved.", "db", dbPath, "entries", len(res.SourceMap))
			}

			if emitState != "" {
				if err := vtree.Export(osfs.New(emitState), ".", res.State); err != nil {
					return fmt.Errorf("emit state: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, summarize(res))
			}
			for _, key := range res.Manifest.Keys() {
				fmt.Fprintln(out, key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "sourcemap-db", "", "Persist the source map to this SQLite file")
	cmd.Flags().StringVar(&emitState, "emit-state", "", "Write the flattened tree to this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print blocks, exports and the source map as JSON")
	return cmd
}
