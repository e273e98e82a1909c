package cmd

import (
	"fmt"

	"github.com/agentic-research/blocklink/internal/toolchain"
	"github.com/agentic-research/blocklink/internal/vtree"
	"github.com/agentic-research/blocklink/internal/walker"
	"github.com/spf13/cobra"
)

func newInspectCmd(g *globals) *cobra.Command {
	var (
		expr string
		lint bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <state>",
		Short: "Print or lint the flattened tree without compiling it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadState(args[0])
			if err != nil {
				return err
			}
			if err := st.Validate(); err != nil {
				return err
			}
			tree := vtree.Flatten(st.FileSystem)
			out := cmd.OutOrStdout()

			if lint {
				for category, sub := range tree.All() {
					if _, ok := sub.(*vtree.Tree); !ok {
						continue
					}
					for unit := range walker.Walk(sub, category) {
						diags, err := toolchain.Lint(cmd.Context(), unit.Path, []byte(unit.Content))
						if err != nil {
							return fmt.Errorf("lint %s: %w", unit.Path, err)
						}
						for _, d := range diags {
							fmt.Fprintln(out, d)
						}
					}
				}
				return nil
			}

			if expr == "" {
				return writeJSON(out, tree)
			}
			matches, err := vtree.Select(tree, expr)
			if err != nil {
				return err
			}
			return writeJSON(out, matches)
		},
	}
	cmd.Flags().StringVarP(&expr, "select", "s", "", "JSONPath expression evaluated against the tree")
	cmd.Flags().BoolVar(&lint, "lint", false, "Report units with no exports or unresolvable imports")
	return cmd
}
