package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentic-research/blocklink/internal/ctxlog"
	"github.com/agentic-research/blocklink/internal/manifest"
	"github.com/agentic-research/blocklink/internal/toolchain"
	"github.com/spf13/cobra"
)

func newCallCmd(g *globals) *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "call <state> <block-key> <export> [json-args...]",
		Short: "Build, then invoke an export of one block",
		Long: `Call runs a build pass, installs the result into a registry, resolves
<block-key> and calls <export> with the given arguments. Each argument is
decoded as JSON; an argument that is not valid JSON is passed as a string.

With --base, the base state is built and installed first and <state> is built
on top of it. The registry only switches to the new snapshot if that pass
succeeds.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := ctxlog.FromContext(ctx)
			reg := manifest.NewRegistry(g.cfg.Namespace, manifest.Snapshot{})

			if basePath != "" {
				base, err := g.runBuild(ctx, basePath)
				if err != nil {
					return fmt.Errorf("base state: %w", err)
				}
				reg.Swap(base.Snapshot())
				logger.Info("Base installed.", "categories", reg.Categories())
			}

			res, err := g.runBuildOn(ctx, args[0], reg.Current())
			if err != nil {
				return err
			}
			reg.Swap(res.Snapshot())
			logger.Info("Snapshot installed.", "categories", reg.Categories())

			key, export := args[1], args[2]
			blk, ok := reg.Resolve(key)
			if !ok {
				return fmt.Errorf("no block %q; known blocks: %s", key, strings.Join(reg.Keys(), ", "))
			}
			mod, ok := blk.(*toolchain.Module)
			if !ok {
				return fmt.Errorf("block %q is not callable", key)
			}

			callArgs := make([]any, 0, len(args)-3)
			for _, raw := range args[3:] {
				var v any
				if err := json.Unmarshal([]byte(raw), &v); err != nil {
					v = raw
				}
				callArgs = append(callArgs, v)
			}

			out, err := mod.Call(ctx, export, callArgs...)
			if err != nil {
				if src, ok := reg.Source(key); ok {
					logger.Error("Call failed.", "key", key, "path", src.Path, "error", err)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&basePath, "base", "", "State built and installed before <state>")
	return cmd
}
