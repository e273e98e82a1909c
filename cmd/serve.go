package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/blocklink/internal/ctxlog"
	"github.com/agentic-research/blocklink/internal/sourcestore"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <db>",
		Short: "Serve a persisted source map over MCP on stdio",
		Long: `Serve exposes the source map saved by "build --sourcemap-db" to MCP clients.
Tools: list_blocks (optional prefix) and block_source (key).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sourcestore.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctxlog.FromContext(cmd.Context()).Info("Serving source map over stdio.", "db", args[0])
			return server.ServeStdio(newSourceServer(store))
		},
	}
}

// sourceTools answers MCP tool calls from a source store.
type sourceTools struct {
	store *sourcestore.Store
}

func newSourceServer(store *sourcestore.Store) *server.MCPServer {
	t := &sourceTools{store: store}
	s := server.NewMCPServer("blocklink", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List block keys that have recorded source, sorted."),
		mcp.WithString("prefix", mcp.Description("Only keys starting with this prefix, e.g. site/loaders/")),
	), t.listBlocks)

	s.AddTool(mcp.NewTool("block_source",
		mcp.WithDescription("Return the path and source text a block was compiled from."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Block key, e.g. site/loaders/user.ts")),
	), t.blockSource)

	return s
}

func (t *sourceTools) listBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys, err := t.store.Keys(ctx, req.GetString("prefix", ""))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
}

func (t *sourceTools) blockSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := t.store.Lookup(ctx, key)
	if errors.Is(err, sourcestore.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no source recorded for %q", key)), nil
	}
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
