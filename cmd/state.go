package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/agentic-research/blocklink/api"
	"github.com/agentic-research/blocklink/internal/build"
	"github.com/agentic-research/blocklink/internal/manifest"
	"github.com/agentic-research/blocklink/internal/toolchain"
	"github.com/agentic-research/blocklink/internal/vtree"
	"github.com/go-git/go-billy/v5/osfs"
)

// loadState reads application state from a JSON document or, when path is a
// directory, imports the directory itself as the virtual tree.
func loadState(path string) (api.State, error) {
	info, err := os.Stat(path)
	if err != nil {
		return api.State{}, err
	}
	if info.IsDir() {
		nodes, err := vtree.Import(osfs.New(path), ".")
		if err != nil {
			return api.State{}, fmt.Errorf("import %s: %w", path, err)
		}
		return api.State{FileSystem: nodes}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return api.State{}, err
	}
	var st api.State
	if err := json.Unmarshal(data, &st); err != nil {
		return api.State{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return st, nil
}

// runBuild loads state from path and runs one pass with the configured toolchain.
func (g *globals) runBuild(ctx context.Context, path string) (*build.Result, error) {
	return g.runBuildOn(ctx, path, manifest.Snapshot{})
}

// runBuildOn runs one pass on top of base. base is left untouched.
func (g *globals) runBuildOn(ctx context.Context, path string, base manifest.Snapshot) (*build.Result, error) {
	st, err := loadState(path)
	if err != nil {
		return nil, err
	}
	o := build.New(toolchain.NewCompiler(g.toolchainCell()), build.Config{
		Namespace: g.cfg.Namespace,
		Strict:    g.cfg.Strict,
	})
	return o.Build(ctx, st, base.Manifest, base.SourceMap)
}

// writeJSON pretty-prints v followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// summary is the machine-readable form of a pass printed by build --json.
type summary struct {
	Blocks     map[string][]string  `json:"blocks"`
	SourceMap  manifest.SourceMap   `json:"sourceMap"`
	Shadowed   []string             `json:"shadowed,omitempty"`
	Collisions []manifest.Collision `json:"collisions,omitempty"`
	Exports    map[string][]string  `json:"exports"`
}

func summarize(res *build.Result) summary {
	s := summary{
		Blocks:     make(map[string][]string),
		SourceMap:  res.SourceMap,
		Shadowed:   res.Shadowed,
		Collisions: res.Collisions,
		Exports:    make(map[string][]string),
	}
	for _, category := range res.Manifest.Categories() {
		keys := slices.Sorted(maps.Keys(res.Manifest[category]))
		if keys == nil {
			keys = []string{}
		}
		s.Blocks[category] = keys
		for _, key := range keys {
			s.Exports[key] = res.Manifest[category][key].Exports()
		}
	}
	return s
}
