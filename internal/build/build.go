// Package build runs a build pass: it flattens the host's virtual tree,
// compiles every source unit in traversal order and links the results into a
// new manifest and source map on top of the host's base values.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/agentic-research/blocklink/api"
	"github.com/agentic-research/blocklink/internal/ctxlog"
	"github.com/agentic-research/blocklink/internal/manifest"
	"github.com/agentic-research/blocklink/internal/vtree"
	"github.com/agentic-research/blocklink/internal/walker"
)

// Compiler turns one source unit into a live block.
type Compiler interface {
	Compile(ctx context.Context, unit walker.SourceUnit) (manifest.Block, error)
}

// Result is the owned output of a successful pass.
type Result struct {
	Manifest  manifest.Manifest
	SourceMap manifest.SourceMap
	// State is the flattened input tree, exposed for introspection.
	State *vtree.Tree
	// Shadowed lists tree paths a later sibling of the same name replaced.
	Shadowed []string
	// Collisions lists keys written more than once in this pass.
	Collisions []manifest.Collision
}

// Snapshot returns the part of r a registry installs.
func (r *Result) Snapshot() manifest.Snapshot {
	return manifest.Snapshot{Manifest: r.Manifest, SourceMap: r.SourceMap}
}

// Config selects the namespace and duplicate policy of a pass.
type Config struct {
	// Namespace prefixes every block key. Empty means manifest.DefaultNamespace.
	Namespace string
	// Strict makes a repeated tree entry or block key fail the pass instead
	// of letting the later one win.
	Strict bool
}

// Orchestrator wires flattening, walking, compiling and linking.
type Orchestrator struct {
	compiler  Compiler
	namespace string
	strict    bool
}

// New returns an orchestrator compiling with c.
func New(c Compiler, cfg Config) *Orchestrator {
	ns := cfg.Namespace
	if ns == "" {
		ns = manifest.DefaultNamespace
	}
	return &Orchestrator{compiler: c, namespace: ns, strict: cfg.Strict}
}

// Build runs one pass. Categories are processed in input order and units in
// walker order, one at a time. On any error the pass is abandoned and no
// partial result is returned; base and baseSources are never modified.
func (o *Orchestrator) Build(ctx context.Context, state api.State, base manifest.Manifest, baseSources manifest.SourceMap) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("namespace", o.namespace)
	start := time.Now()

	if err := state.Validate(); err != nil {
		logger.Error("Build rejected invalid state.", "error", err)
		return nil, err
	}

	shadowed := vtree.Duplicates(state.FileSystem)
	for _, p := range shadowed {
		if o.strict {
			err := fmt.Errorf("%w: %s", vtree.ErrDuplicateEntry, p)
			logger.Error("Build rejected state.", "error", err)
			return nil, err
		}
		logger.Warn("Tree entry declared twice, later entry wins.", "path", p)
	}

	tree := vtree.Flatten(state.FileSystem)
	b := manifest.NewBuilder(o.namespace, o.strict, base, baseSources)
	logger.Info("Build pass started.", "categories", tree.Len())

	units := 0
	for category, sub := range tree.All() {
		if _, ok := sub.(*vtree.Tree); !ok {
			logger.Debug("Skipping top-level file, not a category.", "name", category)
			continue
		}
		b.Ensure(category)

		for unit := range walker.Walk(sub, "") {
			if err := ctx.Err(); err != nil {
				logger.Warn("Build pass cancelled.", "category", category, "linked", units)
				return nil, err
			}

			path := category + "/" + unit.Path
			blk, err := o.compiler.Compile(ctx, walker.SourceUnit{Path: path, Content: unit.Content})
			if err != nil {
				logger.Error("Build pass failed.", "path", path, "error", err)
				return nil, err
			}

			key, err := b.Add(category, unit, blk)
			if err != nil {
				logger.Error("Build pass failed.", "path", path, "error", err)
				return nil, err
			}
			units++
			logger.Debug("Linked block.", "key", key, "exports", blk.Exports())
		}
	}

	for _, c := range b.Collisions() {
		logger.Warn("Block key written twice, later unit wins.", "key", c.Key, "previous", c.PreviousPath, "path", c.Path)
	}

	m, sm := b.Result()
	logger.Info("Build pass finished.", "blocks", units, "collisions", len(b.Collisions()), "duration", time.Since(start))
	return &Result{
		Manifest:   m,
		SourceMap:  sm,
		State:      tree,
		Shadowed:   shadowed,
		Collisions: b.Collisions(),
	}, nil
}
