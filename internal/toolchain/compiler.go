// Package toolchain compiles TypeScript and TSX source units into live
// modules. The embedded toolchain is expensive to start and is not reentrant,
// so it lives in a shared Cell that initializes it once per process and a
// Runtime that serializes every evaluation.
package toolchain

import (
	"context"

	"github.com/agentic-research/blocklink/internal/manifest"
	"github.com/agentic-research/blocklink/internal/walker"
)

// Engine turns one module's source into a live block.
type Engine interface {
	Load(ctx context.Context, path, source string) (manifest.Block, error)
}

var shared = NewCell(func(ctx context.Context) (Engine, error) {
	rt, err := NewRuntime(ctx, DefaultProfile())
	if err != nil {
		return nil, err
	}
	return rt, nil
})

// Shared returns the process-wide cell holding the default runtime.
func Shared() *Cell[Engine] { return shared }

// ForProfile returns a cell that starts a runtime for p on first use.
func ForProfile(p Profile) *Cell[Engine] {
	return NewCell(func(ctx context.Context) (Engine, error) {
		rt, err := NewRuntime(ctx, p)
		if err != nil {
			return nil, err
		}
		return rt, nil
	})
}

// Compiler compiles units with the engine held by a cell.
type Compiler struct {
	cell *Cell[Engine]
}

// NewCompiler returns a compiler backed by cell. Pass Shared() for the
// process-wide toolchain.
func NewCompiler(cell *Cell[Engine]) *Compiler {
	return &Compiler{cell: cell}
}

// Compile waits for the toolchain, then loads unit. unit.Path should be the
// full tree path so diagnostics point at the tree entry.
func (c *Compiler) Compile(ctx context.Context, unit walker.SourceUnit) (manifest.Block, error) {
	eng, err := c.cell.Get(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Load(ctx, unit.Path, unit.Content)
}
