package manifest

import (
	"fmt"
	"maps"

	"github.com/agentic-research/blocklink/internal/walker"
)

// DuplicateKeyError is returned by a strict Builder when two units of one pass
// resolve to the same block key.
type DuplicateKeyError struct {
	Key       string
	FirstPath string
	Path      string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate block key %s: %s and %s", e.Key, e.FirstPath, e.Path)
}

// Collision records a block key written more than once within one pass.
// The later write won.
type Collision struct {
	Key          string `json:"key"`
	PreviousPath string `json:"previousPath"`
	Path         string `json:"path"`
}

// Builder accumulates one build pass. It is seeded from base values, copies a
// category the first time the pass writes to it, and never touches the bases.
// A Builder must not be used after Result.
type Builder struct {
	linker     Linker
	strict     bool
	manifest   Manifest
	sourceMap  SourceMap
	owned      map[string]bool
	written    map[string]string
	collisions []Collision
}

// NewBuilder starts a pass on top of base and baseSources.
func NewBuilder(namespace string, strict bool, base Manifest, baseSources SourceMap) *Builder {
	m := maps.Clone(base)
	if m == nil {
		m = Manifest{}
	}
	sm := maps.Clone(baseSources)
	if sm == nil {
		sm = SourceMap{}
	}
	return &Builder{
		linker:    Linker{Namespace: namespace},
		strict:    strict,
		manifest:  m,
		sourceMap: sm,
		owned:     map[string]bool{},
		written:   map[string]string{},
	}
}

// Ensure makes category present in the result even if no unit lands in it.
func (b *Builder) Ensure(category string) {
	if _, ok := b.manifest[category]; !ok {
		b.manifest[category] = map[string]Block{}
		b.owned[category] = true
	}
}

// Add binds block under the unit's key and returns the key.
func (b *Builder) Add(category string, unit walker.SourceUnit, block Block) (string, error) {
	key := Key(b.linker.Namespace, category, unit.Path)
	path := category + "/" + unit.Path

	if prev, dup := b.written[key]; dup {
		if b.strict {
			return key, &DuplicateKeyError{Key: key, FirstPath: prev, Path: path}
		}
		b.collisions = append(b.collisions, Collision{Key: key, PreviousPath: prev, Path: path})
	}
	b.written[key] = path

	if !b.owned[category] {
		b.manifest[category] = maps.Clone(b.manifest[category])
		if b.manifest[category] == nil {
			b.manifest[category] = map[string]Block{}
		}
		b.owned[category] = true
	}
	b.manifest[category][key] = block
	b.sourceMap[key] = SourceEntry{Path: path, Content: unit.Content}
	return key, nil
}

// Collisions lists keys overwritten within this pass, in write order.
func (b *Builder) Collisions() []Collision {
	return b.collisions
}

// Result hands over the accumulated snapshot.
func (b *Builder) Result() (Manifest, SourceMap) {
	return b.manifest, b.sourceMap
}
