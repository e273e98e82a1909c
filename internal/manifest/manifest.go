// Package manifest holds the block registry produced by a build pass: the
// manifest of live compiled blocks and the source map that records where each
// block came from.
package manifest

import (
	"maps"
	"sort"
	"strings"

	"github.com/agentic-research/blocklink/internal/walker"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "site"

// Block is a live compiled unit registered under a block key.
type Block interface {
	// Exports lists the names the unit exports.
	Exports() []string
}

// Manifest maps category -> block key -> block.
// A Manifest handed to a caller is never mutated again.
type Manifest map[string]map[string]Block

// SourceEntry records the tree path and text a block was built from.
type SourceEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SourceMap maps block key -> source entry.
type SourceMap map[string]SourceEntry

// Key derives the block key for a unit path found under category.
func Key(namespace, category, path string) string {
	return namespace + "/" + category + "/" + path
}

// SplitKey is the inverse of Key for a known namespace.
func SplitKey(namespace, key string) (category, path string, ok bool) {
	rest, found := strings.CutPrefix(key, namespace+"/")
	if !found {
		return "", "", false
	}
	category, path, found = strings.Cut(rest, "/")
	if !found || category == "" || path == "" {
		return "", "", false
	}
	return category, path, true
}

// Keys returns every block key in m, sorted.
func (m Manifest) Keys() []string {
	var keys []string
	for _, blocks := range m {
		for k := range blocks {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Categories returns the category names of m, sorted.
func (m Manifest) Categories() []string {
	cats := make([]string, 0, len(m))
	for c := range m {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Linker binds compiled units into manifest snapshots.
type Linker struct {
	Namespace string
}

// Link returns copies of m and sm with the unit's block bound under its key.
// m[category] is replaced by a copy; other categories are shared with m.
// Neither input is modified. An existing binding for the key is overwritten.
func (l Linker) Link(category string, unit walker.SourceUnit, block Block, m Manifest, sm SourceMap) (Manifest, SourceMap) {
	key := Key(l.Namespace, category, unit.Path)

	nm := maps.Clone(m)
	if nm == nil {
		nm = Manifest{}
	}
	blocks := maps.Clone(m[category])
	if blocks == nil {
		blocks = map[string]Block{}
	}
	blocks[key] = block
	nm[category] = blocks

	nsm := maps.Clone(sm)
	if nsm == nil {
		nsm = SourceMap{}
	}
	nsm[key] = SourceEntry{Path: category + "/" + unit.Path, Content: unit.Content}
	return nm, nsm
}
