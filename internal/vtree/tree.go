// Package vtree flattens the caller-supplied virtual tree into a
// path-addressable structure that keeps the order entries were declared in.
package vtree

import (
	"iter"
	"strings"

	"github.com/agentic-research/blocklink/api"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Tree is one flattened directory. Each entry maps a name to either a nested
// *Tree (directory) or a string (file content). Iteration follows insertion order.
type Tree struct {
	entries *orderedmap.OrderedMap[string, any]
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{entries: orderedmap.New[string, any]()}
}

// Flatten converts an ordered node list into a Tree. The input is not modified.
// When a directory lists the same name twice, the later node's value is kept at
// the position of the first.
func Flatten(nodes []api.Node) *Tree {
	t := New()
	for _, n := range nodes {
		if n.IsDir() {
			t.Set(n.Name, Flatten(n.Children))
			continue
		}
		t.Set(n.Name, n.Content)
	}
	return t
}

// Set binds name to v, which must be a *Tree or a string.
func (t *Tree) Set(name string, v any) {
	switch v.(type) {
	case *Tree, string:
	default:
		panic("vtree: value must be *Tree or string")
	}
	t.entries.Set(name, v)
}

// Get returns the entry bound to name.
func (t *Tree) Get(name string) (any, bool) {
	return t.entries.Get(name)
}

// Len returns the number of direct entries.
func (t *Tree) Len() int {
	return t.entries.Len()
}

// Names returns entry names in stored order.
func (t *Tree) Names() []string {
	names := make([]string, 0, t.entries.Len())
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// All yields entries in stored order.
func (t *Tree) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Lookup resolves a slash-separated path below t.
func (t *Tree) Lookup(path string) (any, bool) {
	var cur any = t
	for _, seg := range splitPath(path) {
		dir, ok := cur.(*Tree)
		if !ok {
			return nil, false
		}
		if cur, ok = dir.Get(seg); !ok {
			return nil, false
		}
	}
	return cur, true
}

// Equal reports whether t and o hold the same entries in the same order.
func (t *Tree) Equal(o *Tree) bool {
	if t.Len() != o.Len() {
		return false
	}
	a, b := t.entries.Oldest(), o.entries.Oldest()
	for ; a != nil && b != nil; a, b = a.Next(), b.Next() {
		if a.Key != b.Key {
			return false
		}
		switch av := a.Value.(type) {
		case string:
			if bv, ok := b.Value.(string); !ok || av != bv {
				return false
			}
		case *Tree:
			if bv, ok := b.Value.(*Tree); !ok || !av.Equal(bv) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the tree as a JSON object with keys in stored order.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return t.entries.MarshalJSON()
}

// ToMap converts the tree into plain nested maps, dropping order. Used for
// JSONPath queries, which operate on generic data.
func (t *Tree) ToMap() map[string]any {
	out := make(map[string]any, t.Len())
	for name, v := range t.All() {
		if sub, ok := v.(*Tree); ok {
			out[name] = sub.ToMap()
			continue
		}
		out[name] = v
	}
	return out
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}
