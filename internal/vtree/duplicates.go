package vtree

import (
	"errors"

	"github.com/agentic-research/blocklink/api"
)

// ErrDuplicateEntry marks a directory that declares the same name twice.
var ErrDuplicateEntry = errors.New("duplicate entry")

// Duplicates returns the paths of entries that a later sibling with the same
// name replaces during Flatten, in declaration order of the repeats.
func Duplicates(nodes []api.Node) []string {
	var out []string
	duplicates(nodes, "", &out)
	return out
}

// duplicates only descends into the last node declared for a name, since
// Flatten drops the subtrees of earlier ones.
func duplicates(nodes []api.Node, prefix string, out *[]string) {
	last := make(map[string]int, len(nodes))
	for i, n := range nodes {
		last[n.Name] = i
	}
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		p := n.Name
		if prefix != "" {
			p = prefix + "/" + n.Name
		}
		if seen[n.Name] {
			*out = append(*out, p)
		}
		seen[n.Name] = true
		if n.IsDir() && last[n.Name] == i {
			duplicates(n.Children, p, out)
		}
	}
}
