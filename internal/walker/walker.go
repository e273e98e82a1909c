// Package walker turns a flattened tree into the sequence of source units a
// build pass compiles.
package walker

import (
	"iter"
	"strings"

	"github.com/agentic-research/blocklink/internal/vtree"
)

// SourceExtensions are the suffixes the toolchain accepts as modules.
var SourceExtensions = []string{".ts", ".tsx"}

// SourceUnit is one compilable leaf.
type SourceUnit struct {
	// Path is slash-joined and relative to the walk root, without a leading slash.
	Path    string
	Content string
}

// IsSource reports whether path ends in a recognized source suffix.
func IsSource(path string) bool {
	for _, ext := range SourceExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Walk yields the source units below v depth first, in stored entry order.
// v is a *vtree.Tree or a file content string; rootPath is the path of v.
// Leaves without a source suffix are skipped. The sequence holds no state of
// its own, so ranging over it again repeats the same traversal.
func Walk(v any, rootPath string) iter.Seq[SourceUnit] {
	return func(yield func(SourceUnit) bool) {
		walk(v, rootPath, yield)
	}
}

// walk returns false once yield asked to stop.
func walk(v any, rootPath string, yield func(SourceUnit) bool) bool {
	switch val := v.(type) {
	case string:
		if !IsSource(rootPath) {
			return true
		}
		return yield(SourceUnit{Path: rootPath, Content: val})
	case *vtree.Tree:
		for name, child := range val.All() {
			if !walk(child, join(rootPath, name), yield) {
				return false
			}
		}
	}
	return true
}

func join(rootPath, name string) string {
	if rootPath == "" {
		return name
	}
	return rootPath + "/" + name
}
