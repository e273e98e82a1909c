package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNode is returned when a virtual tree node is neither a well-formed
// directory nor a well-formed file.
var ErrInvalidNode = errors.New("invalid virtual tree node")

// Kind tells whether a Node is a directory or a file.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindFile      Kind = "file"
)

// State is the application state handed to a build pass by the host.
// Only the shape of FileSystem matters to the build.
type State struct {
	// FileSystem is the ordered list of top-level nodes. Each top-level
	// directory is a block category.
	FileSystem []Node `json:"fileSystem"`
}

// Node is one entry of the virtual tree.
// A directory carries ordered Children, a file carries Content. Never both.
type Node struct {
	// Name of the entry within its parent directory. One path segment:
	// non-empty, no '/', not "." or "..".
	Name string `json:"name"`
	// Kind selects which of Children or Content is meaningful.
	Kind Kind `json:"kind"`
	// Children of a directory, in traversal order.
	Children []Node `json:"children,omitempty"`
	// Content of a file, kept byte for byte.
	Content string `json:"content,omitempty"`
}

// Dir builds a directory node.
func Dir(name string, children ...Node) Node {
	return Node{Name: name, Kind: KindDirectory, Children: children}
}

// File builds a file node.
func File(name, content string) Node {
	return Node{Name: name, Kind: KindFile, Content: content}
}

// IsDir reports whether n is a directory.
func (n Node) IsDir() bool { return n.Kind == KindDirectory }

// Validate checks n and all of its descendants.
func (n Node) Validate() error {
	switch {
	case n.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidNode)
	case n.Name == "." || n.Name == "..":
		return fmt.Errorf("%w: reserved name %q", ErrInvalidNode, n.Name)
	case strings.Contains(n.Name, "/"):
		return fmt.Errorf("%w: name %q contains '/'", ErrInvalidNode, n.Name)
	}
	switch n.Kind {
	case KindDirectory:
		if n.Content != "" {
			return fmt.Errorf("%w: directory %q has content", ErrInvalidNode, n.Name)
		}
		for _, c := range n.Children {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("in %s: %w", n.Name, err)
			}
		}
	case KindFile:
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: file %q has children", ErrInvalidNode, n.Name)
		}
	default:
		return fmt.Errorf("%w: %q has unknown kind %q", ErrInvalidNode, n.Name, n.Kind)
	}
	return nil
}

// Validate checks every node of the state.
func (s State) Validate() error {
	for _, n := range s.FileSystem {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	return nil
}
