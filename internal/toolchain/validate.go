package toolchain

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// checkSyntax parses source with tree-sitter and returns a *CompileError
// pointing at the first ERROR or MISSING node.
func checkSyntax(ctx context.Context, path string, source []byte) error {
	lang := languageForPath(path)
	if lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return &CompileError{Path: path, Message: "tree-sitter parse failed", Err: err}
	}
	root := tree.RootNode()
	if root == nil {
		return &CompileError{Path: path, Message: "tree-sitter returned nil root"}
	}
	if !root.HasError() {
		return nil
	}

	if n := findFirstError(root); n != nil {
		msg := "syntax error"
		if n.IsMissing() {
			msg = "missing " + n.Type()
		}
		return &CompileError{
			Path:    path,
			Line:    int(n.StartPoint().Row) + 1,
			Column:  int(n.StartPoint().Column) + 1,
			Message: msg,
		}
	}
	return &CompileError{Path: path, Message: "syntax tree contains errors"}
}

// findFirstError does a depth-first search for the first ERROR or MISSING node.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := findFirstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

// languageForPath picks the grammar: TSX needs its own to accept JSX.
func languageForPath(path string) *sitter.Language {
	switch {
	case strings.HasSuffix(path, ".tsx"):
		return tsx.GetLanguage()
	case strings.HasSuffix(path, ".ts"):
		return typescript.GetLanguage()
	default:
		return nil
	}
}
