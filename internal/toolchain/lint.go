package toolchain

import (
	"context"
	"fmt"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Diagnostic is one advisory finding about a source unit. Diagnostics never
// fail a build.
type Diagnostic struct {
	Path string
	// Line is 1-based. Zero means the finding concerns the whole unit.
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Path, d.Message)
	}
	return fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Message)
}

const lintQuery = `
	(export_statement) @export
	(import_statement source: (string) @source) @import
`

// Lint checks a unit for things that load fine but are probably mistakes:
// no export statement at all, or a value import the runtime cannot resolve.
func Lint(ctx context.Context, path string, source []byte) ([]Diagnostic, error) {
	lang := languageForPath(path)
	if lang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}

	q, err := sitter.NewQuery([]byte(lintQuery), lang)
	if err != nil {
		return nil, err
	}
	qc := sitter.NewQueryCursor()
	qc.Exec(q, tree.RootNode())

	var diags []Diagnostic
	exports := 0
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var stmt, src *sitter.Node
		for _, c := range m.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "export":
				exports++
			case "import":
				stmt = c.Node
			case "source":
				src = c.Node
			}
		}
		if stmt == nil || src == nil || typeOnly(stmt) {
			continue
		}
		specifier := strings.Trim(src.Content(source), "\"'`")
		if !slices.Contains(jsxModules, specifier) {
			diags = append(diags, Diagnostic{
				Path:    path,
				Line:    int(src.StartPoint().Row) + 1,
				Message: fmt.Sprintf("import %q cannot be resolved at load time", specifier),
			})
		}
	}

	if exports == 0 {
		diags = append(diags, Diagnostic{Path: path, Message: "no export statement, block will have no exports"})
	}
	return diags, nil
}

// typeOnly reports whether an import statement is `import type ...`, which
// the transform erases.
func typeOnly(stmt *sitter.Node) bool {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		if stmt.Child(i).Type() == "type" {
			return true
		}
	}
	return false
}
