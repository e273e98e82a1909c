package vtree

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Select runs a JSONPath expression against the tree and returns the matches.
// Directories match as plain maps, files as their content string.
func Select(t *Tree, expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	return x.Get(t.ToMap()), nil
}
