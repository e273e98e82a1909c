package toolchain

import (
	"fmt"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
)

// Profile fixes how every unit of a runtime is compiled. Units compiled under
// one profile are link-compatible with each other.
type Profile struct {
	// Version tags the profile so hosts can tell snapshots apart.
	Version string
	// Target is the language tier emitted by the transform, e.g. "es2020".
	Target string
	// JSXFactory and JSXFragment name the globals JSX compiles to.
	JSXFactory  string
	JSXFragment string
	// SyntaxCheck runs the tree-sitter gate before transforming.
	SyntaxCheck bool
}

// DefaultProfile is the profile used by the shared toolchain.
func DefaultProfile() Profile {
	return Profile{
		Version:     "blocklink/1",
		Target:      "es2020",
		JSXFactory:  "h",
		JSXFragment: "Fragment",
		SyntaxCheck: true,
	}
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validate rejects profiles the runtime cannot honor.
func (p Profile) Validate() error {
	if _, ok := targets[p.Target]; !ok {
		return fmt.Errorf("unsupported target %q", p.Target)
	}
	if !identRe.MatchString(p.JSXFactory) {
		return fmt.Errorf("jsx factory %q is not an identifier", p.JSXFactory)
	}
	if !identRe.MatchString(p.JSXFragment) {
		return fmt.Errorf("jsx fragment %q is not an identifier", p.JSXFragment)
	}
	if p.JSXFactory == p.JSXFragment {
		return fmt.Errorf("jsx factory and fragment are both %q", p.JSXFactory)
	}
	return nil
}
