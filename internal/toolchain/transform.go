package toolchain

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// transform lowers one TypeScript/TSX module to CommonJS under p.
func transform(p Profile, path, source string) (string, error) {
	loader := api.LoaderTS
	if strings.HasSuffix(path, ".tsx") {
		loader = api.LoaderTSX
	}

	res := api.Transform(source, api.TransformOptions{
		Loader:      loader,
		Target:      targets[p.Target],
		Format:      api.FormatCommonJS,
		JSX:         api.JSXTransform,
		JSXFactory:  p.JSXFactory,
		JSXFragment: p.JSXFragment,
		Sourcefile:  path,
		LogLevel:    api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		msg := res.Errors[0]
		ce := &CompileError{Path: path, Message: msg.Text}
		if msg.Location != nil {
			ce.Line = msg.Location.Line
			ce.Column = msg.Location.Column + 1
		}
		return "", ce
	}
	return string(res.Code), nil
}
