package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/agentic-research/blocklink/internal/ctxlog"
	"github.com/agentic-research/blocklink/internal/manifest"
	"github.com/dop251/goja"
)

// jsxPrelude builds the runtime object JSX compiles against. Elements are
// plain {type, props} records so hosts can inspect them from Go.
const jsxPrelude = `(function () {
  var Fragment = "#fragment";
  function h(type, props) {
    var p = {};
    if (props != null) {
      for (var k in props) {
        if (Object.prototype.hasOwnProperty.call(props, k)) p[k] = props[k];
      }
    }
    var children = Array.prototype.slice.call(arguments, 2);
    if (children.length === 1) p.children = children[0];
    else if (children.length > 1) p.children = children;
    return { type: type, props: p };
  }
  return { h: h, createElement: h, Fragment: Fragment };
})()`

// jsxModules are the specifiers require resolves to the JSX runtime.
var jsxModules = []string{"preact", "react", "@blocklink/jsx"}

// Runtime is the embedded toolchain: a tree-sitter gate, an esbuild transform
// and one goja VM that every module of the runtime is evaluated in.
// The VM is not reentrant; all access goes through mu.
type Runtime struct {
	profile Profile
	logger  *slog.Logger

	mu       sync.Mutex
	vm       *goja.Runtime
	require  goja.Value
	builtins map[string]goja.Value
}

// NewRuntime validates p, checks the transform works and prepares the VM.
func NewRuntime(ctx context.Context, p Profile) (*Runtime, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Version, err)
	}
	if _, err := transform(p, "probe.tsx", "export default () => <></>;\n"); err != nil {
		return nil, fmt.Errorf("transform probe: %w", err)
	}

	r := &Runtime{
		profile:  p,
		logger:   ctxlog.FromContext(ctx).With("component", "toolchain"),
		vm:       goja.New(),
		builtins: map[string]goja.Value{},
	}
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	jsx, err := r.vm.RunString(jsxPrelude)
	if err != nil {
		return nil, fmt.Errorf("jsx prelude: %w", err)
	}
	jsxObj := jsx.ToObject(r.vm)
	for _, name := range jsxModules {
		r.builtins[name] = jsxObj
	}
	if err := r.vm.Set(p.JSXFactory, jsxObj.Get("h")); err != nil {
		return nil, err
	}
	if err := r.vm.Set(p.JSXFragment, jsxObj.Get("Fragment")); err != nil {
		return nil, err
	}
	if err := r.vm.Set("console", r.console()); err != nil {
		return nil, err
	}
	r.require = r.vm.ToValue(r.requireFn)

	r.logger.Debug("Toolchain ready.", "profile", p.Version, "target", p.Target)
	return r, nil
}

// Profile returns the profile every unit of r is compiled under.
func (r *Runtime) Profile() Profile { return r.profile }

// Load compiles and evaluates one module.
func (r *Runtime) Load(ctx context.Context, path, source string) (manifest.Block, error) {
	if r.profile.SyntaxCheck {
		if err := checkSyntax(ctx, path, []byte(source)); err != nil {
			return nil, err
		}
	}
	code, err := transform(r.profile, path, source)
	if err != nil {
		return nil, err
	}
	prog, err := goja.Compile(path, "(function (exports, require, module) {\n"+code+"\n})", false)
	if err != nil {
		return nil, &CompileError{Path: path, Message: "compiled output rejected by runtime", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	release := r.interruptOn(ctx)
	defer release()

	wrapper, err := r.vm.RunProgram(prog)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("module wrapper is not a function")}
	}

	module := r.vm.NewObject()
	exports := r.vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if _, err := fn(goja.Undefined(), exports, r.require, module); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	out := module.Get("exports")
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("module.exports is %v", out)}
	}
	obj := out.ToObject(r.vm)
	names := obj.Keys()
	sort.Strings(names)

	return &Module{rt: r, path: path, exports: obj, names: names}, nil
}

// interruptOn interrupts the VM when ctx ends. Callers hold r.mu and must
// call the returned release once the VM is idle again.
func (r *Runtime) interruptOn(ctx context.Context) func() {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(context.Cause(ctx))
		close(done)
	})
	return func() {
		if !stop() {
			<-done
		}
		r.vm.ClearInterrupt()
	}
}

func (r *Runtime) requireFn(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	if mod, ok := r.builtins[name]; ok {
		return mod
	}
	panic(r.vm.NewGoError(fmt.Errorf("cannot find module %q", name)))
}

func (r *Runtime) console() *goja.Object {
	c := r.vm.NewObject()
	bind := func(name string, level slog.Level) {
		_ = c.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			r.logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "console")
			return goja.Undefined()
		})
	}
	bind("log", slog.LevelInfo)
	bind("info", slog.LevelInfo)
	bind("debug", slog.LevelDebug)
	bind("warn", slog.LevelWarn)
	bind("error", slog.LevelError)
	return c
}
