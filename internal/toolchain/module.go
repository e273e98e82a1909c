package toolchain

import (
	"context"
	"fmt"
	"slices"

	"github.com/dop251/goja"
)

// Module is a live block: the exports of one evaluated unit. Every access
// into the VM goes through the owning runtime's lock.
type Module struct {
	rt      *Runtime
	path    string
	exports *goja.Object
	names   []string
}

// Path is the tree path the module was compiled from.
func (m *Module) Path() string { return m.path }

// Exports returns the exported names, sorted.
func (m *Module) Exports() []string { return slices.Clone(m.names) }

// Has reports whether name is exported.
func (m *Module) Has(name string) bool {
	_, ok := slices.BinarySearch(m.names, name)
	return ok
}

// Value exports a binding to a Go value.
func (m *Module) Value(name string) (any, bool) {
	if !m.Has(name) {
		return nil, false
	}
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	v := m.exports.Get(name)
	if v == nil {
		return nil, false
	}
	return v.Export(), true
}

// Call invokes an exported function with Go arguments and returns its result
// as a Go value. Cancelling ctx interrupts the running script.
func (m *Module) Call(ctx context.Context, name string, args ...any) (any, error) {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()

	fn, ok := goja.AssertFunction(m.exports.Get(name))
	if !ok {
		return nil, fmt.Errorf("%s: export %q is not a function", m.path, name)
	}

	release := m.rt.interruptOn(ctx)
	defer release()

	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = m.rt.vm.ToValue(a)
	}
	res, err := fn(goja.Undefined(), vals...)
	if err != nil {
		return nil, fmt.Errorf("call %s#%s: %w", m.path, name, err)
	}
	return res.Export(), nil
}
