package toolchain

import "fmt"

// CompileError means a unit's source is not valid under the build profile.
type CompileError struct {
	Path    string
	Line    int // 1-based, 0 when unknown
	Column  int // 1-based, 0 when unknown
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("compile %s: %s", e.Path, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

// LoadError means compiled output could not be instantiated as a live module.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InitializationError means the shared toolchain failed to start. The cell
// that produced it stays failed for the life of the process.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("toolchain initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
