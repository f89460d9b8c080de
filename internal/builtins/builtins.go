// Package builtins implements spec.md §4.5's builtin registry: an
// immutable, name-keyed table of host-provided functions the compiler
// recognizes instead of emitting a user-defined call, and the VM
// dispatches without pushing a call frame. display* builtins write
// through the VM's output sink rather than returning a value.
package builtins

import (
	"fmt"

	"github.com/ribbc/ribbon/internal/value"
)

// Sink receives builtin output; the CLI wires this to stdout, tests wire
// it to a buffer. Kept as a narrow interface rather than an io.Writer so
// callers need not format the value themselves.
type Sink interface {
	Write(s string)
}

// Entry is one builtin's arity and handler.
type Entry struct {
	Arity   int
	Handler func(sink Sink, args []value.Value) value.Value
}

// registry is built once at package init and never mutated afterward —
// "immutable" per spec.md §4.5.
var registry = map[string]Entry{
	"displayi32": {
		Arity: 1,
		Handler: func(sink Sink, args []value.Value) value.Value {
			sink.Write(fmt.Sprintf("%d", args[0].AsI32()))
			return value.Unit()
		},
	},
	"displayu32": {
		Arity: 1,
		Handler: func(sink Sink, args []value.Value) value.Value {
			sink.Write(fmt.Sprintf("%d", args[0].AsU32()))
			return value.Unit()
		},
	},
	"displaybool": {
		Arity: 1,
		Handler: func(sink Sink, args []value.Value) value.Value {
			sink.Write(fmt.Sprintf("%t", args[0].AsBool()))
			return value.Unit()
		},
	},
}

// Lookup returns the named builtin, if any.
func Lookup(name string) (Entry, bool) {
	e, ok := registry[name]
	return e, ok
}

// IsBuiltin reports whether name is a registered builtin — the compiler
// consults this to choose between a CALL to user bytecode and an
// inline builtin dispatch.
func IsBuiltin(name string) bool {
	_, ok := registry[name]
	return ok
}
