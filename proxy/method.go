package proxy

import (
	"reflect"
	"strings"
)

// Invoker performs the terminal call of an interception chain.
//
// Generated code supplies one Invoker per method. target is either the resolved
// proxy target or the proxy itself (bridged methods); args are the packed call
// arguments in declaration order.
type Invoker func(target any, args []any) (any, error)

// ExecutableMethod describes one intercepted method of a generated proxy.
type ExecutableMethod struct {
	// Declaring is the name of the type that declares the method.
	Declaring string

	// Name is the method name.
	Name string

	// ArgumentTypes are the concrete argument types as written in Go.
	ArgumentTypes []string

	// GenericArgumentTypes are the declared argument types when the method comes
	// from a generic declaration (e.g. "T"). Nil when identical to ArgumentTypes.
	GenericArgumentTypes []string

	// ReturnTypes are the declared result types.
	ReturnTypes []string

	// Bindings are the bindings that apply to this method, type-level included.
	Bindings BindingSet

	// Abstract is true when no implementation backs the method.
	// Proceeding past the last interceptor of an abstract method yields UnimplementedError.
	Abstract bool

	// Invoke performs the terminal call. Nil for abstract methods.
	Invoke Invoker
}

// Signature renders the method as "Declaring.Name(a, b) (r)".
func (m *ExecutableMethod) Signature() string {
	var sb strings.Builder
	if m.Declaring != "" {
		sb.WriteString(m.Declaring)
		sb.WriteByte('.')
	}
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(m.ArgumentTypes, ", "))
	sb.WriteByte(')')
	switch len(m.ReturnTypes) {
	case 0:
	case 1:
		sb.WriteByte(' ')
		sb.WriteString(m.ReturnTypes[0])
	default:
		sb.WriteString(" (")
		sb.WriteString(strings.Join(m.ReturnTypes, ", "))
		sb.WriteByte(')')
	}
	return sb.String()
}

func (m *ExecutableMethod) matches(name string, argTypes []string) bool {
	if m.Name != name {
		return false
	}
	if equalStrings(m.ArgumentTypes, argTypes) {
		return true
	}
	return m.GenericArgumentTypes != nil && equalStrings(m.GenericArgumentTypes, argTypes)
}

// MethodTable is the executable-method table of a generated proxy type.
//
// Entries 0..N-1 are the intercepted method slots in slot order. Entries after
// that are delegating entries reachable only through Find.
type MethodTable struct {
	methods []*ExecutableMethod
}

// NewMethodTable builds a table. The table keeps the given pointers.
func NewMethodTable(methods ...*ExecutableMethod) *MethodTable {
	return &MethodTable{methods: methods}
}

// At returns the method at slot i. It panics if i is out of range, like a slice index.
func (t *MethodTable) At(i int) *ExecutableMethod { return t.methods[i] }

// Len returns the number of entries.
func (t *MethodTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.methods)
}

// All returns a copy of the entries.
func (t *MethodTable) All() []*ExecutableMethod {
	if t == nil {
		return nil
	}
	out := make([]*ExecutableMethod, len(t.methods))
	copy(out, t.methods)
	return out
}

// Find looks up a method by name and argument types.
//
// argTypes may be given in the concrete form or in the declared generic form;
// the first entry matching either is returned.
func (t *MethodTable) Find(name string, argTypes ...string) (*ExecutableMethod, bool) {
	if t == nil {
		return nil, false
	}
	for _, m := range t.methods {
		if m.matches(name, argTypes) {
			return m, true
		}
	}
	return nil, false
}

// Arg returns args[i] as T, or the zero T when the stored value is nil.
//
// A value of another type aborts the terminal call: Proceed reports it as a
// *WrongTypeError. Arg is meant for Invokers only.
func Arg[T any](args []any, i int) T {
	v, ok := args[i].(T)
	if !ok && args[i] != nil {
		panic(argMismatch{index: i, want: TypeOf[T]().String(), got: typeName(args[i])})
	}
	return v
}

// argMismatch is raised by Arg and recovered by the terminal call of an Invocation.
type argMismatch struct {
	index     int
	want, got string
}

// Result converts a chain result to T. nil gives the zero T; a value of another
// type gives a *WrongTypeError.
func Result[T any](v any) (T, error) {
	r, ok := v.(T)
	if !ok && v != nil {
		return r, &WrongTypeError{Value: "chain result", Want: TypeOf[T]().String(), Got: typeName(v)}
	}
	return r, nil
}

// MustResult is Result for methods without an error result: a mismatch panics.
func MustResult[T any](v any) T {
	r, err := Result[T](v)
	if err != nil {
		panic(err)
	}
	return r
}

// Zero returns the zero T. Generated methods use it on error paths.
func Zero[T any]() T {
	var z T
	return z
}

// TypeOf returns the reflect.Type of T, interface types included.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
