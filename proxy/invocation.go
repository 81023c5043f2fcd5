package proxy

import (
	"errors"
	"strconv"
)

// ErrNilMethod is returned when an invocation is proceeded without a method.
var ErrNilMethod = errors.New("proxy: nil executable method")

// Interceptor intercepts one method invocation.
//
// An interceptor either returns its own result (short-circuit) or calls
// inv.Proceed() to continue with the next interceptor and, eventually, the
// terminal implementation.
type Interceptor interface {
	Intercept(inv *Invocation) (any, error)
}

// InterceptorFunc adapts a plain function to Interceptor.
type InterceptorFunc func(inv *Invocation) (any, error)

// Intercept implements Interceptor.
func (f InterceptorFunc) Intercept(inv *Invocation) (any, error) { return f(inv) }

// UnimplementedError is returned when an abstract method is proceeded past its last
// interceptor: no interceptor supplied a result and nothing backs the method.
type UnimplementedError struct {
	// Method is the signature of the method, e.g. "Greeter.Greet(string) string".
	Method string
}

// Error implements the error interface.
func (e *UnimplementedError) Error() string {
	// Example: proxy: no implementation for "Greeter.Greet(string) string"
	return "proxy: no implementation for " + strconv.Quote(e.Method)
}

// Invocation is one in-flight method call travelling through an interceptor chain.
//
// An Invocation is not safe for concurrent use; every call of a proxied method
// builds a fresh one.
type Invocation struct {
	interceptors []Interceptor
	index        int
	target       any
	method       *ExecutableMethod
	args         []any
	attrs        map[string]any
}

// NewInvocation builds an invocation over interceptors (in execution order).
//
// target is the receiver handed to the terminal Invoker. args are copied into a
// fresh slice so interceptors may replace parameters without touching the caller.
func NewInvocation(interceptors []Interceptor, target any, method *ExecutableMethod, args ...any) *Invocation {
	var packed []any
	if len(args) > 0 {
		packed = make([]any, len(args))
		copy(packed, args)
	}
	return &Invocation{
		interceptors: interceptors,
		target:       target,
		method:       method,
		args:         packed,
	}
}

// Proceed runs the next interceptor, or the terminal call once all interceptors ran.
func (inv *Invocation) Proceed() (any, error) {
	if inv.method == nil {
		return nil, ErrNilMethod
	}
	if inv.index < len(inv.interceptors) {
		next := inv.interceptors[inv.index]
		inv.index++
		return next.Intercept(inv)
	}
	if inv.method.Abstract || inv.method.Invoke == nil {
		return nil, &UnimplementedError{Method: inv.method.Signature()}
	}
	return inv.terminal()
}

func (inv *Invocation) terminal() (res any, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		am, ok := r.(argMismatch)
		if !ok {
			panic(r)
		}
		res, err = nil, &WrongTypeError{
			Value: "argument " + strconv.Itoa(am.index) + " of " + inv.method.Signature(),
			Want:  am.want,
			Got:   am.got,
		}
	}()
	return inv.method.Invoke(inv.target, inv.args)
}

// Target returns the receiver of the terminal call.
func (inv *Invocation) Target() any { return inv.target }

// Method returns the method being invoked.
func (inv *Invocation) Method() *ExecutableMethod { return inv.method }

// Parameters returns the packed arguments. The slice is shared with the invocation.
func (inv *Invocation) Parameters() []any { return inv.args }

// SetParameter replaces argument i before proceeding.
func (inv *Invocation) SetParameter(i int, v any) { inv.args[i] = v }

// Attribute returns a value stored by an earlier interceptor.
func (inv *Invocation) Attribute(key string) (any, bool) {
	v, ok := inv.attrs[key]
	return v, ok
}

// SetAttribute stores a value visible to later interceptors of this invocation.
func (inv *Invocation) SetAttribute(key string, v any) {
	if inv.attrs == nil {
		inv.attrs = map[string]any{}
	}
	inv.attrs[key] = v
}

// Construct runs around-construct interceptors around ctor.
//
// The interceptors see an Invocation whose method is method, whose target is nil
// and whose parameters are the constructor arguments. The value returned by the
// chain must be a T.
func Construct[T any](interceptors []Interceptor, method *ExecutableMethod, ctor func(args []any) (T, error), args ...any) (T, error) {
	var zero T
	if ctor == nil {
		return zero, ErrNilConstructor
	}
	if method == nil {
		return zero, ErrNilMethod
	}
	m := *method
	m.Abstract = false
	m.Invoke = func(_ any, a []any) (any, error) { return ctor(a) }
	v, err := NewInvocation(interceptors, nil, &m, args...).Proceed()
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &WrongTypeError{Value: "constructed instance", Want: TypeOf[T]().String(), Got: typeName(v)}
	}
	return out, nil
}

// ErrNilConstructor is returned by Construct when no constructor function is given.
var ErrNilConstructor = errors.New("proxy: nil constructor")
