package proxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ErrLocatorPanic is returned if a locator implementation panics internally.
var ErrLocatorPanic = errors.New("proxy: panic during Locate")

// ErrNilLocator is returned when a proxy target has to be resolved without a locator.
var ErrNilLocator = errors.New("proxy: nil locator")

// Qualifier narrows which instance of a type a Locator returns.
//
// The zero value is the default (unqualified) instance.
type Qualifier struct {
	Name string
}

// Named returns a qualifier selecting the instance registered under name.
func Named(name string) Qualifier { return Qualifier{Name: name} }

// IsDefault reports whether q is the zero qualifier.
func (q Qualifier) IsDefault() bool { return q.Name == "" }

// String renders the qualifier for diagnostics.
func (q Qualifier) String() string {
	if q.IsDefault() {
		return "@Default"
	}
	return "@Named(" + strconv.Quote(q.Name) + ")"
}

// ResolutionContext carries the state of one resolution request.
//
// It holds the caller's context and the chain of types being resolved, which
// is what error messages print when a target cannot be found.
type ResolutionContext struct {
	ctx  context.Context
	path []string
}

// NewResolutionContext starts a resolution. A nil ctx is treated as context.Background().
func NewResolutionContext(ctx context.Context) *ResolutionContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ResolutionContext{ctx: ctx}
}

// Context returns the caller's context. It is safe on a nil receiver.
func (rc *ResolutionContext) Context() context.Context {
	if rc == nil || rc.ctx == nil {
		return context.Background()
	}
	return rc.ctx
}

// Push returns a child context with segment appended to the path.
func (rc *ResolutionContext) Push(segment string) *ResolutionContext {
	child := &ResolutionContext{ctx: rc.Context()}
	if rc != nil {
		child.path = append(child.path, rc.path...)
	}
	child.path = append(child.path, segment)
	return child
}

// Path returns the resolution path, outermost first.
func (rc *ResolutionContext) Path() []string {
	if rc == nil {
		return nil
	}
	out := make([]string, len(rc.path))
	copy(out, rc.path)
	return out
}

// Locator resolves instances by type and qualifier.
//
// Implementations decide about scoping and construction; proxies only ask.
// rc may be nil once a cached-lazy proxy has dropped its retained context.
type Locator interface {
	Locate(rc *ResolutionContext, typ reflect.Type, q Qualifier) (any, error)
}

// NotFoundError is returned when no instance is registered for a type and qualifier.
type NotFoundError struct {
	Type      string
	Qualifier Qualifier
	Path      []string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	// Example: proxy: no instance of "shop.Store" for @Named("primary") (path: App -> Cart)
	msg := "proxy: no instance of " + strconv.Quote(e.Type) + " for " + e.Qualifier.String()
	if len(e.Path) > 0 {
		msg += " (path: " + strings.Join(e.Path, " -> ") + ")"
	}
	return msg
}

// WrongTypeError is returned when a value does not have the type its use requires:
// a located instance, a chain result or an argument replaced by an interceptor.
type WrongTypeError struct {
	// Value names what was converted. Empty means a located instance.
	Value string
	Want  string
	Got   string
}

// Error implements the error interface.
func (e *WrongTypeError) Error() string {
	what := e.Value
	if what == "" {
		what = "located instance"
	}
	// Example: proxy: located instance has wrong type (want shop.Store, got *shop.Cache)
	return "proxy: " + what + " has wrong type (want " + e.Want + ", got " + e.Got + ")"
}

// Locate resolves a T through l and asserts its type.
func Locate[T any](l Locator, rc *ResolutionContext, q Qualifier) (T, error) {
	var zero T
	if l == nil {
		return zero, ErrNilLocator
	}
	typ := TypeOf[T]()
	v, err := l.Locate(rc, typ, q)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &WrongTypeError{Want: typ.String(), Got: typeName(v)}
	}
	return out, nil
}

// Factory produces an instance for a MapLocator entry.
type Factory func(rc *ResolutionContext) (any, error)

type locatorKey struct {
	typ reflect.Type
	q   Qualifier
}

// MapLocator is a simple in-memory Locator.
//
// Entries are either fixed instances (Provide) or factories (ProvideFunc) that run
// on every Locate. It is safe for concurrent use.
type MapLocator struct {
	mu      sync.RWMutex
	entries map[locatorKey]Factory
}

// NewMapLocator returns an empty locator.
func NewMapLocator() *MapLocator {
	return &MapLocator{entries: map[locatorKey]Factory{}}
}

// Provide stores a fixed instance for (typ, q) and returns the locator for chaining.
func (l *MapLocator) Provide(typ reflect.Type, q Qualifier, val any) *MapLocator {
	return l.ProvideFunc(typ, q, func(*ResolutionContext) (any, error) { return val, nil })
}

// ProvideFunc stores a factory for (typ, q) and returns the locator for chaining.
func (l *MapLocator) ProvideFunc(typ reflect.Type, q Qualifier, f Factory) *MapLocator {
	l.mu.Lock()
	l.entries[locatorKey{typ: typ, q: q}] = f
	l.mu.Unlock()
	return l
}

// Locate implements Locator and defensively converts factory panics into errors.
func (l *MapLocator) Locate(rc *ResolutionContext, typ reflect.Type, q Qualifier) (val any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			val = nil
			err = fmt.Errorf("%w: %v", ErrLocatorPanic, rec)
		}
	}()

	l.mu.RLock()
	f, ok := l.entries[locatorKey{typ: typ, q: q}]
	l.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Type: typeString(typ), Qualifier: q, Path: rc.Path()}
	}
	return f(rc.Push(typeString(typ)))
}

// Has reports whether an entry exists for (typ, q).
func (l *MapLocator) Has(typ reflect.Type, q Qualifier) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[locatorKey{typ: typ, q: q}]
	return ok
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
