package aop

import "github.com/sghaida/oproxy/proxy"

// ParamHandle addresses one parameter of the synthesized constructor.
type ParamHandle struct {
	Index int
	Name  string
	Role  proxy.ParamRole
}

// Valid reports whether the handle was produced by Augment.
func (h ParamHandle) Valid() bool { return h.Name != "" }

// Bookkeeping parameter names, before de-duplication against original parameters.
const (
	ParamResolutionContext = "resolutionContext"
	ParamLocator           = "locator"
	ParamQualifier         = "qualifier"
	ParamInterceptors      = "interceptors"
	ParamRegistry          = "registry"
)

// reservedLocals are identifiers the back-end declares inside the constructor.
var reservedLocals = []string{"px", "err", "orig", "target", "proxy"}

// ConstructorLayout is the parameter list of the synthesized constructor:
// the original parameters followed by five bookkeeping parameters in fixed order.
//
// A layout is computed once per pass and never reordered.
type ConstructorLayout struct {
	Original []ParamHandle

	ResolutionContext ParamHandle
	Locator           ParamHandle
	Qualifier         ParamHandle
	Interceptors      ParamHandle
	Registry          ParamHandle

	// InterceptorQualifier is the frozen binding set attached to the
	// interceptor-list parameter.
	InterceptorQualifier proxy.BindingSet

	originalParams []Param
}

// Augment appends the bookkeeping tail to original and attaches the frozen
// binding set to the interceptor-list parameter.
//
// Names listed in reserved (imported package names, typically) are avoided
// along with the constructor's own locals.
func Augment(original []Param, frozen proxy.BindingSet, reserved ...string) *ConstructorLayout {
	reserved = append(append([]string(nil), reservedLocals...), reserved...)
	original = normalizeParams(original, reserved...)

	taken := map[string]bool{}
	for _, r := range reserved {
		taken[r] = true
	}

	l := &ConstructorLayout{
		InterceptorQualifier: frozen,
		originalParams:       original,
	}
	for i, p := range original {
		name := uniqueName(p.Name, taken)
		taken[name] = true
		l.originalParams[i].Name = name
		l.Original = append(l.Original, ParamHandle{Index: i, Name: name, Role: proxy.RoleInjectable})
	}

	n := len(original)
	next := func(offset int, base string, role proxy.ParamRole) ParamHandle {
		name := uniqueName(base, taken)
		taken[name] = true
		return ParamHandle{Index: n + offset, Name: name, Role: role}
	}
	l.ResolutionContext = next(0, ParamResolutionContext, proxy.RoleResolutionContext)
	l.Locator = next(1, ParamLocator, proxy.RoleLocator)
	l.Qualifier = next(2, ParamQualifier, proxy.RoleQualifier)
	l.Interceptors = next(3, ParamInterceptors, proxy.RoleInterceptors)
	l.Registry = next(4, ParamRegistry, proxy.RoleRegistry)
	return l
}

// Len returns the total number of parameters.
func (l *ConstructorLayout) Len() int { return len(l.Original) + 5 }

// Handles returns every parameter handle in index order.
func (l *ConstructorLayout) Handles() []ParamHandle {
	out := make([]ParamHandle, 0, l.Len())
	out = append(out, l.Original...)
	return append(out, l.ResolutionContext, l.Locator, l.Qualifier, l.Interceptors, l.Registry)
}

// OriginalParam returns the original parameter addressed by h.
func (l *ConstructorLayout) OriginalParam(h ParamHandle) Param {
	return l.originalParams[h.Index]
}
