package proxy

import "sort"

// Registration is one candidate interceptor handed to a proxy constructor.
//
// The container that builds a proxy collects every registration whose Bindings
// intersect the proxy's binding set (see Definition) and passes them as the
// interceptor-list constructor argument.
type Registration struct {
	// Name identifies the registration in diagnostics and breaks ordering ties.
	Name string

	// Interceptor is the interceptor itself.
	Interceptor Interceptor

	// Bindings are the bindings this interceptor answers to.
	Bindings BindingSet

	// Order sorts interceptors; lower runs first (outermost).
	Order int
}

// InterceptorRegistry resolves the ordered interceptor list for one method.
type InterceptorRegistry interface {
	Resolve(kind BindingKind, method *ExecutableMethod, candidates []Registration) []Interceptor
}

// DefaultRegistry keeps candidates whose bindings of the requested kind intersect the
// method's bindings of that kind, ordered by Order then Name.
type DefaultRegistry struct{}

// Resolve implements InterceptorRegistry.
func (DefaultRegistry) Resolve(kind BindingKind, method *ExecutableMethod, candidates []Registration) []Interceptor {
	if method == nil || len(candidates) == 0 {
		return nil
	}
	want := method.Bindings.OfKind(kind)
	if want.Len() == 0 {
		return nil
	}

	matched := make([]Registration, 0, len(candidates))
	for _, c := range candidates {
		if c.Interceptor == nil {
			continue
		}
		if c.Bindings.OfKind(kind).Intersects(want) {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Order != matched[j].Order {
			return matched[i].Order < matched[j].Order
		}
		return matched[i].Name < matched[j].Name
	})

	out := make([]Interceptor, len(matched))
	for i, r := range matched {
		out[i] = r.Interceptor
	}
	return out
}

func registryOrDefault(reg InterceptorRegistry) InterceptorRegistry {
	if reg == nil {
		return DefaultRegistry{}
	}
	return reg
}

// ResolveAroundInterceptors returns the around chain for method.
func ResolveAroundInterceptors(reg InterceptorRegistry, method *ExecutableMethod, candidates []Registration) []Interceptor {
	return registryOrDefault(reg).Resolve(KindAround, method, candidates)
}

// ResolveIntroductionInterceptors returns the chain for an introduced method:
// around interceptors first, then introduction interceptors.
func ResolveIntroductionInterceptors(reg InterceptorRegistry, method *ExecutableMethod, candidates []Registration) []Interceptor {
	r := registryOrDefault(reg)
	around := r.Resolve(KindAround, method, candidates)
	intro := r.Resolve(KindIntroduction, method, candidates)
	if len(around) == 0 {
		return intro
	}
	out := make([]Interceptor, 0, len(around)+len(intro))
	out = append(out, around...)
	return append(out, intro...)
}

// ResolveAroundConstructInterceptors returns the chain wrapping construction.
func ResolveAroundConstructInterceptors(reg InterceptorRegistry, method *ExecutableMethod, candidates []Registration) []Interceptor {
	return registryOrDefault(reg).Resolve(KindAroundConstruct, method, candidates)
}
