package aop

import "github.com/sghaida/oproxy/proxy"

// sourceOf maps where a slot's implementation lives onto the table entry its
// chain resolves against.
func sourceOf(impl ImplLocation) MethodSource {
	switch impl {
	case ImplBridge:
		return SourceBridge
	case ImplNone:
		return SourceAbstract
	default:
		return SourceTarget
	}
}

// buildChains returns the constructor statements that resolve and cache the
// interceptor list of every slot.
//
// Every ResolveChain carries the whole frozen binding set. The registry decides
// what applies to a slot at runtime; nothing is filtered here.
func buildChains(slots []*MethodSlot, l *ConstructorLayout, frozen proxy.BindingSet) []Stmt {
	out := make([]Stmt, 0, len(slots)+1)
	out = append(out, InitInterceptors{Field: interceptorsField, Slots: len(slots)})
	for _, s := range slots {
		out = append(out, ResolveChain{
			Slot:       s,
			Kind:       s.Kind,
			Source:     sourceOf(s.Impl),
			Field:      interceptorsField,
			Registry:   l.Registry,
			Candidates: l.Interceptors,
			Bindings:   frozen,
		})
	}
	return out
}

// constructOriginal describes how a struct target's own instance is built in
// no-target mode.
func constructOriginal(t TargetDescriptor, ctor *Constructor, l *ConstructorLayout, ctorBindings proxy.BindingSet) ConstructOriginal {
	return ConstructOriginal{
		Field:        embeddedField(t),
		Ctor:         ctor,
		Args:         l.Original,
		Bindings:     ctorBindings,
		Registry:     l.Registry,
		Interceptors: l.Interceptors,
	}
}
