package spec

import (
	"github.com/sghaida/oproxy/internal/aop"
	"github.com/sghaida/oproxy/proxy"
)

// Descriptor returns the engine's view of the target.
func (s *ProxySpec) Descriptor() aop.TargetDescriptor {
	advice := aop.AdviceAround
	if s.Advice == "introduction" {
		advice = aop.AdviceIntroduction
	}
	return aop.TargetDescriptor{
		Name:            s.Target,
		Package:         s.Package,
		Interface:       s.Interface,
		Advice:          advice,
		Interfaces:      append([]string(nil), s.Interfaces...),
		ProxyName:       s.ProxyName,
		ConstructorName: s.ConstructorName,
		Reserved:        s.ImportNames(),
	}
}

// Options returns the resolution switches.
func (s *ProxySpec) Options() aop.Options {
	return aop.Options{
		ProxyTarget:     s.ProxyTarget,
		Lazy:            s.Lazy,
		CacheLazyTarget: s.CacheLazyTarget,
		HotSwap:         s.HotSwap,
	}
}

// Visit feeds the spec into syn in visit order: constructor, type bindings,
// constructor bindings, then methods. It does not call VisitEnd.
func (s *ProxySpec) Visit(syn *aop.Synthesizer) error {
	if s.Constructor == nil {
		syn.VisitDefaultConstructor()
	} else {
		c := &aop.Constructor{
			Name:         s.Constructor.Name,
			Params:       params(s.Constructor.Params),
			ReturnsError: s.Constructor.ReturnsError,
		}
		if err := syn.VisitConstructor(c); err != nil {
			return err
		}
	}

	if len(s.Bindings) > 0 {
		if err := syn.VisitTypeBindings(bindings(s.Bindings)...); err != nil {
			return err
		}
	}
	if s.Constructor != nil && len(s.Constructor.Bindings) > 0 {
		if err := syn.VisitConstructorBindings(bindings(s.Constructor.Bindings)...); err != nil {
			return err
		}
	}

	for _, m := range s.Methods {
		if err := syn.VisitMethod(s.methodRef(m)); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProxySpec) methodRef(m MethodSpec) aop.MethodRef {
	ref := aop.MethodRef{
		Declaring: m.Declaring,
		Name:      m.Name,
		Params:    params(m.Params),
		Bindings:  bindings(m.Bindings),
	}
	if ref.Declaring == "" {
		ref.Declaring = s.Target
	}
	for _, r := range m.Returns {
		ref.Returns = append(ref.Returns, aop.TypeRef{Type: r.Type, Generic: r.Generic})
	}
	return ref
}

func params(ps []ParamSpec) []aop.Param {
	if len(ps) == 0 {
		return nil
	}
	out := make([]aop.Param, len(ps))
	for i, p := range ps {
		out[i] = aop.Param{
			Name:     p.Name,
			Type:     aop.TypeRef{Type: p.Type, Generic: p.Generic},
			Variadic: p.Variadic,
		}
	}
	return out
}

// bindings converts validated binding specs; unknown kinds were rejected by
// Validate and fall back to around.
func bindings(bs []BindingSpec) []proxy.Binding {
	out := make([]proxy.Binding, 0, len(bs))
	for _, b := range bs {
		k, _ := proxy.ParseBindingKind(b.Kind)
		out = append(out, proxy.Binding{Name: b.Name, Kind: k})
	}
	return out
}
