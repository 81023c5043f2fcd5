package aop_test

import (
	"errors"
	"testing"

	"github.com/sghaida/oproxy/internal/aop"
	"github.com/sghaida/oproxy/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greeterTarget(advice aop.AdviceKind) aop.TargetDescriptor {
	return aop.TargetDescriptor{Name: "Greeter", Package: "greeter", Interface: true, Advice: advice}
}

func cartTarget() aop.TargetDescriptor {
	return aop.TargetDescriptor{Name: "Cart", Package: "shop"}
}

func greet(bs ...proxy.Binding) aop.MethodRef {
	return aop.MethodRef{
		Name:     "Greet",
		Params:   []aop.Param{{Name: "name", Type: aop.T("string")}},
		Returns:  []aop.TypeRef{aop.T("string")},
		Bindings: bs,
	}
}

func finish(t *testing.T, target aop.TargetDescriptor, opts aop.Options, ctor *aop.Constructor, methods ...aop.MethodRef) *aop.ProxyType {
	t.Helper()

	s, err := aop.NewSynthesizer(target, opts)
	require.NoError(t, err)
	require.NoError(t, s.VisitConstructor(ctor))
	for _, m := range methods {
		require.NoError(t, s.VisitMethod(m))
	}
	p, err := s.VisitEnd()
	require.NoError(t, err)
	return p
}

func methodNames(p *aop.ProxyType) []string {
	out := make([]string, 0, len(p.Methods))
	for _, m := range p.Methods {
		out = append(out, m.Name)
	}
	return out
}

func requireConfigError(t *testing.T, err error, method, reason string) {
	t.Helper()

	require.Error(t, err)
	var ce *aop.ConfigError
	require.True(t, errors.As(err, &ce), "want *aop.ConfigError, got %T", err)
	assert.Equal(t, method, ce.Method)
	assert.Contains(t, ce.Reason, reason)
}

func TestNewSynthesizer_Config(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target aop.TargetDescriptor
		opts   aop.Options
		reason string
	}{
		{"empty name", aop.TargetDescriptor{}, aop.Options{}, "name is empty"},
		{"introduction on struct", aop.TargetDescriptor{Name: "Cart", Advice: aop.AdviceIntroduction}, aop.Options{}, "requires an interface"},
		{"introduction with target", greeterTarget(aop.AdviceIntroduction), aop.Options{ProxyTarget: true}, "disable proxyTarget"},
		{"around interface without target", greeterTarget(aop.AdviceAround), aop.Options{}, "needs proxyTarget"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := aop.NewSynthesizer(tt.target, tt.opts)
			requireConfigError(t, err, "", tt.reason)
		})
	}
}

func TestSynthesizer_Defaults(t *testing.T) {
	t.Parallel()

	s, err := aop.NewSynthesizer(cartTarget(), aop.Options{})
	require.NoError(t, err)
	assert.Equal(t, "CartProxy", s.Target().ProxyName)
	assert.Equal(t, "NewCartProxy", s.Target().ConstructorName)
	assert.Equal(t, aop.ModeNoTarget, s.Mode())
}

// Scenario: struct Foo with Bar(x int) int and one around binding.
func TestSynthesizer_AroundStructBridges(t *testing.T) {
	t.Parallel()

	bar := aop.MethodRef{
		Name:     "Bar",
		Params:   []aop.Param{{Name: "x", Type: aop.T("int")}},
		Returns:  []aop.TypeRef{aop.T("int")},
		Bindings: []proxy.Binding{proxy.Around("log")},
	}
	plain := aop.MethodRef{Name: "Name", Returns: []aop.TypeRef{aop.T("string")}}

	p := finish(t, aop.TargetDescriptor{Name: "Foo", Package: "foo"}, aop.Options{}, nil, bar, plain)

	require.Len(t, p.Slots, 1)
	slot := p.Slots[0]
	assert.Equal(t, aop.ImplBridge, slot.Impl)
	assert.Equal(t, proxy.KindAround, slot.Kind)
	assert.Equal(t, "origBar", slot.BridgeName())

	assert.Equal(t, []string{"Bar", "origBar", "InterceptedBindings"}, methodNames(p))
	assert.Equal(t, aop.MarkerPlain, p.Marker)

	body, ok := p.Methods[0].Body.(aop.InterceptBody)
	require.True(t, ok)
	assert.Equal(t, aop.ReceiverProxy, body.Receiver)

	bridge, ok := p.Methods[1].Body.(aop.BridgeBody)
	require.True(t, ok)
	assert.Equal(t, "Foo", bridge.Field.Name)

	_, embedded := p.Field(aop.FieldEmbedded)
	assert.True(t, embedded)

	require.IsType(t, aop.ConstructOriginal{}, p.Init[0])
	construct := p.Init[0].(aop.ConstructOriginal)
	assert.Nil(t, construct.Ctor)
	assert.Equal(t, 0, construct.Bindings.Len())
}

func TestSynthesizer_ConstructorParamsLeadLayout(t *testing.T) {
	t.Parallel()

	s, err := aop.NewSynthesizer(cartTarget(), aop.Options{})
	require.NoError(t, err)

	require.PanicsWithError(t, "aop: Layout: constructor layout accessed before VisitEnd", func() { s.Layout() })

	require.NoError(t, s.VisitConstructor(&aop.Constructor{
		Name:         "NewCart",
		Params:       []aop.Param{{Name: "owner", Type: aop.T("string")}, {Name: "limit", Type: aop.T("int")}},
		ReturnsError: true,
	}))
	require.NoError(t, s.VisitConstructorBindings(proxy.Around("audit")))
	require.NoError(t, s.VisitTypeBindings(proxy.Around("log")))
	require.NoError(t, s.VisitMethod(aop.MethodRef{Name: "Total", Returns: []aop.TypeRef{aop.T("int")}}))

	p, err := s.VisitEnd()
	require.NoError(t, err)

	l := s.Layout()
	assert.Same(t, l, p.Layout)
	assert.Equal(t, 2, l.ResolutionContext.Index)
	assert.Equal(t, 6, l.Registry.Index)

	construct := p.Init[0].(aop.ConstructOriginal)
	require.NotNil(t, construct.Ctor)
	assert.Equal(t, "NewCart", construct.Ctor.Name)
	assert.Equal(t, l.Original, construct.Args)
	assert.True(t, construct.Bindings.Contains(proxy.AroundConstruct("audit")))
	assert.True(t, p.Bindings.Contains(proxy.AroundConstruct("audit")))
	assert.True(t, p.Bindings.Contains(proxy.Around("log")))
}

// The chain of every slot must see the binding set as it is after all visits.
func TestSynthesizer_ChainsReceiveFrozenSet(t *testing.T) {
	t.Parallel()

	s, err := aop.NewSynthesizer(greeterTarget(aop.AdviceAround), aop.Options{ProxyTarget: true})
	require.NoError(t, err)
	require.NoError(t, s.VisitConstructor(nil))
	require.NoError(t, s.VisitMethod(greet(proxy.Around("log"))))
	require.NoError(t, s.VisitMethod(aop.MethodRef{
		Name:     "Farewell",
		Returns:  []aop.TypeRef{aop.T("error")},
		Bindings: []proxy.Binding{proxy.Around("metrics"), proxy.Around("log")},
	}))
	p, err := s.VisitEnd()
	require.NoError(t, err)

	want := proxy.NewBindingSet(proxy.Around("log"), proxy.Around("metrics"))
	assert.True(t, want.Equal(p.Bindings), p.Bindings.String())
	assert.True(t, want.Equal(p.Layout.InterceptorQualifier))

	var chains []aop.ResolveChain
	for _, st := range p.Init {
		if rc, ok := st.(aop.ResolveChain); ok {
			chains = append(chains, rc)
		}
	}
	require.Len(t, chains, 2)
	for i, rc := range chains {
		assert.Equal(t, i, rc.Slot.Index)
		assert.True(t, want.Equal(rc.Bindings), rc.Bindings.String())
		assert.Equal(t, aop.SourceTarget, rc.Source)
		assert.Equal(t, p.Layout.Interceptors, rc.Candidates)
		assert.Equal(t, p.Layout.Registry, rc.Registry)
	}

	// slot bindings stay per method
	assert.Equal(t, "{around:log}", p.Slots[0].Bindings.String())
}

func TestSynthesizer_IntroductionInterface(t *testing.T) {
	t.Parallel()

	target := greeterTarget(aop.AdviceIntroduction)
	target.Interfaces = []string{"Named"}
	p := finish(t, target, aop.Options{}, nil,
		greet(),
		aop.MethodRef{Declaring: "Named", Name: "Name", Returns: []aop.TypeRef{aop.T("string")}},
	)

	require.Len(t, p.Slots, 2)
	for _, s := range p.Slots {
		assert.Equal(t, aop.ImplNone, s.Impl)
		assert.Equal(t, proxy.KindIntroduction, s.Kind)
	}
	assert.Equal(t, "Named", p.Slots[1].Ref.Declaring)
	assert.Equal(t, "Greeter", p.Slots[0].Ref.Declaring)
	require.Len(t, p.Fields, 1)
	assert.Equal(t, aop.FieldInterceptors, p.Fields[0].Role)
	assert.Equal(t, []string{"Greet", "Name", "InterceptedBindings"}, methodNames(p))

	init, ok := p.Init[0].(aop.InitInterceptors)
	require.True(t, ok)
	assert.Equal(t, 2, init.Slots)
	rc := p.Init[1].(aop.ResolveChain)
	assert.Equal(t, aop.SourceAbstract, rc.Source)
	assert.Equal(t, proxy.KindIntroduction, rc.Kind)
}

func TestSynthesizer_ProxiedForwardsPlainMethods(t *testing.T) {
	t.Parallel()

	p := finish(t, greeterTarget(aop.AdviceAround), aop.Options{ProxyTarget: true}, nil,
		aop.MethodRef{Name: "Name", Returns: []aop.TypeRef{aop.T("string")}},
		greet(proxy.Around("log")),
	)

	assert.Equal(t, []string{"Greet", "Name", "InterceptedBindings", "HasCachedInterceptedTarget", "InterceptedTarget"}, methodNames(p))
	_, ok := p.Methods[1].Body.(aop.ForwardBody)
	assert.True(t, ok)
	body := p.Methods[0].Body.(aop.InterceptBody)
	assert.Equal(t, aop.ReceiverTarget, body.Receiver)
}

func TestSynthesizer_ForwardPromotedToSlot(t *testing.T) {
	t.Parallel()

	p := finish(t, greeterTarget(aop.AdviceAround), aop.Options{ProxyTarget: true}, nil,
		greet(),
		greet(proxy.Around("log")),
	)

	require.Len(t, p.Slots, 1)
	for _, m := range p.Methods {
		_, fwd := m.Body.(aop.ForwardBody)
		assert.False(t, fwd, m.Name)
	}
}

func TestSynthesizer_DuplicateVisitsShareSlot(t *testing.T) {
	t.Parallel()

	p := finish(t, greeterTarget(aop.AdviceAround), aop.Options{ProxyTarget: true}, nil,
		greet(proxy.Around("log")),
		greet(proxy.Around("metrics")),
	)

	require.Len(t, p.Slots, 1)
	assert.Empty(t, p.Delegates)
	assert.Equal(t, "{around:log, around:metrics}", p.Slots[0].Bindings.String())
}

func TestSynthesizer_GenericFormDelegates(t *testing.T) {
	t.Parallel()

	concrete := aop.MethodRef{
		Name:     "Save",
		Params:   []aop.Param{{Name: "v", Type: aop.T("User")}},
		Returns:  []aop.TypeRef{aop.T("error")},
		Bindings: []proxy.Binding{proxy.Around("tx")},
	}
	generic := concrete
	generic.Declaring = "Repo"
	generic.Params = []aop.Param{{Name: "v", Type: aop.TypeRef{Type: "User", Generic: "T"}}}

	p := finish(t, greeterTarget(aop.AdviceAround), aop.Options{ProxyTarget: true}, nil, concrete, generic, generic)

	require.Len(t, p.Slots, 1)
	require.Len(t, p.Delegates, 1)
	d := p.Delegates[0]
	assert.Same(t, p.Slots[0], d.To)
	assert.Equal(t, []string{"T"}, d.Ref.GenericArgTypes())
	assert.Equal(t, "Repo", d.Ref.Declaring)
}

func TestSynthesizer_VisitMethodErrors(t *testing.T) {
	t.Parallel()

	newSynth := func(t *testing.T) *aop.Synthesizer {
		s, err := aop.NewSynthesizer(greeterTarget(aop.AdviceAround), aop.Options{ProxyTarget: true, HotSwap: true})
		require.NoError(t, err)
		return s
	}

	t.Run("unsupported shape", func(t *testing.T) {
		t.Parallel()
		err := newSynth(t).VisitMethod(aop.MethodRef{
			Name:     "Pair",
			Returns:  []aop.TypeRef{aop.T("int"), aop.T("int")},
			Bindings: []proxy.Binding{proxy.Around("log")},
		})
		requireConfigError(t, err, "Pair", "returns 2 values (int, int)")
	})

	t.Run("unsupported shape without bindings is forwarded", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, newSynth(t).VisitMethod(aop.MethodRef{
			Name:    "Pair",
			Returns: []aop.TypeRef{aop.T("int"), aop.T("int")},
		}))
	})

	t.Run("conflicting signature", func(t *testing.T) {
		t.Parallel()
		s := newSynth(t)
		require.NoError(t, s.VisitMethod(greet(proxy.Around("log"))))
		other := greet()
		other.Params[0].Type = aop.T("int")
		requireConfigError(t, s.VisitMethod(other), "Greet", "conflicting signatures")
	})

	t.Run("marker name", func(t *testing.T) {
		t.Parallel()
		err := newSynth(t).VisitMethod(aop.MethodRef{Name: "Swap"})
		requireConfigError(t, err, "Swap", "hotswap marker")
	})

	t.Run("construct binding on method", func(t *testing.T) {
		t.Parallel()
		err := newSynth(t).VisitMethod(greet(proxy.AroundConstruct("audit")))
		requireConfigError(t, err, "Greet", "construct binding")
	})

	t.Run("introduction binding under around advice", func(t *testing.T) {
		t.Parallel()
		err := newSynth(t).VisitMethod(greet(proxy.Introduction("stub")))
		requireConfigError(t, err, "Greet", "introduction binding")
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()
		requireConfigError(t, newSynth(t).VisitMethod(aop.MethodRef{}), "", "without a name")
	})
}

func TestSynthesizer_ConstructorErrors(t *testing.T) {
	t.Parallel()

	s, err := aop.NewSynthesizer(greeterTarget(aop.AdviceAround), aop.Options{ProxyTarget: true})
	require.NoError(t, err)
	requireConfigError(t, s.VisitConstructor(&aop.Constructor{Name: "NewGreeter"}), "NewGreeter", "interfaces have no constructor")
	requireConfigError(t, s.VisitConstructorBindings(proxy.AroundConstruct("audit")), "", "constructor bindings")

	s, err = aop.NewSynthesizer(cartTarget(), aop.Options{ProxyTarget: true})
	require.NoError(t, err)
	err = s.VisitConstructor(&aop.Constructor{Name: "NewCart", Params: []aop.Param{{Name: "owner", Type: aop.T("string")}}})
	requireConfigError(t, err, "NewCart", "not used when the target is proxied")
	require.NoError(t, s.VisitConstructor(&aop.Constructor{Name: "NewCart"}))
}

func TestSynthesizer_ZeroSlots(t *testing.T) {
	t.Parallel()

	s, err := aop.NewSynthesizer(greeterTarget(aop.AdviceIntroduction), aop.Options{})
	require.NoError(t, err)
	s.VisitDefaultConstructor()
	_, err = s.VisitEnd()
	requireConfigError(t, err, "", "zero candidate methods")

	s, err = aop.NewSynthesizer(cartTarget(), aop.Options{})
	require.NoError(t, err)
	s.VisitDefaultConstructor()
	require.NoError(t, s.VisitMethod(aop.MethodRef{Name: "Total", Returns: []aop.TypeRef{aop.T("int")}}))
	_, err = s.VisitEnd()
	requireConfigError(t, err, "", "no method is intercepted")
}

func TestSynthesizer_BridgeNameTaken(t *testing.T) {
	t.Parallel()

	s, err := aop.NewSynthesizer(cartTarget(), aop.Options{})
	require.NoError(t, err)
	s.VisitDefaultConstructor()
	require.NoError(t, s.VisitMethod(aop.MethodRef{Name: "Add", Bindings: []proxy.Binding{proxy.Around("log")}}))
	require.NoError(t, s.VisitMethod(aop.MethodRef{Name: "origAdd"}))
	_, err = s.VisitEnd()
	requireConfigError(t, err, "Add", "bridge name")
}

func TestSynthesizer_StructuralViolations(t *testing.T) {
	t.Parallel()

	t.Run("end without constructor", func(t *testing.T) {
		t.Parallel()
		s, err := aop.NewSynthesizer(cartTarget(), aop.Options{})
		require.NoError(t, err)
		require.PanicsWithError(t, "aop: VisitEnd: no constructor visited", func() { _, _ = s.VisitEnd() })
	})

	t.Run("visit after end", func(t *testing.T) {
		t.Parallel()
		s, err := aop.NewSynthesizer(cartTarget(), aop.Options{})
		require.NoError(t, err)
		s.VisitDefaultConstructor()
		require.NoError(t, s.VisitMethod(aop.MethodRef{Name: "Add", Bindings: []proxy.Binding{proxy.Around("log")}}))
		_, err = s.VisitEnd()
		require.NoError(t, err)

		require.PanicsWithError(t, "aop: VisitMethod: synthesizer already finished", func() {
			_ = s.VisitMethod(aop.MethodRef{Name: "Other"})
		})
		require.PanicsWithError(t, "aop: VisitEnd: synthesizer already finished", func() { _, _ = s.VisitEnd() })
	})

	t.Run("type bindings after methods", func(t *testing.T) {
		t.Parallel()
		s, err := aop.NewSynthesizer(cartTarget(), aop.Options{})
		require.NoError(t, err)
		require.NoError(t, s.VisitMethod(aop.MethodRef{Name: "Add"}))
		require.PanicsWithError(t, "aop: VisitTypeBindings: type bindings visited after methods", func() {
			_ = s.VisitTypeBindings(proxy.Around("log"))
		})
	})
}

func TestSynthesizer_ParamNamesAvoidLocals(t *testing.T) {
	t.Parallel()

	target := greeterTarget(aop.AdviceAround)
	target.Reserved = []string{"time"}
	p := finish(t, target, aop.Options{ProxyTarget: true}, nil, aop.MethodRef{
		Name: "Do",
		Params: []aop.Param{
			{Name: "target", Type: aop.T("string")},
			{Name: "err", Type: aop.T("error")},
			{Name: "time", Type: aop.T("time.Duration")},
			{Type: aop.T("int")},
		},
		Bindings: []proxy.Binding{proxy.Around("log")},
	})

	var names []string
	for _, prm := range p.Slots[0].Ref.Params {
		names = append(names, prm.Name)
	}
	assert.Equal(t, []string{"target2", "err2", "time2", "arg3"}, names)
}
