package aop

import (
	"strings"

	"github.com/sghaida/oproxy/proxy"
)

// Synthesizer builds one proxy type.
//
// A driver feeds it in a fixed order: constructor and type-level bindings
// first, then methods, then VisitEnd. A Synthesizer is single use.
// Driver mistakes (VisitEnd without a constructor visit, visits after
// VisitEnd) panic with *StructuralError; invalid configurations are
// returned as *ConfigError.
type Synthesizer struct {
	target  TargetDescriptor
	mode    ResolutionMode
	handler modeHandler
	notes   []string

	bindings     *BindingSetBuilder
	typeBindings []proxy.Binding
	ctorBindings []proxy.Binding

	catalog   *Catalog
	delegates []Delegate
	forwards  []MethodRef
	names     map[string]MethodKey
	reserved  map[string]bool

	ctor           *Constructor
	ctorVisited    bool
	methodsVisited bool
	ended          bool

	layout *ConstructorLayout
}

// NewSynthesizer checks the target against the options and returns an open
// synthesizer.
func NewSynthesizer(t TargetDescriptor, o Options) (*Synthesizer, error) {
	t = t.withDefaults()
	if strings.TrimSpace(t.Name) == "" {
		return nil, configErr("", "", "target type name is empty")
	}

	o, notes := o.Normalize()
	mode := ModeFor(o)

	switch {
	case t.Advice == AdviceIntroduction && !t.Interface:
		return nil, configErr(t.Name, "", "introduction advice requires an interface target")
	case t.Advice == AdviceIntroduction && mode.ProxiesTarget():
		return nil, configErr(t.Name, "", "introduction advice has no target to proxy; disable proxyTarget")
	case t.Advice == AdviceAround && t.Interface && !mode.ProxiesTarget():
		return nil, configErr(t.Name, "", "around advice on an interface needs proxyTarget")
	}

	return &Synthesizer{
		target:   t,
		mode:     mode,
		handler:  handlerFor(mode),
		notes:    notes,
		bindings: NewBindingSetBuilder(),
		catalog:  NewCatalog(),
		names:    map[string]MethodKey{},
		reserved: reservedMethodNames(mode),
	}, nil
}

// Mode returns the resolution mode selected from the options.
func (s *Synthesizer) Mode() ResolutionMode { return s.mode }

// Target returns the target descriptor with defaults applied.
func (s *Synthesizer) Target() TargetDescriptor { return s.target }

// Notes returns the adjustments made while normalizing options.
func (s *Synthesizer) Notes() []string { return append([]string(nil), s.notes...) }

// Catalog exposes the slot catalog.
func (s *Synthesizer) Catalog() *Catalog { return s.catalog }

// Layout returns the constructor layout. It panics before VisitEnd computed it.
func (s *Synthesizer) Layout() *ConstructorLayout {
	if s.layout == nil {
		structural("Layout", "constructor layout accessed before VisitEnd")
	}
	return s.layout
}

func (s *Synthesizer) open(op string) {
	if s.ended {
		structural(op, "synthesizer already finished")
	}
}

// VisitConstructor records the original constructor of a struct target.
//
// Without a proxy target the proxy builds its own instance through c, so c's
// parameters become the leading parameters of the proxy constructor. With a
// proxy target the instance comes from the locator and c must not take any.
func (s *Synthesizer) VisitConstructor(c *Constructor) error {
	s.open("VisitConstructor")
	if c == nil {
		s.VisitDefaultConstructor()
		return nil
	}
	if s.target.Interface {
		return configErr(s.target.Name, c.Name, "interfaces have no constructor")
	}
	if s.mode.ProxiesTarget() && len(c.Params) > 0 {
		return configErr(s.target.Name, c.Name, "constructor parameters are not used when the target is proxied")
	}
	cp := *c
	cp.Params = append([]Param(nil), c.Params...)
	if !s.mode.ProxiesTarget() {
		s.ctor = &cp
	}
	s.ctorVisited = true
	return nil
}

// VisitDefaultConstructor records that the target has no constructor. Struct
// targets are then built from their zero value.
func (s *Synthesizer) VisitDefaultConstructor() {
	s.open("VisitDefaultConstructor")
	s.ctor = nil
	s.ctorVisited = true
}

// VisitTypeBindings adds type-level bindings. They apply to every method and
// must arrive before the first VisitMethod.
func (s *Synthesizer) VisitTypeBindings(bs ...proxy.Binding) error {
	s.open("VisitTypeBindings")
	if s.methodsVisited {
		structural("VisitTypeBindings", "type bindings visited after methods")
	}
	var ctor []proxy.Binding
	for _, b := range bs {
		if b.Kind == proxy.KindAroundConstruct {
			ctor = append(ctor, b)
			continue
		}
		if b.Kind == proxy.KindIntroduction && s.target.Advice != AdviceIntroduction {
			return configErr(s.target.Name, "", "introduction binding "+quote(b.Name)+" on a type with around advice")
		}
		s.typeBindings = append(s.typeBindings, b)
		s.bindings.Add(b)
	}
	if len(ctor) > 0 {
		return s.VisitConstructorBindings(ctor...)
	}
	return nil
}

// VisitConstructorBindings adds around-construct bindings. They only apply when
// the proxy builds the target itself.
func (s *Synthesizer) VisitConstructorBindings(bs ...proxy.Binding) error {
	s.open("VisitConstructorBindings")
	if len(bs) == 0 {
		return nil
	}
	if s.target.Interface || s.mode.ProxiesTarget() {
		return configErr(s.target.Name, "", "constructor bindings need a struct target without proxyTarget")
	}
	for _, b := range bs {
		b.Kind = proxy.KindAroundConstruct
		s.ctorBindings = append(s.ctorBindings, b)
		s.bindings.Add(b)
	}
	return nil
}

// VisitMethod offers one method of the target or of an extra interface.
//
// A method is intercepted when it carries bindings, when type-level bindings
// exist, or when the target uses introduction advice. Methods reached twice
// with the same erased signature share one slot; if their declared generic
// forms differ the later one becomes a delegating table entry.
func (s *Synthesizer) VisitMethod(m MethodRef) error {
	s.open("VisitMethod")
	s.methodsVisited = true

	if strings.TrimSpace(m.Name) == "" {
		return configErr(s.target.Name, "", "method without a name")
	}
	if s.reserved[m.Name] {
		return configErr(s.target.Name, m.Name, "name is taken by the "+s.handler.marker().String()+" marker methods")
	}
	if m.Declaring == "" {
		m.Declaring = s.target.Name
	}
	m.Params = normalizeParams(m.Params, append(append([]string(nil), methodLocals...), s.target.Reserved...)...)
	m.Bindings = append([]proxy.Binding(nil), m.Bindings...)
	for _, b := range m.Bindings {
		if b.Kind == proxy.KindAroundConstruct {
			return configErr(s.target.Name, m.Name, "construct binding "+quote(b.Name)+" on a method")
		}
		if b.Kind == proxy.KindIntroduction && s.target.Advice != AdviceIntroduction {
			return configErr(s.target.Name, m.Name, "introduction binding "+quote(b.Name)+" on a type with around advice")
		}
	}

	key := KeyOf(m)
	if prev, ok := s.names[m.Name]; ok && prev != key {
		return configErr(s.target.Name, m.Name, "conflicting signatures "+quote(prev.Args+" -> "+prev.Returns)+
			" and "+quote(key.Args+" -> "+key.Returns))
	}
	s.names[m.Name] = key

	if !s.intercepts(m) {
		if slot, ok := s.catalog.Lookup(m); ok {
			s.delegateIfGeneric(slot, m)
			return nil
		}
		for _, f := range s.forwards {
			if f.Name == m.Name {
				return nil
			}
		}
		s.forwards = append(s.forwards, m)
		return nil
	}

	if err := checkShape(s.target.Name, m); err != nil {
		return err
	}
	s.bindings.Add(m.Bindings...)

	i, isNew := s.catalog.Register(m)
	slot := s.catalog.Slot(i)
	if !isNew {
		s.delegateIfGeneric(slot, m)
		return nil
	}
	slot.Kind, slot.Impl = s.slotKind()
	s.dropForward(m.Name)
	return nil
}

func (s *Synthesizer) intercepts(m MethodRef) bool {
	return s.target.Advice == AdviceIntroduction || len(m.Bindings) > 0 || len(s.typeBindings) > 0
}

func (s *Synthesizer) slotKind() (proxy.BindingKind, ImplLocation) {
	switch {
	case s.target.Advice == AdviceIntroduction:
		return proxy.KindIntroduction, ImplNone
	case !s.mode.ProxiesTarget():
		return proxy.KindAround, ImplBridge
	default:
		return proxy.KindAround, ImplTarget
	}
}

func (s *Synthesizer) delegateIfGeneric(slot *MethodSlot, m MethodRef) {
	if sameGenericForm(slot.Ref, m) {
		return
	}
	for _, d := range s.delegates {
		if d.To == slot && sameGenericForm(d.Ref, m) {
			return
		}
	}
	s.delegates = append(s.delegates, Delegate{Ref: m, To: slot})
}

func (s *Synthesizer) dropForward(name string) {
	for i, f := range s.forwards {
		if f.Name == name {
			s.forwards = append(s.forwards[:i], s.forwards[i+1:]...)
			return
		}
	}
}

// VisitEnd freezes the binding set and assembles the proxy type.
func (s *Synthesizer) VisitEnd() (*ProxyType, error) {
	s.open("VisitEnd")
	s.ended = true
	if !s.ctorVisited {
		structural("VisitEnd", "no constructor visited")
	}

	if s.catalog.Len() == 0 {
		if s.target.Advice == AdviceIntroduction {
			return nil, configErr(s.target.Name, "", "introduction advice with zero candidate methods")
		}
		return nil, configErr(s.target.Name, "", "no method is intercepted")
	}

	frozen := s.bindings.Freeze()
	slots := s.catalog.Slots()
	for _, slot := range slots {
		eff := make([]proxy.Binding, 0, len(slot.methodBindings)+len(s.typeBindings))
		eff = append(eff, slot.methodBindings...)
		eff = append(eff, s.typeBindings...)
		slot.Bindings = proxy.NewBindingSet(eff...)
	}

	var original []Param
	if s.ctor != nil {
		original = s.ctor.Params
	}
	s.layout = Augment(original, frozen, s.target.Reserved...)

	p := &ProxyType{
		Name:        s.target.ProxyName,
		Constructor: s.target.ConstructorName,
		Package:     s.target.Package,
		Target:      s.target,
		Mode:        s.mode,
		Marker:      s.handler.marker(),
		Bindings:    frozen,
		Layout:      s.layout,
		Original:    s.ctor,
		Slots:       slots,
		Delegates:   append([]Delegate(nil), s.delegates...),
		Notes:       s.Notes(),
	}

	p.Fields = append(s.handler.fields(s.target), interceptorsField)

	construct := constructOriginal(s.target, s.ctor, s.layout, proxy.NewBindingSet(s.ctorBindings...))
	p.Init = append(s.handler.constructor(s.target, s.layout, construct), buildChains(slots, s.layout, frozen)...)

	recv := s.handler.receiver()
	for _, slot := range slots {
		p.Methods = append(p.Methods, overrideFor(slot, recv))
	}
	for _, slot := range slots {
		if slot.Impl != ImplBridge {
			continue
		}
		if _, taken := s.names[slot.BridgeName()]; taken {
			return nil, configErr(s.target.Name, slot.Name(), "bridge name "+quote(slot.BridgeName())+" is taken by a target method")
		}
		p.Methods = append(p.Methods, bridgeFor(slot, embeddedField(s.target)))
	}
	// Without a target, struct methods are promoted from the embedded instance.
	if s.mode.ProxiesTarget() {
		for _, f := range s.forwards {
			p.Methods = append(p.Methods, forwardFor(f))
		}
	}
	p.Methods = append(p.Methods, &Method{Name: "InterceptedBindings", Body: BindingsBody{}})
	p.Methods = append(p.Methods, s.handler.accessors()...)
	return p, nil
}
