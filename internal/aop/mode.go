package aop

// ResolutionMode is how a proxy obtains the instance its chains end in.
// Exactly one mode applies to a synthesis pass.
type ResolutionMode int

const (
	// ModeNoTarget: no separate target. Struct proxies embed their own instance,
	// introduction proxies have no implementation at all.
	ModeNoTarget ResolutionMode = iota
	// ModeEager resolves the target once in the constructor.
	ModeEager
	// ModeLazy resolves the target on every access.
	ModeLazy
	// ModeCachedLazy resolves on first access and caches (double-checked locking).
	ModeCachedLazy
	// ModeHotSwap resolves eagerly; the target can be swapped under a reader/writer lock.
	ModeHotSwap
)

// String returns the mode name used in specs and metadata.
func (m ResolutionMode) String() string {
	switch m {
	case ModeEager:
		return "eager"
	case ModeLazy:
		return "lazy"
	case ModeCachedLazy:
		return "cached-lazy"
	case ModeHotSwap:
		return "hotswap"
	default:
		return "no-target"
	}
}

// ProxiesTarget reports whether the mode forwards to a separate target instance.
func (m ResolutionMode) ProxiesTarget() bool { return m != ModeNoTarget }

// Options are the boolean switches a driver receives from configuration.
type Options struct {
	ProxyTarget     bool
	Lazy            bool
	CacheLazyTarget bool
	HotSwap         bool
}

// Normalize resolves contradicting switches. Lazy wins over HotSwap, and
// CacheLazyTarget only matters for lazy targets. The returned notes describe
// every adjustment.
func (o Options) Normalize() (Options, []string) {
	var notes []string
	if o.Lazy && o.HotSwap {
		o.HotSwap = false
		notes = append(notes, "lazy and hotswap are exclusive; using lazy")
	}
	if o.CacheLazyTarget && !o.Lazy {
		o.CacheLazyTarget = false
		notes = append(notes, "cacheLazyTarget ignored without lazy")
	}
	return o, notes
}

// ModeFor maps normalized options onto a ResolutionMode.
func ModeFor(o Options) ResolutionMode {
	o, _ = o.Normalize()
	switch {
	case !o.ProxyTarget:
		return ModeNoTarget
	case o.Lazy && o.CacheLazyTarget:
		return ModeCachedLazy
	case o.Lazy:
		return ModeLazy
	case o.HotSwap:
		return ModeHotSwap
	default:
		return ModeEager
	}
}

// modeHandler produces the mode specific part of a proxy.
type modeHandler interface {
	fields(t TargetDescriptor) []Field
	constructor(t TargetDescriptor, l *ConstructorLayout, construct ConstructOriginal) []Stmt
	accessors() []*Method
	marker() MarkerKind
	receiver() Receiver
}

var modeHandlers = map[ResolutionMode]modeHandler{
	ModeNoTarget:   noTargetMode{},
	ModeEager:      eagerMode{},
	ModeLazy:       lazyMode{},
	ModeCachedLazy: cachedLazyMode{},
	ModeHotSwap:    hotSwapMode{},
}

func handlerFor(m ResolutionMode) modeHandler {
	h, ok := modeHandlers[m]
	if !ok {
		structural("handlerFor", "unknown resolution mode "+m.String())
	}
	return h
}

var (
	targetField            = Field{Name: "target", Role: FieldTarget}
	targetMutexField       = Field{Name: "targetMu", Role: FieldTargetMutex}
	targetLockField        = Field{Name: "targetLock", Role: FieldTargetLock}
	resolutionContextField = Field{Name: "resolutionContext", Role: FieldResolutionContext}
	locatorField           = Field{Name: "locator", Role: FieldLocator}
	qualifierField         = Field{Name: "qualifier", Role: FieldQualifier}
	interceptorsField      = Field{Name: "interceptors", Role: FieldInterceptors}
)

func embeddedField(t TargetDescriptor) Field { return Field{Name: t.Name, Role: FieldEmbedded} }

func accessorMethods(m ResolutionMode) []*Method {
	return []*Method{
		{Name: "HasCachedInterceptedTarget", Body: HasCachedTargetBody{Mode: m}},
		{Name: "InterceptedTarget", Body: TargetAccessorBody{Mode: m}},
	}
}

func resolveTarget(l *ConstructorLayout) Stmt {
	return ResolveTarget{
		Field:             targetField,
		ResolutionContext: l.ResolutionContext,
		Locator:           l.Locator,
		Qualifier:         l.Qualifier,
	}
}

func retainForLazy(l *ConstructorLayout) []Stmt {
	return []Stmt{
		AssignParam{Field: resolutionContextField, Param: l.ResolutionContext},
		AssignParam{Field: locatorField, Param: l.Locator},
		AssignParam{Field: qualifierField, Param: l.Qualifier},
	}
}

type noTargetMode struct{}

func (noTargetMode) fields(t TargetDescriptor) []Field {
	if t.Interface {
		return nil
	}
	return []Field{embeddedField(t)}
}

func (noTargetMode) constructor(t TargetDescriptor, _ *ConstructorLayout, construct ConstructOriginal) []Stmt {
	if t.Interface {
		return nil
	}
	return []Stmt{construct}
}

func (noTargetMode) accessors() []*Method { return nil }
func (noTargetMode) marker() MarkerKind   { return MarkerPlain }
func (noTargetMode) receiver() Receiver   { return ReceiverProxy }

type eagerMode struct{}

func (eagerMode) fields(TargetDescriptor) []Field { return []Field{targetField} }

func (eagerMode) constructor(_ TargetDescriptor, l *ConstructorLayout, _ ConstructOriginal) []Stmt {
	return []Stmt{resolveTarget(l)}
}

func (eagerMode) accessors() []*Method { return accessorMethods(ModeEager) }
func (eagerMode) marker() MarkerKind   { return MarkerAccessor }
func (eagerMode) receiver() Receiver   { return ReceiverTarget }

type lazyMode struct{}

func (lazyMode) fields(TargetDescriptor) []Field {
	return []Field{resolutionContextField, locatorField, qualifierField}
}

func (lazyMode) constructor(_ TargetDescriptor, l *ConstructorLayout, _ ConstructOriginal) []Stmt {
	return retainForLazy(l)
}

func (lazyMode) accessors() []*Method { return accessorMethods(ModeLazy) }
func (lazyMode) marker() MarkerKind   { return MarkerAccessor }
func (lazyMode) receiver() Receiver   { return ReceiverTarget }

type cachedLazyMode struct{}

func (cachedLazyMode) fields(TargetDescriptor) []Field {
	return []Field{targetField, targetMutexField, resolutionContextField, locatorField, qualifierField}
}

func (cachedLazyMode) constructor(_ TargetDescriptor, l *ConstructorLayout, _ ConstructOriginal) []Stmt {
	return retainForLazy(l)
}

func (cachedLazyMode) accessors() []*Method {
	return append(accessorMethods(ModeCachedLazy), &Method{Name: "ResetInterceptedTarget", Body: ResetTargetBody{}})
}

func (cachedLazyMode) marker() MarkerKind { return MarkerAccessor }
func (cachedLazyMode) receiver() Receiver { return ReceiverTarget }

type hotSwapMode struct{}

func (hotSwapMode) fields(TargetDescriptor) []Field { return []Field{targetField, targetLockField} }

func (hotSwapMode) constructor(_ TargetDescriptor, l *ConstructorLayout, _ ConstructOriginal) []Stmt {
	return []Stmt{resolveTarget(l)}
}

func (hotSwapMode) accessors() []*Method {
	return append(accessorMethods(ModeHotSwap), &Method{Name: "Swap", Body: SwapBody{}})
}

func (hotSwapMode) marker() MarkerKind { return MarkerHotSwap }
func (hotSwapMode) receiver() Receiver { return ReceiverTarget }

// reservedMethodNames are the names the marker methods of mode m occupy.
func reservedMethodNames(m ResolutionMode) map[string]bool {
	names := map[string]bool{"InterceptedBindings": true}
	for _, meth := range handlerFor(m).accessors() {
		names[meth.Name] = true
	}
	return names
}
