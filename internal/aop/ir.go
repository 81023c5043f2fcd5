package aop

import "github.com/sghaida/oproxy/proxy"

// The IR below describes a proxy type without committing to any output
// language: fields by role, constructor statements, and method bodies as
// typed nodes. A back-end (internal/gogen) lowers it into source.

// FieldRole identifies a proxy field by what it holds.
type FieldRole int

const (
	// FieldEmbedded is the embedded original instance (struct targets without proxy target).
	FieldEmbedded FieldRole = iota
	// FieldTarget holds the resolved target.
	FieldTarget
	// FieldTargetMutex guards cached-lazy resolution.
	FieldTargetMutex
	// FieldTargetLock is the reader/writer lock of hot-swappable targets.
	FieldTargetLock
	// FieldResolutionContext retains the constructor's resolution context for lazy resolution.
	FieldResolutionContext
	// FieldLocator retains the locator for lazy resolution.
	FieldLocator
	// FieldQualifier retains the target qualifier for lazy resolution.
	FieldQualifier
	// FieldInterceptors holds one resolved interceptor list per slot.
	FieldInterceptors
)

// Field is one field of the proxy type.
type Field struct {
	Name string
	Role FieldRole
}

// Stmt is a constructor statement.
type Stmt interface{ stmt() }

// ConstructOriginal builds the embedded instance by calling the original
// constructor (or a zero value when none exists).
type ConstructOriginal struct {
	Field Field

	// Ctor is nil for the synthesized default constructor.
	Ctor *Constructor

	// Args are the layout handles of the original parameters, in order.
	Args []ParamHandle

	// Bindings are the around-construct bindings; empty means no interception.
	Bindings proxy.BindingSet

	Registry     ParamHandle
	Interceptors ParamHandle
}

// AssignParam stores a constructor parameter in a field.
type AssignParam struct {
	Field Field
	Param ParamHandle
}

// ResolveTarget resolves the target through the locator and stores it.
type ResolveTarget struct {
	Field             Field
	ResolutionContext ParamHandle
	Locator           ParamHandle
	Qualifier         ParamHandle
}

// InitInterceptors allocates the per-slot interceptor lists.
type InitInterceptors struct {
	Field Field
	Slots int
}

// MethodSource says which executable-method object a slot resolves against.
type MethodSource int

const (
	// SourceTarget methods invoke the resolved target.
	SourceTarget MethodSource = iota
	// SourceBridge methods invoke the bridge on the proxy.
	SourceBridge
	// SourceAbstract methods have no implementation.
	SourceAbstract
)

// ResolveChain resolves the ordered interceptors of one slot and stores them
// in interceptors[Slot.Index].
type ResolveChain struct {
	Slot   *MethodSlot
	Kind   proxy.BindingKind
	Source MethodSource
	Field  Field

	Registry   ParamHandle
	Candidates ParamHandle

	// Bindings is the full frozen binding set of the proxy; candidates are not
	// filtered per slot at generation time.
	Bindings proxy.BindingSet
}

func (ConstructOriginal) stmt() {}
func (AssignParam) stmt()       {}
func (ResolveTarget) stmt()     {}
func (InitInterceptors) stmt()  {}
func (ResolveChain) stmt()      {}

// Receiver is what an intercepted call hands to the chain as its target.
type Receiver int

const (
	// ReceiverProxy hands the proxy itself.
	ReceiverProxy Receiver = iota
	// ReceiverTarget hands the resolved target.
	ReceiverTarget
)

// Body is a method body.
type Body interface{ body() }

// InterceptBody builds an invocation over interceptors[Slot.Index] and proceeds.
type InterceptBody struct {
	Slot     *MethodSlot
	Receiver Receiver
}

// ForwardBody calls the same method on the resolved target without interception.
type ForwardBody struct {
	Ref MethodRef
}

// BridgeBody calls the original implementation of the embedded instance directly.
type BridgeBody struct {
	Slot  *MethodSlot
	Field Field
}

// BindingsBody returns the proxy's frozen binding set.
type BindingsBody struct{}

// HasCachedTargetBody reports whether the target is held.
type HasCachedTargetBody struct{ Mode ResolutionMode }

// TargetAccessorBody returns the target, resolving it as Mode requires.
type TargetAccessorBody struct{ Mode ResolutionMode }

// SwapBody replaces a hot-swappable target under the write lock.
type SwapBody struct{}

// ResetTargetBody drops a cached-lazy target.
type ResetTargetBody struct{}

func (InterceptBody) body()       {}
func (ForwardBody) body()         {}
func (BridgeBody) body()          {}
func (BindingsBody) body()        {}
func (HasCachedTargetBody) body() {}
func (TargetAccessorBody) body()  {}
func (SwapBody) body()            {}
func (ResetTargetBody) body()     {}

// Method is one method of the proxy type. Params and Returns are set for
// bodies that mirror a target method; marker bodies imply their signature.
type Method struct {
	Name    string
	Params  []Param
	Returns []TypeRef
	Body    Body
}

// Delegate is a method-table entry for a method whose erased signature equals an
// existing slot but whose declared generic signature differs. Invoking it casts
// the arguments and calls the slot's intercepted override.
type Delegate struct {
	Ref MethodRef
	To  *MethodSlot
}

// MarkerKind is the capability attached to the proxy type.
type MarkerKind int

const (
	// MarkerPlain exposes only the binding set.
	MarkerPlain MarkerKind = iota
	// MarkerAccessor exposes the target accessor.
	MarkerAccessor
	// MarkerHotSwap exposes the accessor and Swap.
	MarkerHotSwap
)

// String returns the marker name.
func (m MarkerKind) String() string {
	switch m {
	case MarkerAccessor:
		return "accessor"
	case MarkerHotSwap:
		return "hotswap"
	default:
		return "plain"
	}
}

// ProxyType is the result of one synthesis pass.
type ProxyType struct {
	// Name is the generated type name and Constructor its constructor.
	Name        string
	Constructor string
	Package     string

	Target TargetDescriptor
	Mode   ResolutionMode
	Marker MarkerKind

	// Bindings is the frozen binding set of the whole type.
	Bindings proxy.BindingSet

	Layout *ConstructorLayout

	// Original is the original constructor, nil for the default one.
	Original *Constructor

	Fields    []Field
	Init      []Stmt
	Slots     []*MethodSlot
	Delegates []Delegate
	Methods   []*Method

	// Notes are non-fatal remarks (e.g. normalized options) for the driver to log.
	Notes []string
}

// Field returns the field with the given role.
func (p *ProxyType) Field(role FieldRole) (Field, bool) {
	for _, f := range p.Fields {
		if f.Role == role {
			return f, true
		}
	}
	return Field{}, false
}
