package aop

import (
	"strings"

	"github.com/sghaida/oproxy/proxy"
)

// ImplLocation says where the terminal call of a slot lands.
type ImplLocation int

const (
	// ImplTarget calls the method on the resolved proxy target.
	ImplTarget ImplLocation = iota
	// ImplBridge calls the original implementation through a bridge method on the proxy.
	ImplBridge
	// ImplNone means nothing backs the method (introduction).
	ImplNone
)

// MethodSlot is one unique intercepted method signature.
type MethodSlot struct {
	// Index is the slot number, assigned in registration order.
	Index int

	// Ref is the method as first registered.
	Ref MethodRef

	// Kind is KindAround or KindIntroduction.
	Kind proxy.BindingKind

	// Impl is where the terminal call lands.
	Impl ImplLocation

	// Bindings are the effective bindings (method-level plus type-level), set on VisitEnd.
	Bindings proxy.BindingSet

	methodBindings []proxy.Binding
}

// Name returns the method name.
func (s *MethodSlot) Name() string { return s.Ref.Name }

// BridgeName is the name of the bridge method emitted for ImplBridge slots.
func (s *MethodSlot) BridgeName() string { return "orig" + s.Ref.Name }

// MethodKey identifies a slot: name, erased argument types, erased result types.
type MethodKey struct {
	Name    string
	Args    string
	Returns string
}

// KeyOf computes the catalog key of m.
func KeyOf(m MethodRef) MethodKey {
	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		args[i] = variadicPrefix(p) + p.Type.Erased()
	}
	rets := make([]string, len(m.Returns))
	for i, r := range m.Returns {
		rets[i] = r.Erased()
	}
	return MethodKey{
		Name:    m.Name,
		Args:    strings.Join(args, ","),
		Returns: strings.Join(rets, ","),
	}
}

// Catalog de-duplicates intercepted methods so that a method reached through
// several visit paths owns exactly one slot.
type Catalog struct {
	slots  []*MethodSlot
	byKey  map[MethodKey]int
	byName map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byKey: map[MethodKey]int{}, byName: map[string]int{}}
}

// Register returns the slot index for m and whether the slot was created by this call.
//
// Registering an equal key again returns the same index and isNew=false.
func (c *Catalog) Register(m MethodRef) (slot int, isNew bool) {
	key := KeyOf(m)
	if i, ok := c.byKey[key]; ok {
		c.slots[i].methodBindings = append(c.slots[i].methodBindings, m.Bindings...)
		return i, false
	}
	i := len(c.slots)
	c.slots = append(c.slots, &MethodSlot{
		Index:          i,
		Ref:            m,
		methodBindings: append([]proxy.Binding(nil), m.Bindings...),
	})
	c.byKey[key] = i
	if _, ok := c.byName[m.Name]; !ok {
		c.byName[m.Name] = i
	}
	return i, true
}

// Lookup returns the slot registered for m's key.
func (c *Catalog) Lookup(m MethodRef) (*MethodSlot, bool) {
	i, ok := c.byKey[KeyOf(m)]
	if !ok {
		return nil, false
	}
	return c.slots[i], true
}

// ByName returns the first slot registered under name.
func (c *Catalog) ByName(name string) (*MethodSlot, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return c.slots[i], true
}

// Slot returns slot i.
func (c *Catalog) Slot(i int) *MethodSlot { return c.slots[i] }

// Len returns the number of slots.
func (c *Catalog) Len() int { return len(c.slots) }

// Slots returns the slots in index order.
func (c *Catalog) Slots() []*MethodSlot {
	out := make([]*MethodSlot, len(c.slots))
	copy(out, c.slots)
	return out
}
