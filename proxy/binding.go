package proxy

import (
	"sort"
	"strconv"
	"strings"
)

// BindingKind separates the three families of interceptor bindings.
//
// Bindings of different kinds are never merged, even when they share a name.
type BindingKind int

const (
	// KindAround binds interceptors that wrap an existing implementation.
	KindAround BindingKind = iota

	// KindIntroduction binds interceptors that supply an implementation.
	KindIntroduction

	// KindAroundConstruct binds interceptors that wrap construction of the
	// underlying instance.
	KindAroundConstruct
)

// String returns the spelling used in proxy spec files ("around", "introduction", "construct").
func (k BindingKind) String() string {
	switch k {
	case KindAround:
		return "around"
	case KindIntroduction:
		return "introduction"
	case KindAroundConstruct:
		return "construct"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseBindingKind is the inverse of BindingKind.String.
// An empty string means around.
func ParseBindingKind(s string) (BindingKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "around":
		return KindAround, true
	case "introduction":
		return KindIntroduction, true
	case "construct", "around-construct":
		return KindAroundConstruct, true
	default:
		return 0, false
	}
}

// Binding identifies an interceptor binding by its qualifying name and kind.
type Binding struct {
	Name string
	Kind BindingKind
}

// Around is shorthand for Binding{Name: name, Kind: KindAround}.
func Around(name string) Binding { return Binding{Name: name, Kind: KindAround} }

// Introduction is shorthand for Binding{Name: name, Kind: KindIntroduction}.
func Introduction(name string) Binding { return Binding{Name: name, Kind: KindIntroduction} }

// AroundConstruct is shorthand for Binding{Name: name, Kind: KindAroundConstruct}.
func AroundConstruct(name string) Binding {
	return Binding{Name: name, Kind: KindAroundConstruct}
}

// String renders the binding as "kind:name".
func (b Binding) String() string { return b.Kind.String() + ":" + b.Name }

func (b Binding) less(o Binding) bool {
	if b.Kind != o.Kind {
		return b.Kind < o.Kind
	}
	return b.Name < o.Name
}

// BindingSet is an immutable, de-duplicated, sorted set of bindings.
//
// The zero value is an empty set and is ready to use.
type BindingSet struct {
	items []Binding
}

// NewBindingSet builds a set from bs. Duplicates collapse into one entry.
func NewBindingSet(bs ...Binding) BindingSet {
	if len(bs) == 0 {
		return BindingSet{}
	}
	seen := make(map[Binding]struct{}, len(bs))
	items := make([]Binding, 0, len(bs))
	for _, b := range bs {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		items = append(items, b)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].less(items[j]) })
	return BindingSet{items: items}
}

// Len returns the number of bindings.
func (s BindingSet) Len() int { return len(s.items) }

// All returns a copy of the bindings in sorted order.
func (s BindingSet) All() []Binding {
	out := make([]Binding, len(s.items))
	copy(out, s.items)
	return out
}

// Contains reports whether b is in the set.
func (s BindingSet) Contains(b Binding) bool {
	i := sort.Search(len(s.items), func(i int) bool { return !s.items[i].less(b) })
	return i < len(s.items) && s.items[i] == b
}

// Names returns the names of all bindings of the given kind.
func (s BindingSet) Names(kind BindingKind) []string {
	var out []string
	for _, b := range s.items {
		if b.Kind == kind {
			out = append(out, b.Name)
		}
	}
	return out
}

// OfKind returns the subset of bindings with the given kind.
func (s BindingSet) OfKind(kind BindingKind) BindingSet {
	var out []Binding
	for _, b := range s.items {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return BindingSet{items: out}
}

// Union returns a set holding the bindings of both s and o.
func (s BindingSet) Union(o BindingSet) BindingSet {
	all := make([]Binding, 0, len(s.items)+len(o.items))
	all = append(all, s.items...)
	all = append(all, o.items...)
	return NewBindingSet(all...)
}

// Intersects reports whether s and o share at least one binding.
func (s BindingSet) Intersects(o BindingSet) bool {
	for _, b := range s.items {
		if o.Contains(b) {
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold the same bindings.
func (s BindingSet) Equal(o BindingSet) bool {
	if len(s.items) != len(o.items) {
		return false
	}
	for i := range s.items {
		if s.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

// String renders the set as "{around:a, introduction:b}".
func (s BindingSet) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, b := range s.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
