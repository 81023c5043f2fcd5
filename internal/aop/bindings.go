package aop

import "github.com/sghaida/oproxy/proxy"

// BindingSetBuilder accumulates interceptor bindings during the visit phase.
//
// Adding a binding twice is a no-op. Once Freeze has been called the builder
// refuses further additions.
type BindingSetBuilder struct {
	items  []proxy.Binding
	seen   map[proxy.Binding]struct{}
	frozen *proxy.BindingSet
}

// NewBindingSetBuilder returns an open builder.
func NewBindingSetBuilder() *BindingSetBuilder {
	return &BindingSetBuilder{seen: map[proxy.Binding]struct{}{}}
}

// Add records bs and returns how many of them were new.
// It panics with *StructuralError after Freeze.
func (b *BindingSetBuilder) Add(bs ...proxy.Binding) int {
	if b.frozen != nil {
		structural("BindingSetBuilder.Add", "binding set is frozen")
	}
	added := 0
	for _, x := range bs {
		if _, ok := b.seen[x]; ok {
			continue
		}
		b.seen[x] = struct{}{}
		b.items = append(b.items, x)
		added++
	}
	return added
}

// Len returns the number of distinct bindings recorded so far.
func (b *BindingSetBuilder) Len() int { return len(b.items) }

// Frozen reports whether Freeze was called.
func (b *BindingSetBuilder) Frozen() bool { return b.frozen != nil }

// Freeze closes the builder and returns the immutable set.
// Later calls return the same set.
func (b *BindingSetBuilder) Freeze() proxy.BindingSet {
	if b.frozen == nil {
		s := proxy.NewBindingSet(b.items...)
		b.frozen = &s
	}
	return *b.frozen
}
