package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// -----------------------------------------------------------------------------
// BindingKind
// -----------------------------------------------------------------------------

// TestParseBindingKind_RoundTrip verifies every kind parses back from its String form.
func TestParseBindingKind_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, k := range []BindingKind{KindAround, KindIntroduction, KindAroundConstruct} {
		got, ok := ParseBindingKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}

	got, ok := ParseBindingKind("  Around-Construct ")
	require.True(t, ok)
	assert.Equal(t, KindAroundConstruct, got)

	got, ok = ParseBindingKind("")
	require.True(t, ok)
	assert.Equal(t, KindAround, got)

	_, ok = ParseBindingKind("before")
	assert.False(t, ok)

	assert.Equal(t, "kind(9)", BindingKind(9).String())
}

//
// -----------------------------------------------------------------------------
// BindingSet
// -----------------------------------------------------------------------------

// TestNewBindingSet_DedupsAndSorts verifies duplicates collapse and order is kind then name.
func TestNewBindingSet_DedupsAndSorts(t *testing.T) {
	t.Parallel()

	s := NewBindingSet(
		Introduction("canned"),
		Around("logged"),
		Around("audited"),
		Around("logged"),
		AroundConstruct("logged"),
	)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []Binding{
		Around("audited"),
		Around("logged"),
		Introduction("canned"),
		AroundConstruct("logged"),
	}, s.All())
	assert.Equal(t, "{around:audited, around:logged, introduction:canned, construct:logged}", s.String())
}

// TestBindingSet_KindsNeverMerge verifies same-named bindings of different kinds stay distinct.
func TestBindingSet_KindsNeverMerge(t *testing.T) {
	t.Parallel()

	s := NewBindingSet(Around("x"), Introduction("x"))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(Around("x")))
	assert.True(t, s.Contains(Introduction("x")))
	assert.False(t, s.Contains(AroundConstruct("x")))

	assert.False(t, NewBindingSet(Around("x")).Intersects(NewBindingSet(Introduction("x"))))
}

// TestBindingSet_Queries verifies Names, OfKind, Union, Intersects and Equal.
func TestBindingSet_Queries(t *testing.T) {
	t.Parallel()

	a := NewBindingSet(Around("logged"), Around("timed"), Introduction("canned"))
	b := NewBindingSet(Around("timed"), AroundConstruct("audited"))

	assert.Equal(t, []string{"logged", "timed"}, a.Names(KindAround))
	assert.Nil(t, a.Names(KindAroundConstruct))
	assert.Equal(t, NewBindingSet(Introduction("canned")), a.OfKind(KindIntroduction))

	assert.True(t, a.Intersects(b))
	assert.False(t, a.OfKind(KindIntroduction).Intersects(b))

	u := a.Union(b)
	assert.Equal(t, 4, u.Len())
	assert.True(t, u.Equal(NewBindingSet(AroundConstruct("audited"), Around("timed"), Around("logged"), Introduction("canned"))))
	assert.False(t, u.Equal(a))
}

// TestBindingSet_ZeroValue verifies the zero set is empty and usable.
func TestBindingSet_ZeroValue(t *testing.T) {
	t.Parallel()

	var s BindingSet
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.All())
	assert.False(t, s.Contains(Around("x")))
	assert.True(t, s.Equal(NewBindingSet()))
	assert.Equal(t, "{}", s.String())
}

// TestBindingSet_AllIsACopy verifies callers cannot mutate the set through All.
func TestBindingSet_AllIsACopy(t *testing.T) {
	t.Parallel()

	s := NewBindingSet(Around("a"))
	all := s.All()
	all[0] = Around("z")
	assert.True(t, s.Contains(Around("a")))
}
