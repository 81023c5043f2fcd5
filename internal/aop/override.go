package aop

import (
	"strconv"
	"strings"
)

// methodLocals are identifiers generated method bodies declare next to the
// method's own parameters.
var methodLocals = []string{"px", "target", "res", "err", "proxy"}

// checkShape rejects result lists an intercepted method cannot be lowered to.
func checkShape(typ string, m MethodRef) error {
	if m.ResultShape() != ShapeUnsupported {
		return nil
	}
	return configErr(typ, m.Name, "returns "+strconv.Itoa(len(m.Returns))+" values ("+
		strings.Join(m.ReturnTypes(), ", ")+"); intercepted methods return nothing, T, error or (T, error)")
}

// overrideFor is the intercepting method of a slot.
func overrideFor(s *MethodSlot, recv Receiver) *Method {
	return &Method{
		Name:    s.Name(),
		Params:  s.Ref.Params,
		Returns: s.Ref.Returns,
		Body:    InterceptBody{Slot: s, Receiver: recv},
	}
}

// bridgeFor is the unexported method that reaches the embedded original.
func bridgeFor(s *MethodSlot, embedded Field) *Method {
	return &Method{
		Name:    s.BridgeName(),
		Params:  s.Ref.Params,
		Returns: s.Ref.Returns,
		Body:    BridgeBody{Slot: s, Field: embedded},
	}
}

// forwardFor passes a non-intercepted call straight to the resolved target.
func forwardFor(m MethodRef) *Method {
	return &Method{
		Name:    m.Name,
		Params:  m.Params,
		Returns: m.Returns,
		Body:    ForwardBody{Ref: m},
	}
}

// sameGenericForm reports whether a and b declare the same generic signature.
func sameGenericForm(a, b MethodRef) bool {
	return equalStrings(a.GenericArgTypes(), b.GenericArgTypes())
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
