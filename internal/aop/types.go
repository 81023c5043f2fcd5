package aop

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strconv"
	"strings"

	"github.com/sghaida/oproxy/proxy"
)

// TypeRef is a Go type expression as it appears in a method signature.
type TypeRef struct {
	// Type is the concrete type ("*User", "[]string", "Page[int]").
	Type string

	// Generic is the declared form when the method comes from a generic
	// declaration ("T", "Page[T]"). Empty when identical to Type.
	Generic string
}

// T is shorthand for a non-generic TypeRef.
func T(typ string) TypeRef { return TypeRef{Type: typ} }

// GenericForm returns Generic, or Type when the reference is not generic.
func (t TypeRef) GenericForm() string {
	if t.Generic != "" {
		return t.Generic
	}
	return t.Type
}

// Erased returns the type with generic instantiations stripped ("Page[int]" -> "Page").
func (t TypeRef) Erased() string { return Erase(t.Type) }

// IsError reports whether the type is the predeclared error type.
func (t TypeRef) IsError() bool { return strings.TrimSpace(t.Type) == "error" }

// Erase strips generic instantiation from a type expression at every depth.
//
// Expressions that do not parse are returned trimmed and otherwise unchanged.
func Erase(typ string) string {
	typ = strings.TrimSpace(typ)
	if !strings.Contains(typ, "[") {
		return typ
	}
	expr, err := parser.ParseExpr(typ)
	if err != nil {
		return typ
	}
	expr = eraseExpr(expr)
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), expr); err != nil {
		return typ
	}
	return buf.String()
}

func eraseExpr(e ast.Expr) ast.Expr {
	switch x := e.(type) {
	case *ast.IndexExpr:
		return eraseExpr(x.X)
	case *ast.IndexListExpr:
		return eraseExpr(x.X)
	case *ast.StarExpr:
		x.X = eraseExpr(x.X)
	case *ast.ArrayType:
		x.Elt = eraseExpr(x.Elt)
	case *ast.MapType:
		x.Key = eraseExpr(x.Key)
		x.Value = eraseExpr(x.Value)
	case *ast.ChanType:
		x.Value = eraseExpr(x.Value)
	case *ast.Ellipsis:
		x.Elt = eraseExpr(x.Elt)
	case *ast.ParenExpr:
		x.X = eraseExpr(x.X)
	case *ast.FuncType:
		eraseFields(x.Params)
		eraseFields(x.Results)
	}
	return e
}

func eraseFields(fl *ast.FieldList) {
	if fl == nil {
		return
	}
	for _, f := range fl.List {
		f.Type = eraseExpr(f.Type)
	}
}

// Param is one method or constructor parameter.
type Param struct {
	Name     string
	Type     TypeRef
	Variadic bool
}

// MethodRef is a method as supplied by the driver during the visit phase.
type MethodRef struct {
	// Declaring is the type that declares the method (target or extra interface).
	Declaring string

	Name    string
	Params  []Param
	Returns []TypeRef

	// Bindings are the method-level bindings.
	Bindings []proxy.Binding
}

// ArgTypes returns the concrete parameter types; variadic parameters are rendered as "...T".
func (m MethodRef) ArgTypes() []string {
	out := make([]string, len(m.Params))
	for i, p := range m.Params {
		out[i] = variadicPrefix(p) + p.Type.Type
	}
	return out
}

// GenericArgTypes returns the declared parameter types.
func (m MethodRef) GenericArgTypes() []string {
	out := make([]string, len(m.Params))
	for i, p := range m.Params {
		out[i] = variadicPrefix(p) + p.Type.GenericForm()
	}
	return out
}

// ReturnTypes returns the concrete result types.
func (m MethodRef) ReturnTypes() []string {
	out := make([]string, len(m.Returns))
	for i, r := range m.Returns {
		out[i] = r.Type
	}
	return out
}

// IsGeneric reports whether any parameter or result has a generic form that
// differs from its concrete type.
func (m MethodRef) IsGeneric() bool {
	for _, p := range m.Params {
		if p.Type.Generic != "" && p.Type.Generic != p.Type.Type {
			return true
		}
	}
	for _, r := range m.Returns {
		if r.Generic != "" && r.Generic != r.Type {
			return true
		}
	}
	return false
}

// Shape classifies the result list of a method.
type Shape int

const (
	// ShapeNone has no results.
	ShapeNone Shape = iota
	// ShapeValue returns one non-error value.
	ShapeValue
	// ShapeError returns only an error.
	ShapeError
	// ShapeValueError returns a value and an error.
	ShapeValueError
	// ShapeUnsupported is any other result list.
	ShapeUnsupported
)

// ResultShape returns the Shape of m's results.
func (m MethodRef) ResultShape() Shape {
	switch len(m.Returns) {
	case 0:
		return ShapeNone
	case 1:
		if m.Returns[0].IsError() {
			return ShapeError
		}
		return ShapeValue
	case 2:
		if m.Returns[1].IsError() && !m.Returns[0].IsError() {
			return ShapeValueError
		}
	}
	return ShapeUnsupported
}

func variadicPrefix(p Param) string {
	if p.Variadic {
		return "..."
	}
	return ""
}

// Constructor is the original constructor of a struct target.
type Constructor struct {
	// Name is the constructor function, e.g. "NewCart".
	Name   string
	Params []Param

	// ReturnsError is true when the constructor returns (*T, error).
	ReturnsError bool
}

// AdviceKind selects between wrapping an implementation and synthesizing one.
type AdviceKind int

const (
	// AdviceAround wraps an existing implementation.
	AdviceAround AdviceKind = iota
	// AdviceIntroduction synthesizes the implementation from interceptors.
	AdviceIntroduction
)

// String returns "around" or "introduction".
func (a AdviceKind) String() string {
	if a == AdviceIntroduction {
		return "introduction"
	}
	return "around"
}

// TargetDescriptor identifies the type being proxied.
type TargetDescriptor struct {
	// Name is the Go type name ("Greeter", "Cart").
	Name string

	// Package is the package the proxy is generated into.
	Package string

	// Interface is true for interface targets.
	Interface bool

	Advice AdviceKind

	// Interfaces are extra interfaces the proxy must implement.
	Interfaces []string

	// ProxyName is the generated type name. Defaults to Name+"Proxy".
	ProxyName string

	// ConstructorName is the generated constructor. Defaults to "New"+ProxyName.
	ConstructorName string

	// Reserved are identifiers generated parameters must not take, usually the
	// names of imported packages.
	Reserved []string
}

// TypeExpr returns how the target type is written in Go: "Greeter" or "*Cart".
func (d TargetDescriptor) TypeExpr() string {
	if d.Interface {
		return d.Name
	}
	return "*" + d.Name
}

func (d TargetDescriptor) withDefaults() TargetDescriptor {
	if strings.TrimSpace(d.ProxyName) == "" {
		d.ProxyName = d.Name + "Proxy"
	}
	if strings.TrimSpace(d.ConstructorName) == "" {
		d.ConstructorName = "New" + d.ProxyName
	}
	return d
}

// normalizeParams fills missing names and removes duplicates so every
// parameter can be addressed by name in generated code. Names in reserved are
// never used.
func normalizeParams(params []Param, reserved ...string) []Param {
	out := make([]Param, len(params))
	taken := map[string]bool{}
	for _, r := range reserved {
		taken[r] = true
	}
	for i, p := range params {
		name := strings.TrimSpace(p.Name)
		if name == "" || name == "_" {
			name = "arg" + strconv.Itoa(i)
		}
		name = uniqueName(name, taken)
		taken[name] = true
		p.Name = name
		out[i] = p
	}
	return out
}

func uniqueName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		cand := base + strconv.Itoa(i)
		if !taken[cand] {
			return cand
		}
	}
}
