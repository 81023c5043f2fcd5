// Package gogen lowers a synthesized proxy type into Go source.
//
// The engine in internal/aop only describes fields, constructor statements
// and method bodies. This package decides how each of them reads in Go and
// renders the file with jennifer, which also formats it.
package gogen

import (
	"bytes"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dave/jennifer/jen"

	"github.com/sghaida/oproxy/internal/aop"
)

// DefaultRuntimePath is the import path of the runtime package generated code uses.
const DefaultRuntimePath = "github.com/sghaida/oproxy/proxy"

// Options control the rendered file.
type Options struct {
	// Generator names the tool in the "Code generated" header.
	Generator string

	// SpecPath and SpecHash are recorded in the header when set.
	SpecPath string
	SpecHash string

	// PackagePath is the import path of the package the file belongs to.
	// Optional; it lets type expressions qualified with the own package render
	// unqualified.
	PackagePath string

	// RuntimePath overrides DefaultRuntimePath.
	RuntimePath string

	// Imports resolve package qualifiers used in type expressions.
	Imports []Import
}

// Render lowers p into a formatted Go source file.
func Render(p *aop.ProxyType, o Options) ([]byte, error) {
	r := newRenderer(p, o)
	f := r.file()
	if r.err != nil {
		return nil, r.err
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type renderer struct {
	p    *aop.ProxyType
	o    Options
	rt   string
	conv *typeConv

	// err is the first lowering error; later calls keep producing placeholder
	// code so the walk does not need to check after every step.
	err error
}

func newRenderer(p *aop.ProxyType, o Options) *renderer {
	if strings.TrimSpace(o.Generator) == "" {
		o.Generator = "proxygen"
	}
	rt := o.RuntimePath
	if strings.TrimSpace(rt) == "" {
		rt = DefaultRuntimePath
	}
	imports := append([]Import{{Name: "proxy", Path: rt}}, o.Imports...)
	return &renderer{p: p, o: o, rt: rt, conv: newTypeConv(imports)}
}

func (r *renderer) file() *jen.File {
	var f *jen.File
	if r.o.PackagePath != "" {
		f = jen.NewFilePathName(r.o.PackagePath, r.p.Package)
	} else {
		f = jen.NewFile(r.p.Package)
	}
	f.HeaderComment("Code generated by " + r.o.Generator + "; DO NOT EDIT.")
	if r.o.SpecPath != "" {
		f.HeaderComment("Spec: " + r.o.SpecPath)
	}
	if r.o.SpecHash != "" {
		f.HeaderComment("Spec-SHA256: " + r.o.SpecHash)
	}

	f.ImportName(r.rt, "proxy")
	for _, imp := range r.o.Imports {
		if strings.TrimSpace(imp.Path) == "" || imp.Path == r.o.PackagePath {
			continue
		}
		if imp.Name != "" && imp.Name != path.Base(imp.Path) {
			f.ImportAlias(imp.Path, imp.Name)
		} else {
			f.ImportName(imp.Path, path.Base(imp.Path))
		}
	}

	r.declarations(f)
	r.structType(f)
	r.constructor(f)
	for _, m := range r.p.Methods {
		r.method(f, m)
	}
	return f
}

func (r *renderer) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// typ lowers a type expression.
func (r *renderer) typ(s string) *jen.Statement {
	st, err := r.conv.parse(s)
	if err != nil {
		r.fail(err)
		return jen.Id("any")
	}
	return st
}

// paramType is the declared type of p; variadic parameters become slices
// wherever they are not the last parameter of a signature.
func (r *renderer) paramType(p aop.Param) *jen.Statement {
	if p.Variadic {
		return jen.Index().Add(r.typ(p.Type.Type))
	}
	return r.typ(p.Type.Type)
}

func (r *renderer) rtQual(name string) *jen.Statement { return jen.Qual(r.rt, name) }

// targetType is the target as Go spells it: Greeter or *Cart.
func (r *renderer) targetType() *jen.Statement { return r.typ(r.p.Target.TypeExpr()) }

func (r *renderer) proxyPtr() *jen.Statement { return jen.Op("*").Id(r.p.Name) }

func (r *renderer) bindingsVar() string  { return r.p.Name + "Bindings" }
func (r *renderer) definitionVar() string { return r.p.Name + "Definition" }
func (r *renderer) tableVar() string      { return lowerFirst(r.p.Name) + "Methods" }
func (r *renderer) ctorMethodVar() string { return lowerFirst(r.p.Name) + "Constructor" }

func (r *renderer) fieldName(role aop.FieldRole) string {
	f, ok := r.p.Field(role)
	if !ok {
		r.fail(&TypeError{Expr: r.p.Name, Reason: "proxy has no field for role " + roleName(role)})
	}
	return f.Name
}

func (r *renderer) pxField(role aop.FieldRole) *jen.Statement {
	return jen.Id("px").Dot(r.fieldName(role))
}

func lowerFirst(s string) string {
	c, n := utf8.DecodeRuneInString(s)
	if c == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(c)) + s[n:]
}

func roleName(role aop.FieldRole) string {
	switch role {
	case aop.FieldEmbedded:
		return "embedded"
	case aop.FieldTarget:
		return "target"
	case aop.FieldTargetMutex:
		return "target mutex"
	case aop.FieldTargetLock:
		return "target lock"
	case aop.FieldResolutionContext:
		return "resolution context"
	case aop.FieldLocator:
		return "locator"
	case aop.FieldQualifier:
		return "qualifier"
	default:
		return "interceptors"
	}
}
