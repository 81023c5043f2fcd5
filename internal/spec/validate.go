package spec

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/sghaida/oproxy/proxy"
)

// ValidationError lists every problem found in a spec.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	prefix := "spec"
	if e.Path != "" {
		prefix += " " + strconv.Quote(e.Path)
	}
	return prefix + ": " + strings.Join(e.Problems, "; ")
}

type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks the spec for problems that do not need the engine to find.
// Semantic combinations (introduction on a struct, lazy without a proxy
// target) are reported later by the synthesizer.
func (s *ProxySpec) Validate() error {
	var p problems

	req := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			p.addf("missing %s", name)
		}
	}
	req("package", s.Package)
	req("target", s.Target)

	if s.Package != "" && !token.IsIdentifier(s.Package) {
		p.addf("package %s is not an identifier", strconv.Quote(s.Package))
	}
	for _, n := range []struct{ what, v string }{
		{"target", s.Target},
		{"proxyName", s.ProxyName},
		{"constructorName", s.ConstructorName},
	} {
		if n.v != "" && !token.IsIdentifier(n.v) {
			p.addf("%s %s is not an identifier", n.what, strconv.Quote(n.v))
		}
	}

	switch s.Advice {
	case "", "around", "introduction":
	default:
		p.addf("advice must be one of: around|introduction (got %s)", strconv.Quote(s.Advice))
	}

	checkBindings(&p, "bindings", s.Bindings, proxy.KindAround, proxy.KindIntroduction, proxy.KindAroundConstruct)

	if c := s.Constructor; c != nil {
		if s.Interface {
			p.addf("constructor set on interface target")
		}
		if !token.IsIdentifier(c.Name) {
			p.addf("constructor.name %s is not an identifier", strconv.Quote(c.Name))
		}
		checkParams(&p, "constructor "+c.Name, c.Params)
		checkBindings(&p, "constructor.bindings", c.Bindings, proxy.KindAroundConstruct)
	}

	declaring := map[string]bool{"": true, s.Target: true}
	for _, iface := range s.Interfaces {
		checkType(&p, "interfaces", iface)
		declaring[iface] = true
	}

	for i, m := range s.Methods {
		where := "methods[" + strconv.Itoa(i) + "]"
		if !token.IsIdentifier(m.Name) {
			p.addf("%s: name %s is not an identifier", where, strconv.Quote(m.Name))
			continue
		}
		where = "method " + m.Name
		if !declaring[m.Declaring] {
			p.addf("%s: declaring type %s is neither the target nor an extra interface", where, strconv.Quote(m.Declaring))
		}
		checkParams(&p, where, m.Params)
		for j, r := range m.Returns {
			checkType(&p, where+" returns["+strconv.Itoa(j)+"]", r.Type)
		}
		checkBindings(&p, where+" bindings", m.Bindings, proxy.KindAround, proxy.KindIntroduction)
	}

	idents := map[string]string{}
	for _, imp := range s.Imports {
		if strings.TrimSpace(imp.Path) == "" {
			p.addf("import %s has no path", strconv.Quote(imp.Name))
			continue
		}
		id := importIdent(imp)
		if prev, ok := idents[id]; ok && prev != imp.Path {
			p.addf("imports %s and %s share the name %s", strconv.Quote(prev), strconv.Quote(imp.Path), id)
		}
		idents[id] = imp.Path
	}

	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Path: s.Path, Problems: p}
}

func checkParams(p *problems, where string, ps []ParamSpec) {
	for i, prm := range ps {
		at := where + " param " + strconv.Itoa(i)
		if prm.Name != "" && prm.Name != "_" && !token.IsIdentifier(prm.Name) {
			p.addf("%s: name %s is not an identifier", at, strconv.Quote(prm.Name))
		}
		checkType(p, at, prm.Type)
		if prm.Variadic && i != len(ps)-1 {
			p.addf("%s: only the last parameter can be variadic", at)
		}
	}
}

func checkType(p *problems, where, typ string) {
	if strings.TrimSpace(typ) == "" {
		p.addf("%s: missing type", where)
		return
	}
	e, err := parser.ParseExpr(typ)
	if err != nil {
		p.addf("%s: type %s does not parse", where, strconv.Quote(typ))
		return
	}
	if _, lit := e.(*ast.BasicLit); lit {
		p.addf("%s: %s is not a type", where, strconv.Quote(typ))
	}
}

func checkBindings(p *problems, where string, bs []BindingSpec, allowed ...proxy.BindingKind) {
	for _, b := range bs {
		if strings.TrimSpace(b.Name) == "" {
			p.addf("%s: binding without name", where)
			continue
		}
		k, ok := proxy.ParseBindingKind(b.Kind)
		if !ok {
			p.addf("%s: binding %s has unknown kind %s", where, strconv.Quote(b.Name), strconv.Quote(b.Kind))
			continue
		}
		if !kindIn(k, allowed) {
			p.addf("%s: binding %s cannot be of kind %s", where, strconv.Quote(b.Name), k.String())
		}
	}
}

func kindIn(k proxy.BindingKind, ks []proxy.BindingKind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}
