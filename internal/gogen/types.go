package gogen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
)

// Import is one import the rendered file may reference through a qualifier.
type Import struct {
	// Name is the identifier used in type expressions. Empty means the last
	// path element.
	Name string
	Path string
}

// Ident returns the identifier the import is referenced by.
func (i Import) Ident() string {
	if strings.TrimSpace(i.Name) != "" {
		return i.Name
	}
	return path.Base(i.Path)
}

// TypeError reports a type expression the back-end cannot lower.
type TypeError struct {
	Expr   string
	Reason string
}

func (e *TypeError) Error() string {
	return "gogen: type " + strconv.Quote(e.Expr) + ": " + e.Reason
}

// typeConv lowers type expressions written as Go source into jennifer code.
//
// A qualifier resolves through the import table; unknown qualifiers are taken
// as import paths of their own (context, time, io).
type typeConv struct {
	byIdent map[string]string
}

func newTypeConv(imports []Import) *typeConv {
	c := &typeConv{byIdent: map[string]string{}}
	for _, imp := range imports {
		if strings.TrimSpace(imp.Path) == "" {
			continue
		}
		c.byIdent[imp.Ident()] = imp.Path
	}
	return c
}

func (c *typeConv) parse(typ string) (*jen.Statement, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return nil, &TypeError{Expr: typ, Reason: "empty"}
	}
	expr, err := parser.ParseExpr(typ)
	if err != nil {
		return nil, &TypeError{Expr: typ, Reason: err.Error()}
	}
	return c.expr(typ, expr)
}

func (c *typeConv) expr(src string, e ast.Expr) (*jen.Statement, error) {
	switch x := e.(type) {
	case *ast.Ident:
		return jen.Id(x.Name), nil
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		if !ok {
			return nil, &TypeError{Expr: src, Reason: "qualifier is not an identifier"}
		}
		p, ok := c.byIdent[pkg.Name]
		if !ok {
			p = pkg.Name
		}
		return jen.Qual(p, x.Sel.Name), nil
	case *ast.StarExpr:
		inner, err := c.expr(src, x.X)
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(inner), nil
	case *ast.ParenExpr:
		inner, err := c.expr(src, x.X)
		if err != nil {
			return nil, err
		}
		return jen.Parens(inner), nil
	case *ast.ArrayType:
		elt, err := c.expr(src, x.Elt)
		if err != nil {
			return nil, err
		}
		if x.Len == nil {
			return jen.Index().Add(elt), nil
		}
		lit, ok := x.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return nil, &TypeError{Expr: src, Reason: "array length must be an integer literal"}
		}
		return jen.Index(jen.Id(lit.Value)).Add(elt), nil
	case *ast.MapType:
		key, err := c.expr(src, x.Key)
		if err != nil {
			return nil, err
		}
		val, err := c.expr(src, x.Value)
		if err != nil {
			return nil, err
		}
		return jen.Map(key).Add(val), nil
	case *ast.ChanType:
		val, err := c.expr(src, x.Value)
		if err != nil {
			return nil, err
		}
		switch x.Dir {
		case ast.SEND:
			return jen.Chan().Op("<-").Add(val), nil
		case ast.RECV:
			return jen.Op("<-").Chan().Add(val), nil
		default:
			return jen.Chan().Add(val), nil
		}
	case *ast.FuncType:
		params, err := c.fields(src, x.Params)
		if err != nil {
			return nil, err
		}
		results, err := c.fields(src, x.Results)
		if err != nil {
			return nil, err
		}
		return jen.Func().Params(params...).Params(results...), nil
	case *ast.Ellipsis:
		elt, err := c.expr(src, x.Elt)
		if err != nil {
			return nil, err
		}
		return jen.Op("...").Add(elt), nil
	case *ast.IndexExpr:
		base, err := c.expr(src, x.X)
		if err != nil {
			return nil, err
		}
		arg, err := c.expr(src, x.Index)
		if err != nil {
			return nil, err
		}
		return base.Types(arg), nil
	case *ast.IndexListExpr:
		base, err := c.expr(src, x.X)
		if err != nil {
			return nil, err
		}
		args := make([]jen.Code, 0, len(x.Indices))
		for _, ix := range x.Indices {
			a, err := c.expr(src, ix)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return base.Types(args...), nil
	case *ast.InterfaceType:
		if x.Methods != nil && len(x.Methods.List) > 0 {
			return nil, &TypeError{Expr: src, Reason: "inline interfaces with methods are not supported"}
		}
		return jen.Interface(), nil
	case *ast.StructType:
		if x.Fields != nil && len(x.Fields.List) > 0 {
			return nil, &TypeError{Expr: src, Reason: "inline structs with fields are not supported"}
		}
		return jen.Struct(), nil
	}
	return nil, &TypeError{Expr: src, Reason: "unsupported expression"}
}

func (c *typeConv) fields(src string, fl *ast.FieldList) ([]jen.Code, error) {
	if fl == nil {
		return nil, nil
	}
	var out []jen.Code
	for _, f := range fl.List {
		t, err := c.expr(src, f.Type)
		if err != nil {
			return nil, err
		}
		if len(f.Names) == 0 {
			out = append(out, t)
			continue
		}
		for _, n := range f.Names {
			out = append(out, jen.Id(n.Name).Add(t.Clone()))
		}
	}
	return out, nil
}
