// Package loader completes a proxy spec from the Go package it targets.
//
// With a loader, a spec only has to name the target and the bindings; method
// signatures, the original constructor and the imports the signatures need
// come from type-checking the package.
package loader

import (
	"context"
	"errors"
	"go/types"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/sghaida/oproxy/internal/spec"
)

const loadMode = packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedImports

// Error reports a spec that does not match the loaded package.
type Error struct {
	Package string
	Reason  string
}

func (e *Error) Error() string {
	return "loader: package " + strconv.Quote(e.Package) + ": " + e.Reason
}

// Fill type-checks the package in dir and completes s in place:
//
//   - Package, PackagePath and Interface from the package and target type
//   - every exported method of the target and of each extra interface;
//     methods already in s keep their bindings
//   - the original constructor New<Target> for struct targets, or the
//     parameters of the named one
//   - imports for the packages the signatures reference
func Fill(ctx context.Context, dir string, s *spec.ProxySpec) error {
	cfg := &packages.Config{Context: ctx, Dir: dir, Mode: loadMode}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return err
	}
	if len(pkgs) != 1 {
		return &Error{Package: dir, Reason: "expected one package, found " + strconv.Itoa(len(pkgs))}
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		msgs := make([]string, len(pkg.Errors))
		for i, e := range pkg.Errors {
			msgs[i] = e.Error()
		}
		return &Error{Package: pkg.PkgPath, Reason: strings.Join(msgs, "; ")}
	}

	f := newFiller(pkg, s)
	return f.fill()
}

type filler struct {
	pkg *packages.Package
	s   *spec.ProxySpec

	// aliases maps import paths to the names the package sources use.
	aliases map[string]string
	imports map[string]spec.ImportSpec
}

func newFiller(pkg *packages.Package, s *spec.ProxySpec) *filler {
	f := &filler{pkg: pkg, s: s, aliases: map[string]string{}, imports: map[string]spec.ImportSpec{}}
	for _, file := range pkg.Syntax {
		for _, imp := range file.Imports {
			if imp.Name == nil || imp.Name.Name == "_" || imp.Name.Name == "." {
				continue
			}
			p, err := strconv.Unquote(imp.Path.Value)
			if err == nil {
				f.aliases[p] = imp.Name.Name
			}
		}
	}
	for _, imp := range s.Imports {
		f.imports[imp.Path] = imp
	}
	return f
}

func (f *filler) fill() error {
	if f.s.Package == "" {
		f.s.Package = f.pkg.Name
	}
	if f.s.PackagePath == "" {
		f.s.PackagePath = f.pkg.PkgPath
	}

	named, err := f.lookupNamed(f.s.Target)
	if err != nil {
		return err
	}
	_, isIface := named.Underlying().(*types.Interface)
	f.s.Interface = isIface

	loaded := f.methodsOf(named, "")
	for _, iface := range f.s.Interfaces {
		n, err := f.lookupNamed(iface)
		if err != nil {
			return err
		}
		if _, ok := n.Underlying().(*types.Interface); !ok {
			return &Error{Package: f.pkg.PkgPath, Reason: strconv.Quote(iface) + " is not an interface"}
		}
		loaded = append(loaded, f.methodsOf(n, iface)...)
	}
	if err := f.merge(loaded); err != nil {
		return err
	}

	if !isIface {
		if err := f.constructor(named); err != nil {
			return err
		}
	}

	f.s.Imports = f.s.Imports[:0]
	for _, imp := range f.imports {
		f.s.Imports = append(f.s.Imports, imp)
	}
	f.s.Sort()
	return nil
}

// lookupNamed resolves "Name" in the package or "pkg.Name" through its imports.
func (f *filler) lookupNamed(name string) (*types.Named, error) {
	scope := f.pkg.Types.Scope()
	if q, sel, ok := strings.Cut(name, "."); ok {
		scope = nil
		for _, imp := range f.pkg.Types.Imports() {
			if f.identFor(imp) == q {
				scope = imp.Scope()
				break
			}
		}
		if scope == nil {
			return nil, &Error{Package: f.pkg.PkgPath, Reason: "no import for " + strconv.Quote(q)}
		}
		name = sel
	}
	obj, ok := scope.Lookup(name).(*types.TypeName)
	if !ok {
		return nil, &Error{Package: f.pkg.PkgPath, Reason: "type " + strconv.Quote(name) + " not found"}
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return nil, &Error{Package: f.pkg.PkgPath, Reason: strconv.Quote(name) + " is not a named type"}
	}
	return named, nil
}

func (f *filler) identFor(p *types.Package) string {
	if a, ok := f.aliases[p.Path()]; ok {
		return a
	}
	return p.Name()
}

// qualifier writes types as the package sources would and records imports.
func (f *filler) qualifier(p *types.Package) string {
	if p == f.pkg.Types {
		return ""
	}
	id := f.identFor(p)
	if _, ok := f.imports[p.Path()]; !ok {
		imp := spec.ImportSpec{Path: p.Path()}
		if id != path.Base(p.Path()) {
			imp.Name = id
		}
		f.imports[p.Path()] = imp
	}
	return id
}

func (f *filler) typeString(t types.Type) string { return types.TypeString(t, f.qualifier) }

func (f *filler) methodsOf(named *types.Named, declaring string) []spec.MethodSpec {
	var recv types.Type = named
	if _, ok := named.Underlying().(*types.Interface); !ok {
		recv = types.NewPointer(named)
	}
	ms := types.NewMethodSet(recv)
	out := make([]spec.MethodSpec, 0, ms.Len())
	for i := 0; i < ms.Len(); i++ {
		fn, ok := ms.At(i).Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		out = append(out, f.method(fn, declaring))
	}
	return out
}

func (f *filler) method(fn *types.Func, declaring string) spec.MethodSpec {
	sig := fn.Type().(*types.Signature)
	var generic *types.Signature
	if o := fn.Origin(); o != fn {
		generic = o.Type().(*types.Signature)
	}

	m := spec.MethodSpec{Name: fn.Name(), Declaring: declaring}
	m.Params = f.params(sig, generic)
	for i := 0; i < sig.Results().Len(); i++ {
		r := spec.TypeSpec{Type: f.typeString(sig.Results().At(i).Type())}
		if generic != nil {
			if g := f.typeString(generic.Results().At(i).Type()); g != r.Type {
				r.Generic = g
			}
		}
		m.Returns = append(m.Returns, r)
	}
	return m
}

func (f *filler) params(sig, generic *types.Signature) []spec.ParamSpec {
	var out []spec.ParamSpec
	n := sig.Params().Len()
	for i := 0; i < n; i++ {
		v := sig.Params().At(i)
		t := v.Type()
		variadic := sig.Variadic() && i == n-1
		if variadic {
			t = t.(*types.Slice).Elem()
		}
		p := spec.ParamSpec{Name: v.Name(), Type: f.typeString(t), Variadic: variadic}
		if generic != nil {
			gt := generic.Params().At(i).Type()
			if variadic {
				gt = gt.(*types.Slice).Elem()
			}
			if g := f.typeString(gt); g != p.Type {
				p.Generic = g
			}
		}
		out = append(out, p)
	}
	return out
}

// merge replaces the spec's methods with the loaded ones, carrying bindings
// over by name and declaring type.
func (f *filler) merge(loaded []spec.MethodSpec) error {
	type key struct{ name, declaring string }
	declaring := func(d string) string {
		if d == f.s.Target {
			return ""
		}
		return d
	}
	bindings := map[key][]spec.BindingSpec{}
	for _, m := range f.s.Methods {
		k := key{m.Name, declaring(m.Declaring)}
		bindings[k] = append(bindings[k], m.Bindings...)
	}
	seen := map[key]bool{}
	for i := range loaded {
		k := key{loaded[i].Name, loaded[i].Declaring}
		loaded[i].Bindings = bindings[k]
		seen[k] = true
	}
	var missing []string
	for k := range bindings {
		if !seen[k] {
			missing = append(missing, k.name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &Error{Package: f.pkg.PkgPath, Reason: "methods not found: " + strings.Join(missing, ", ")}
	}
	f.s.Methods = loaded
	return nil
}

var errNoConstructor = errors.New("no constructor")

func (f *filler) constructor(named *types.Named) error {
	name := "New" + f.s.Target
	if f.s.Constructor != nil {
		if len(f.s.Constructor.Params) > 0 {
			return nil
		}
		name = f.s.Constructor.Name
	}
	c, err := f.lookupConstructor(name, named)
	switch {
	case errors.Is(err, errNoConstructor) && f.s.Constructor == nil:
		return nil
	case err != nil:
		return &Error{Package: f.pkg.PkgPath, Reason: "constructor " + strconv.Quote(name) + ": " + err.Error()}
	}
	if f.s.Constructor != nil {
		c.Bindings = f.s.Constructor.Bindings
	}
	f.s.Constructor = c
	return nil
}

func (f *filler) lookupConstructor(name string, named *types.Named) (*spec.ConstructorSpec, error) {
	fn, ok := f.pkg.Types.Scope().Lookup(name).(*types.Func)
	if !ok {
		return nil, errNoConstructor
	}
	sig := fn.Type().(*types.Signature)
	res := sig.Results()
	want := types.NewPointer(named)
	switch {
	case res.Len() == 1 && types.Identical(res.At(0).Type(), want):
	case res.Len() == 2 && types.Identical(res.At(0).Type(), want) && isError(res.At(1).Type()):
	default:
		return nil, errors.New("must return *" + f.s.Target + " or (*" + f.s.Target + ", error)")
	}
	return &spec.ConstructorSpec{
		Name:         name,
		Params:       f.params(sig, nil),
		ReturnsError: res.Len() == 2,
	}, nil
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}
