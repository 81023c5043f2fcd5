package spec

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// Import inference
//
// Rules:
//
// (1) Qualifiers in type expressions resolve through, in order: the spec's own
//     imports, imports of the non-generated files in the output package, and
//     imports of the previously generated file. Anything left is assumed to be
//     a standard library package named like its path (context, time).
// (2) The runtime import comes from the spec, from a package source importing
//     a ".../proxy" path, or from the go.mod of the module holding this
//     generator.
// (3) PackagePath comes from the go.mod above the output directory.

// ErrNoModule is returned when no go.mod is found above a directory.
var ErrNoModule = errors.New("spec: no go.mod found")

const runtimePkgRel = "proxy"

// InferImports completes Imports, Runtime and PackagePath for the output
// directory of the spec.
func (s *ProxySpec) InferImports() error {
	pkgDir := filepath.Dir(s.OutPath())

	scanned := scanPackageImports(pkgDir)
	preserved := readImportsFromFile(s.OutPath())

	if strings.TrimSpace(s.Runtime) == "" {
		if gi, ok := findImportByAliasOrSuffix(scanned, "proxy", "/"+runtimePkgRel); ok {
			s.Runtime = gi.Path
		} else {
			rt, err := runtimeImportFromGeneratorModule()
			if err != nil {
				return err
			}
			s.Runtime = rt
		}
	}

	have := map[string]bool{"proxy": true}
	for _, imp := range s.Imports {
		have[importIdent(imp)] = true
	}
	for _, q := range s.Qualifiers() {
		if have[q] {
			continue
		}
		gi, ok := findImportByIdent(scanned, q)
		if !ok {
			gi, ok = findImportByIdent(preserved, q)
		}
		if !ok {
			continue
		}
		s.Imports = append(s.Imports, gi)
		have[q] = true
	}
	s.Imports = dedupeAndSortImports(s.Imports)

	if strings.TrimSpace(s.PackagePath) == "" {
		if modRoot, modPath, err := findModule(pkgDir); err == nil {
			if p, err := moduleImportPathForDir(modRoot, modPath, pkgDir); err == nil {
				s.PackagePath = p
			}
		}
	}
	return nil
}

// Qualifiers returns the package identifiers used by type expressions in the
// spec, sorted.
func (s *ProxySpec) Qualifiers() []string {
	seen := map[string]bool{}
	add := func(typ string) {
		e, err := parser.ParseExpr(typ)
		if err != nil {
			return
		}
		ast.Inspect(e, func(n ast.Node) bool {
			if sel, ok := n.(*ast.SelectorExpr); ok {
				if id, ok := sel.X.(*ast.Ident); ok {
					seen[id.Name] = true
				}
				return false
			}
			return true
		})
	}
	addParams := func(ps []ParamSpec) {
		for _, p := range ps {
			add(p.Type)
		}
	}
	for _, iface := range s.Interfaces {
		add(iface)
	}
	if s.Constructor != nil {
		addParams(s.Constructor.Params)
	}
	for _, m := range s.Methods {
		addParams(m.Params)
		for _, r := range m.Returns {
			add(r.Type)
		}
	}
	out := make([]string, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// ImportNames are the identifiers the generated file may refer packages by.
// Generated parameters avoid them.
func (s *ProxySpec) ImportNames() []string {
	names := []string{"proxy"}
	for _, imp := range s.Imports {
		names = append(names, importIdent(imp))
	}
	names = append(names, s.Qualifiers()...)
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i > 0 && names[i-1] == n {
			continue
		}
		out = append(out, n)
	}
	return out
}

// runtimeImportFromGeneratorModule computes the runtime import path from the
// go.mod of the module that contains this file.
func runtimeImportFromGeneratorModule() (string, error) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("spec: cannot infer runtime import: runtime.Caller failed")
	}
	modRoot, modPath, err := findModule(filepath.Dir(thisFile))
	if err != nil {
		return "", err
	}
	abs := filepath.Join(modRoot, filepath.FromSlash(runtimePkgRel))
	if !dirExists(abs) {
		return "", &pathError{msg: "spec: expected runtime package dir at " + filepath.ToSlash(abs)}
	}
	return modPath + "/" + runtimePkgRel, nil
}

type pathError struct{ msg string }

func (e *pathError) Error() string { return e.msg }

// -------------------------
// go.mod helpers
// -------------------------

func findModule(startDir string) (modRoot string, modPath string, err error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", "", err
	}
	for {
		gomod := filepath.Join(dir, "go.mod")
		if fileExists(gomod) {
			b, rerr := os.ReadFile(gomod)
			if rerr != nil {
				return "", "", rerr
			}
			mod := modfile.ModulePath(b)
			if mod == "" {
				return "", "", &pathError{msg: "spec: go.mod missing module directive at " + filepath.ToSlash(gomod)}
			}
			return dir, mod, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", ErrNoModule
		}
		dir = parent
	}
}

func moduleImportPathForDir(modRoot, modPath, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(modRoot, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	if rel == "." {
		return modPath, nil
	}
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", &pathError{msg: "spec: directory is outside module root: dir=" + filepath.ToSlash(abs) + " modRoot=" + filepath.ToSlash(modRoot)}
	}
	return modPath + "/" + rel, nil
}

func dirExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// -------------------------
// Imports of package sources
// -------------------------

func importIdent(imp ImportSpec) string {
	if strings.TrimSpace(imp.Name) != "" {
		return imp.Name
	}
	return path.Base(imp.Path)
}

func isGenerated(name string) bool {
	return strings.HasSuffix(name, ".gen.go") || strings.Contains(name, ".gen.") || strings.HasSuffix(name, "_gen.go")
}

// scanPackageImports reads the imports of the non-generated, non-test .go
// files in pkgDir. Aliases are kept.
func scanPackageImports(pkgDir string) []ImportSpec {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil
	}
	var out []ImportSpec
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || isGenerated(name) {
			continue
		}
		out = append(out, readImportsFromFile(filepath.Join(pkgDir, name))...)
	}
	return dedupeAndSortImports(out)
}

func readImportsFromFile(p string) []ImportSpec {
	if strings.TrimSpace(p) == "" {
		return nil
	}
	src, err := os.ReadFile(p)
	if err != nil {
		return nil
	}
	f, err := parser.ParseFile(token.NewFileSet(), p, src, parser.ImportsOnly)
	if err != nil {
		return nil
	}
	out := make([]ImportSpec, 0, len(f.Imports))
	for _, imp := range f.Imports {
		gi := ImportSpec{Path: strings.Trim(imp.Path.Value, `"`)}
		if imp.Name != nil {
			gi.Name = imp.Name.Name
		}
		if gi.Name == "_" || gi.Name == "." {
			continue
		}
		out = append(out, gi)
	}
	return out
}

// findImportByAliasOrSuffix prefers an alias match, then a path suffix match.
func findImportByAliasOrSuffix(imports []ImportSpec, preferAlias, preferSuffix string) (ImportSpec, bool) {
	if preferAlias != "" {
		for _, gi := range imports {
			if gi.Name == preferAlias {
				return gi, true
			}
		}
	}
	if preferSuffix != "" {
		for _, gi := range imports {
			if strings.HasSuffix(gi.Path, preferSuffix) {
				return gi, true
			}
		}
	}
	return ImportSpec{}, false
}

func findImportByIdent(imports []ImportSpec, ident string) (ImportSpec, bool) {
	for _, gi := range imports {
		if importIdent(gi) == ident {
			return gi, true
		}
	}
	return ImportSpec{}, false
}

func dedupeAndSortImports(imps []ImportSpec) []ImportSpec {
	seen := map[ImportSpec]bool{}
	out := make([]ImportSpec, 0, len(imps))
	for _, gi := range imps {
		if seen[gi] {
			continue
		}
		seen[gi] = true
		out = append(out, gi)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path == out[j].Path {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	return out
}
