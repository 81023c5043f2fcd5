// Package spec reads proxy spec files.
//
// A spec sits next to the code it proxies (cart.proxy.json, greeter.proxy.yaml)
// and names the target type, the advice, the resolution switches and the
// methods with their bindings. Generation is driven from a *ProxySpec after
// ApplyDefaults, Validate and Sort have run.
package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a spec file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the format from a file extension. Unknown extensions are JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type TypeSpec struct {
	Type string `json:"type" yaml:"type"`

	// Generic is the declared form of a type that comes from a generic
	// declaration, e.g. "T" for a method promoted from Store[T].
	Generic string `json:"generic,omitempty" yaml:"generic,omitempty"`
}

type ParamSpec struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Generic  string `json:"generic,omitempty" yaml:"generic,omitempty"`
	Variadic bool   `json:"variadic,omitempty" yaml:"variadic,omitempty"`
}

type BindingSpec struct {
	Name string `json:"name" yaml:"name"`

	// Kind is "around", "introduction" or "construct". Defaults depend on
	// where the binding appears.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

type MethodSpec struct {
	Name string `json:"name" yaml:"name"`

	// Declaring is the type that declares the method. Empty means the target.
	Declaring string `json:"declaring,omitempty" yaml:"declaring,omitempty"`

	Params   []ParamSpec   `json:"params,omitempty" yaml:"params,omitempty"`
	Returns  []TypeSpec    `json:"returns,omitempty" yaml:"returns,omitempty"`
	Bindings []BindingSpec `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// ConstructorSpec describes the original constructor of a struct target.
type ConstructorSpec struct {
	Name         string        `json:"name" yaml:"name"`
	Params       []ParamSpec   `json:"params,omitempty" yaml:"params,omitempty"`
	ReturnsError bool          `json:"returnsError,omitempty" yaml:"returnsError,omitempty"`
	Bindings     []BindingSpec `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

type ImportSpec struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Path string `json:"path" yaml:"path"`
}

// ProxySpec is one proxy to generate.
type ProxySpec struct {
	Package string `json:"package" yaml:"package"`

	// Target is the proxied type name in Package.
	Target string `json:"target" yaml:"target"`

	// Interface marks interface targets. Struct targets are proxied through *Target.
	Interface bool `json:"interface,omitempty" yaml:"interface,omitempty"`

	// Advice is "around" (default) or "introduction".
	Advice string `json:"advice,omitempty" yaml:"advice,omitempty"`

	ProxyName       string `json:"proxyName,omitempty" yaml:"proxyName,omitempty"`
	ConstructorName string `json:"constructorName,omitempty" yaml:"constructorName,omitempty"`

	ProxyTarget     bool `json:"proxyTarget,omitempty" yaml:"proxyTarget,omitempty"`
	Lazy            bool `json:"lazy,omitempty" yaml:"lazy,omitempty"`
	CacheLazyTarget bool `json:"cacheLazyTarget,omitempty" yaml:"cacheLazyTarget,omitempty"`
	HotSwap         bool `json:"hotswap,omitempty" yaml:"hotswap,omitempty"`

	// Interfaces are extra interfaces the proxy implements. Their methods are
	// listed in Methods with Declaring set.
	Interfaces []string `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`

	// Bindings apply to every method of the proxy.
	Bindings []BindingSpec `json:"bindings,omitempty" yaml:"bindings,omitempty"`

	// Constructor is the original constructor. Nil means the zero value of
	// the target is used.
	Constructor *ConstructorSpec `json:"constructor,omitempty" yaml:"constructor,omitempty"`

	Methods []MethodSpec `json:"methods,omitempty" yaml:"methods,omitempty"`

	// Imports resolve qualifiers in type expressions.
	Imports []ImportSpec `json:"imports,omitempty" yaml:"imports,omitempty"`

	// Runtime overrides the import path of the proxy runtime package.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// PackagePath is the import path of Package. Inferred when empty.
	PackagePath string `json:"packagePath,omitempty" yaml:"packagePath,omitempty"`

	// Out is the generated file, relative to the spec file.
	Out string `json:"out,omitempty" yaml:"out,omitempty"`

	// Path and Hash are filled by Load.
	Path string `json:"-" yaml:"-"`
	Hash string `json:"-" yaml:"-"`
}

// Load reads and decodes the spec file at path and records its hash.
func Load(path string) (*ProxySpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(raw, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("spec %s: %w", filepath.ToSlash(path), err)
	}
	s.Path = path
	return s, nil
}

// Parse decodes raw as f.
func Parse(raw []byte, f Format) (*ProxySpec, error) {
	var s ProxySpec
	var err error
	if f == FormatYAML {
		err = yaml.Unmarshal(raw, &s)
	} else {
		err = json.Unmarshal(raw, &s)
	}
	if err != nil {
		return nil, err
	}
	s.Hash = sha256Hex(raw)
	return &s, nil
}

// ApplyDefaults fills optional fields.
func (s *ProxySpec) ApplyDefaults() {
	s.Advice = strings.ToLower(strings.TrimSpace(s.Advice))
	if s.Advice == "" {
		s.Advice = "around"
	}
	if strings.TrimSpace(s.ProxyName) == "" {
		s.ProxyName = s.Target + "Proxy"
	}
	if strings.TrimSpace(s.ConstructorName) == "" {
		s.ConstructorName = "New" + s.ProxyName
	}
	if strings.TrimSpace(s.Out) == "" {
		s.Out = snake(s.Target) + "_proxy.gen.go"
	}

	methodKind := "around"
	if s.Advice == "introduction" {
		methodKind = "introduction"
	}
	defaultKinds(s.Bindings, methodKind)
	for i := range s.Methods {
		defaultKinds(s.Methods[i].Bindings, methodKind)
	}
	if s.Constructor != nil {
		defaultKinds(s.Constructor.Bindings, "construct")
	}
}

func defaultKinds(bs []BindingSpec, kind string) {
	for i := range bs {
		if strings.TrimSpace(bs[i].Kind) == "" {
			bs[i].Kind = kind
		}
	}
}

// Sort orders methods by name, then declaring type, then parameter types, so
// the generated file does not depend on the order methods were written in.
func (s *ProxySpec) Sort() {
	sort.SliceStable(s.Methods, func(i, j int) bool {
		a, b := s.Methods[i], s.Methods[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Declaring != b.Declaring {
			return a.Declaring < b.Declaring
		}
		return paramKey(a.Params) < paramKey(b.Params)
	})
	sort.SliceStable(s.Imports, func(i, j int) bool {
		if s.Imports[i].Path == s.Imports[j].Path {
			return s.Imports[i].Name < s.Imports[j].Name
		}
		return s.Imports[i].Path < s.Imports[j].Path
	})
}

func paramKey(ps []ParamSpec) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Type
	}
	return strings.Join(parts, ",")
}

// OutPath is where the generated file goes: Out relative to the spec file.
func (s *ProxySpec) OutPath() string {
	if filepath.IsAbs(s.Out) || s.Path == "" {
		return s.Out
	}
	return filepath.Join(filepath.Dir(s.Path), s.Out)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// snake turns "HTTPClient" into "http_client".
func snake(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := rs[i-1] >= 'a' && rs[i-1] <= 'z'
			nextLower := i+1 < len(rs) && rs[i+1] >= 'a' && rs[i+1] <= 'z'
			if prevLower || (nextLower && rs[i-1] >= 'A' && rs[i-1] <= 'Z') {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
