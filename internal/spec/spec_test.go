package spec_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/oproxy/internal/aop"
	"github.com/sghaida/oproxy/internal/spec"
	"github.com/sghaida/oproxy/proxy"
)

const cartJSON = `{
  "package": "shop",
  "target": "Cart",
  "constructor": {
    "name": "NewCart",
    "params": [{"name": "owner", "type": "string"}],
    "returnsError": true,
    "bindings": [{"name": "audited"}]
  },
  "methods": [
    {"name": "Total", "returns": [{"type": "int"}]},
    {"name": "Add",
     "params": [{"name": "item", "type": "models.Item"}, {"name": "qty", "type": "int"}],
     "returns": [{"type": "int"}, {"type": "error"}],
     "bindings": [{"name": "logged"}]}
  ]
}`

const cartYAML = `
package: shop
target: Cart
constructor:
  name: NewCart
  params:
    - {name: owner, type: string}
  returnsError: true
  bindings:
    - name: audited
methods:
  - name: Total
    returns:
      - type: int
  - name: Add
    params:
      - {name: item, type: models.Item}
      - {name: qty, type: int}
    returns:
      - type: int
      - type: error
    bindings:
      - name: logged
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse_JSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	j, err := spec.Parse([]byte(cartJSON), spec.FormatJSON)
	require.NoError(t, err)
	y, err := spec.Parse([]byte(cartYAML), spec.FormatYAML)
	require.NoError(t, err)

	assert.NotEqual(t, j.Hash, y.Hash)
	assert.Len(t, j.Hash, 64)

	j.Hash, y.Hash = "", ""
	assert.Equal(t, j, y)
}

func TestParse_BadInput(t *testing.T) {
	t.Parallel()

	_, err := spec.Parse([]byte(`{"package": `), spec.FormatJSON)
	require.Error(t, err)

	_, err = spec.Parse([]byte("package: [unclosed"), spec.FormatYAML)
	require.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want spec.Format
	}{
		{"cart.proxy.json", spec.FormatJSON},
		{"cart.proxy.yaml", spec.FormatYAML},
		{"cart.proxy.YML", spec.FormatYAML},
		{"cart.proxy", spec.FormatJSON},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, spec.FormatOf(tt.path))
		})
	}
}

func TestLoad_RecordsPathAndHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "cart.proxy.yaml")
	writeFile(t, p, cartYAML)

	s, err := spec.Load(p)
	require.NoError(t, err)
	assert.Equal(t, p, s.Path)
	assert.NotEmpty(t, s.Hash)
	assert.Equal(t, "Cart", s.Target)

	_, err = spec.Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	s, err := spec.Parse([]byte(cartJSON), spec.FormatJSON)
	require.NoError(t, err)
	s.ApplyDefaults()

	assert.Equal(t, "around", s.Advice)
	assert.Equal(t, "CartProxy", s.ProxyName)
	assert.Equal(t, "NewCartProxy", s.ConstructorName)
	assert.Equal(t, "cart_proxy.gen.go", s.Out)
	assert.Equal(t, "construct", s.Constructor.Bindings[0].Kind)
	assert.Equal(t, "around", s.Methods[1].Bindings[0].Kind)

	intro := &spec.ProxySpec{
		Package:   "greet",
		Target:    "HTTPGreeter",
		Interface: true,
		Advice:    " Introduction ",
		Bindings:  []spec.BindingSpec{{Name: "canned"}},
	}
	intro.ApplyDefaults()
	assert.Equal(t, "introduction", intro.Advice)
	assert.Equal(t, "introduction", intro.Bindings[0].Kind)
	assert.Equal(t, "http_greeter_proxy.gen.go", intro.Out)
}

func TestSort_IsDeterministic(t *testing.T) {
	t.Parallel()

	s := &spec.ProxySpec{
		Methods: []spec.MethodSpec{
			{Name: "Put", Params: []spec.ParamSpec{{Type: "string"}}},
			{Name: "Get", Declaring: "Reader"},
			{Name: "Put", Params: []spec.ParamSpec{{Type: "int"}}},
			{Name: "Get"},
		},
		Imports: []spec.ImportSpec{{Path: "time"}, {Path: "context"}},
	}
	s.Sort()

	var got []string
	for _, m := range s.Methods {
		key := m.Name + "/" + m.Declaring
		if len(m.Params) > 0 {
			key += "/" + m.Params[0].Type
		}
		got = append(got, key)
	}
	assert.Equal(t, []string{"Get/", "Get/Reader", "Put//int", "Put//string"}, got)
	assert.Equal(t, "context", s.Imports[0].Path)
}

func TestOutPath_RelativeToSpec(t *testing.T) {
	t.Parallel()

	s := &spec.ProxySpec{Out: "cart_proxy.gen.go", Path: filepath.Join("examples", "shop", "cart.proxy.json")}
	assert.Equal(t, filepath.Join("examples", "shop", "cart_proxy.gen.go"), s.OutPath())

	abs := filepath.Join(t.TempDir(), "x.gen.go")
	s.Out = abs
	assert.Equal(t, abs, s.OutPath())
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	s, err := spec.Parse([]byte(cartJSON), spec.FormatJSON)
	require.NoError(t, err)
	s.ApplyDefaults()
	require.NoError(t, s.Validate())
}

func TestValidate_CollectsProblems(t *testing.T) {
	t.Parallel()

	s := &spec.ProxySpec{
		Package:   "my-pkg",
		Interface: true,
		Advice:    "before",
		Bindings:  []spec.BindingSpec{{Name: ""}, {Name: "x", Kind: "weird"}},
		Constructor: &spec.ConstructorSpec{
			Name:     "NewThing",
			Params:   []spec.ParamSpec{{Name: "a", Type: "int", Variadic: true}, {Name: "b", Type: ""}},
			Bindings: []spec.BindingSpec{{Name: "logged", Kind: "around"}},
		},
		Methods: []spec.MethodSpec{
			{Name: "1bad"},
			{Name: "Get", Declaring: "Stranger", Returns: []spec.TypeSpec{{Type: "map[string"}}},
			{Name: "Put", Bindings: []spec.BindingSpec{{Name: "c", Kind: "construct"}}},
		},
		Imports: []spec.ImportSpec{
			{Path: "example.com/a/models"},
			{Path: "example.com/b/models"},
			{Name: "x"},
		},
	}

	err := s.Validate()
	require.Error(t, err)

	var ve *spec.ValidationError
	require.ErrorAs(t, err, &ve)

	want := []string{
		"missing target",
		`package "my-pkg" is not an identifier`,
		`advice must be one of: around|introduction (got "before")`,
		"bindings: binding without name",
		`bindings: binding "x" has unknown kind "weird"`,
		"constructor set on interface target",
		"constructor NewThing param 0: only the last parameter can be variadic",
		"constructor NewThing param 1: missing type",
		`constructor.bindings: binding "logged" cannot be of kind around`,
		`methods[0]: name "1bad" is not an identifier`,
		`method Get: declaring type "Stranger" is neither the target nor an extra interface`,
		`method Get returns[0]: type "map[string" does not parse`,
		`method Put bindings: binding "c" cannot be of kind construct`,
		`imports "example.com/a/models" and "example.com/b/models" share the name models`,
		`import "x" has no path`,
	}
	for _, w := range want {
		assert.Contains(t, ve.Problems, w)
	}
	assert.Contains(t, err.Error(), "spec: missing target; ")
}

func TestVisit_DrivesSynthesizer(t *testing.T) {
	t.Parallel()

	s, err := spec.Parse([]byte(cartJSON), spec.FormatJSON)
	require.NoError(t, err)
	s.Imports = []spec.ImportSpec{{Path: "example.com/app/models"}}
	s.ApplyDefaults()
	s.Sort()
	require.NoError(t, s.Validate())

	d := s.Descriptor()
	assert.Equal(t, "Cart", d.Name)
	assert.Equal(t, aop.AdviceAround, d.Advice)
	assert.Equal(t, []string{"models", "proxy"}, d.Reserved)

	syn, err := aop.NewSynthesizer(d, s.Options())
	require.NoError(t, err)
	require.NoError(t, s.Visit(syn))

	p, err := syn.VisitEnd()
	require.NoError(t, err)
	require.Len(t, p.Slots, 1)
	assert.Equal(t, "Add", p.Slots[0].Name())
	assert.Equal(t, "Cart", p.Slots[0].Ref.Declaring)
	assert.True(t, p.Bindings.Contains(proxy.AroundConstruct("audited")))
	assert.True(t, p.Bindings.Contains(proxy.Around("logged")))
}

func TestVisit_ReportsEngineErrors(t *testing.T) {
	t.Parallel()

	s := &spec.ProxySpec{
		Package:  "shop",
		Target:   "Cart",
		Advice:   "around",
		Bindings: []spec.BindingSpec{{Name: "intro", Kind: "introduction"}},
		Methods:  []spec.MethodSpec{{Name: "Total"}},
	}
	syn, err := aop.NewSynthesizer(s.Descriptor(), s.Options())
	require.NoError(t, err)

	err = s.Visit(syn)
	var ce *aop.ConfigError
	require.ErrorAs(t, err, &ce)
}
