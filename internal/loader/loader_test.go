package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/oproxy/internal/loader"
	"github.com/sghaida/oproxy/internal/spec"
)

const shopSrc = `package shop

import (
	"context"
	"io"

	m "example.com/app/models"
)

type Store[T any] struct{}

func (s *Store[T]) Put(ctx context.Context, v T) error { return nil }

type Cart struct {
	*Store[m.Item]
}

func NewCart(owner string, tags ...string) (*Cart, error) { return &Cart{}, nil }

func (c *Cart) Add(item m.Item, qty int) (int, error) { return qty, nil }
func (c *Cart) Total() int                           { return 0 }
func (c *Cart) internal()                            {}

type Greeter interface {
	Greet(name string) string
	io.Closer
}

var _ io.Reader
`

const modelsSrc = `package models

type Item struct{ SKU string }
`

func module(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("loads packages through the go command")
	}
	root := t.TempDir()
	files := map[string]string{
		"go.mod":           "module example.com/app\n\ngo 1.21\n",
		"models/models.go": modelsSrc,
		"shop/shop.go":     shopSrc,
	}
	for name, src := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	}
	return filepath.Join(root, "shop")
}

func TestFill_StructTarget(t *testing.T) {
	dir := module(t)

	s := &spec.ProxySpec{
		Target: "Cart",
		Methods: []spec.MethodSpec{
			{Name: "Add", Bindings: []spec.BindingSpec{{Name: "logged"}}},
		},
		Constructor: &spec.ConstructorSpec{Name: "NewCart", Bindings: []spec.BindingSpec{{Name: "audited"}}},
	}
	require.NoError(t, loader.Fill(context.Background(), dir, s))

	assert.Equal(t, "shop", s.Package)
	assert.Equal(t, "example.com/app/shop", s.PackagePath)
	assert.False(t, s.Interface)

	require.Len(t, s.Methods, 3)
	add, put, total := s.Methods[0], s.Methods[1], s.Methods[2]

	assert.Equal(t, "Add", add.Name)
	assert.Equal(t, []spec.ParamSpec{{Name: "item", Type: "m.Item"}, {Name: "qty", Type: "int"}}, add.Params)
	assert.Equal(t, []spec.TypeSpec{{Type: "int"}, {Type: "error"}}, add.Returns)
	assert.Equal(t, []spec.BindingSpec{{Name: "logged"}}, add.Bindings)

	assert.Equal(t, "Put", put.Name)
	assert.Equal(t, "m.Item", put.Params[1].Type)
	assert.Equal(t, "T", put.Params[1].Generic)
	assert.Equal(t, "context.Context", put.Params[0].Type)
	assert.Empty(t, put.Params[0].Generic)

	assert.Equal(t, "Total", total.Name)
	assert.Empty(t, total.Bindings)

	require.NotNil(t, s.Constructor)
	assert.True(t, s.Constructor.ReturnsError)
	assert.Equal(t, []spec.ParamSpec{{Name: "owner", Type: "string"}, {Name: "tags", Type: "string", Variadic: true}}, s.Constructor.Params)
	assert.Equal(t, []spec.BindingSpec{{Name: "audited"}}, s.Constructor.Bindings)

	assert.Equal(t, []spec.ImportSpec{
		{Path: "context"},
		{Name: "m", Path: "example.com/app/models"},
	}, s.Imports)
}

func TestFill_InterfaceWithExtraInterface(t *testing.T) {
	dir := module(t)

	s := &spec.ProxySpec{Target: "Greeter", Interfaces: []string{"io.Reader"}}
	require.NoError(t, loader.Fill(context.Background(), dir, s))

	assert.True(t, s.Interface)
	assert.Nil(t, s.Constructor)

	var names []string
	for _, m := range s.Methods {
		names = append(names, m.Name+"@"+m.Declaring)
	}
	assert.Equal(t, []string{"Close@", "Greet@", "Read@io.Reader"}, names)
}

func TestFill_Errors(t *testing.T) {
	dir := module(t)
	ctx := context.Background()

	tests := []struct {
		name string
		s    *spec.ProxySpec
		want string
	}{
		{"unknown target", &spec.ProxySpec{Target: "Missing"}, `type "Missing" not found`},
		{"unknown method", &spec.ProxySpec{Target: "Cart", Methods: []spec.MethodSpec{{Name: "Nope"}}}, "methods not found: Nope"},
		{"not an interface", &spec.ProxySpec{Target: "Greeter", Interfaces: []string{"Cart"}}, `"Cart" is not an interface`},
		{"bad constructor", &spec.ProxySpec{Target: "Cart", Constructor: &spec.ConstructorSpec{Name: "Missing"}}, `constructor "Missing"`},
		{"unknown qualifier", &spec.ProxySpec{Target: "Greeter", Interfaces: []string{"fmt.Stringer"}}, `no import for "fmt"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := loader.Fill(ctx, dir, tt.s)
			var le *loader.Error
			require.ErrorAs(t, err, &le)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
