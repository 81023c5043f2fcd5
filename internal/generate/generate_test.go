package generate_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/oproxy/internal/aop"
	"github.com/sghaida/oproxy/internal/generate"
	"github.com/sghaida/oproxy/internal/spec"
	"github.com/sghaida/oproxy/internal/writer"
)

const greeterSpec = `{
  "package": "greet",
  "target": "Greeter",
  "interface": true,
  "proxyTarget": true,
  "lazy": true,
  "hotswap": true,
  "runtime": "github.com/sghaida/oproxy/proxy",
  "packagePath": "example.com/app/greet",
  "methods": [
    {"name": "Greet",
     "params": [{"name": "ctx", "type": "context.Context"}, {"name": "name", "type": "string"}],
     "returns": [{"type": "string"}, {"type": "error"}],
     "bindings": [{"name": "logged"}]},
    {"name": "Close", "returns": [{"type": "error"}]}
  ]
}`

func writeSpec(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestFile_WritesOnce(t *testing.T) {
	t.Parallel()

	p := writeSpec(t, "greeter.proxy.json", greeterSpec)
	w := writer.NewMemoryWriter()

	res, err := generate.File(context.Background(), p, generate.Options{Logger: quietLogger()}, w)
	require.NoError(t, err)

	assert.Equal(t, 1, w.Calls())
	assert.Equal(t, filepath.Join(filepath.Dir(p), "greeter_proxy.gen.go"), res.Path)
	assert.Equal(t, "GreeterProxy", res.Type)
	assert.Equal(t, aop.ModeLazy, res.Mode)
	assert.Equal(t, 1, res.Slots)
	assert.Equal(t, []string{"lazy and hotswap are exclusive; using lazy"}, res.Notes)

	a, ok := w.Get(res.Path)
	require.True(t, ok)
	assert.Equal(t, "GreeterProxy", a.Type)
	assert.Equal(t, res.Source, a.Source)

	src := string(a.Source)
	assert.Contains(t, src, "// Code generated by proxygen; DO NOT EDIT.")
	assert.Contains(t, src, "// Spec: greeter.proxy.json")
	assert.Contains(t, src, "package greet")
	assert.Contains(t, src, `"context"`)
	assert.Contains(t, src, "func (px *GreeterProxy) Greet(ctx context.Context, name string) (string, error) {")
	assert.Contains(t, src, "func (px *GreeterProxy) Close() error {")
	assert.Contains(t, src, "func (px *GreeterProxy) InterceptedTarget() (Greeter, error) {")
}

func TestGenerate_FailuresDoNotWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		spec  string
		check func(t *testing.T, err error)
	}{
		{
			name: "validation",
			spec: `{"package": "greet", "methods": [{"name": "Greet"}]}`,
			check: func(t *testing.T, err error) {
				var ve *spec.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name: "configuration",
			spec: `{"package": "shop", "target": "Cart", "advice": "introduction",
			         "runtime": "example.com/proxy", "methods": [{"name": "Total"}]}`,
			check: func(t *testing.T, err error) {
				var ce *aop.ConfigError
				require.ErrorAs(t, err, &ce)
			},
		},
		{
			name: "nothing intercepted",
			spec: `{"package": "shop", "target": "Cart", "runtime": "example.com/proxy",
			         "methods": [{"name": "Total", "returns": [{"type": "int"}]}]}`,
			check: func(t *testing.T, err error) {
				var ce *aop.ConfigError
				require.ErrorAs(t, err, &ce)
				assert.Contains(t, err.Error(), "no method is intercepted")
			},
		},
		{
			name: "bad type",
			spec: `{"package": "shop", "target": "Cart", "runtime": "example.com/proxy",
			         "methods": [{"name": "Total", "returns": [{"type": "struct{ n int }"}],
			                      "bindings": [{"name": "logged"}]}]}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "inline structs")
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := spec.Parse([]byte(tt.spec), spec.FormatJSON)
			require.NoError(t, err)
			s.Path = filepath.Join(t.TempDir(), "x.proxy.json")

			w := writer.NewMemoryWriter()
			_, err = generate.Generate(context.Background(), s, generate.Options{Logger: quietLogger()}, w)
			require.Error(t, err)
			tt.check(t, err)
			assert.Zero(t, w.Calls())
		})
	}
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write(context.Context, writer.Artifact) error {
	f.calls++
	return errors.New("disk full")
}

func TestGenerate_WriterErrorIsReturned(t *testing.T) {
	t.Parallel()

	s, err := spec.Parse([]byte(greeterSpec), spec.FormatJSON)
	require.NoError(t, err)
	s.Path = filepath.Join(t.TempDir(), "greeter.proxy.json")

	w := &failingWriter{}
	_, err = generate.Generate(context.Background(), s, generate.Options{Logger: quietLogger()}, w)
	require.EqualError(t, err, "disk full")
	assert.Equal(t, 1, w.calls)
}

func TestGenerate_DumpIRAndLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, err := spec.Parse([]byte(greeterSpec), spec.FormatJSON)
	require.NoError(t, err)
	s.Path = filepath.Join(t.TempDir(), "greeter.proxy.json")

	_, err = generate.Generate(context.Background(), s, generate.Options{Logger: log, DumpIR: true}, writer.NewMemoryWriter())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "options adjusted")
	assert.Contains(t, out, "synthesized proxy")
	assert.Contains(t, out, "GreeterProxy")
	assert.Contains(t, out, "generated proxy")
	assert.True(t, strings.Contains(out, "mode=lazy"), out)
}
