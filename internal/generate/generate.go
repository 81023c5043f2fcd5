// Package generate runs one generation pass: spec in, one artifact out.
package generate

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sghaida/oproxy/internal/aop"
	"github.com/sghaida/oproxy/internal/gogen"
	"github.com/sghaida/oproxy/internal/loader"
	"github.com/sghaida/oproxy/internal/spec"
	"github.com/sghaida/oproxy/internal/writer"
)

// Writer receives the generated file. Generate calls it exactly once per
// successful pass and never on failure.
type Writer interface {
	Write(ctx context.Context, a writer.Artifact) error
}

// Options configure a pass.
type Options struct {
	// Generator names the tool in the file header. Defaults to "proxygen".
	Generator string

	// Load completes the spec from the target package before generating.
	Load bool

	// DumpIR logs the synthesized proxy type at debug level.
	DumpIR bool

	Logger *slog.Logger
	Tracer trace.Tracer
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return otel.Tracer("github.com/sghaida/oproxy/internal/generate")
}

// Result summarizes a pass.
type Result struct {
	Path  string
	Type  string
	Mode  aop.ResolutionMode
	Slots int
	Notes []string

	Source []byte
}

var irDumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// File loads the spec at path and generates it.
func File(ctx context.Context, path string, o Options, w Writer) (*Result, error) {
	s, err := spec.Load(path)
	if err != nil {
		return nil, err
	}
	return Generate(ctx, s, o, w)
}

// Generate synthesizes the proxy described by s, renders it and hands the
// file to w.
func Generate(ctx context.Context, s *spec.ProxySpec, o Options, w Writer) (res *Result, err error) {
	log := o.logger().With(slog.String("spec", filepath.ToSlash(s.Path)))
	start := time.Now()

	ctx, span := o.tracer().Start(ctx, "generate.Generate",
		trace.WithAttributes(
			attribute.String("spec.path", filepath.ToSlash(s.Path)),
			attribute.String("spec.target", s.Target),
		),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
			log.Error("generation failed", slog.String("error", err.Error()))
		}
	}()

	if o.Load {
		if err := loadSpec(ctx, s, o); err != nil {
			return nil, err
		}
	}

	if err := prepare(s); err != nil {
		return nil, err
	}

	p, err := synthesize(ctx, s, log)
	if err != nil {
		return nil, err
	}
	if o.DumpIR {
		log.Debug("synthesized proxy", slog.String("ir", irDumper.Sdump(p)))
	}

	src, err := gogen.Render(p, renderOptions(s, o))
	if err != nil {
		return nil, err
	}

	out := s.OutPath()
	if err := w.Write(ctx, writer.Artifact{Path: out, Source: src, Type: p.Name}); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("proxy.type", p.Name),
		attribute.String("proxy.mode", p.Mode.String()),
		attribute.Int("proxy.slots", len(p.Slots)),
	)
	log.Info("generated proxy",
		slog.String("type", p.Name),
		slog.String("mode", p.Mode.String()),
		slog.Int("slots", len(p.Slots)),
		slog.String("out", filepath.ToSlash(out)),
		slog.Duration("duration", time.Since(start)),
	)

	return &Result{
		Path:   out,
		Type:   p.Name,
		Mode:   p.Mode,
		Slots:  len(p.Slots),
		Notes:  p.Notes,
		Source: src,
	}, nil
}

func loadSpec(ctx context.Context, s *spec.ProxySpec, o Options) error {
	ctx, span := o.tracer().Start(ctx, "generate.load")
	defer span.End()

	dir := filepath.Dir(s.Path)
	if s.Out != "" && filepath.IsAbs(s.Out) {
		dir = filepath.Dir(s.Out)
	}
	return loader.Fill(ctx, dir, s)
}

// prepare runs the spec pipeline: defaults, validation, ordering, imports.
func prepare(s *spec.ProxySpec) error {
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return err
	}
	s.Sort()
	return s.InferImports()
}

func synthesize(ctx context.Context, s *spec.ProxySpec, log *slog.Logger) (*aop.ProxyType, error) {
	span := trace.SpanFromContext(ctx)

	syn, err := aop.NewSynthesizer(s.Descriptor(), s.Options())
	if err != nil {
		return nil, err
	}
	for _, n := range syn.Notes() {
		log.Warn("options adjusted", slog.String("note", n))
	}
	if err := s.Visit(syn); err != nil {
		return nil, err
	}
	p, err := syn.VisitEnd()
	if err != nil {
		return nil, err
	}
	span.AddEvent("synthesized", trace.WithAttributes(attribute.Int("methods", len(p.Methods))))
	return p, nil
}

func renderOptions(s *spec.ProxySpec, o Options) gogen.Options {
	specPath := filepath.ToSlash(s.Path)
	if rel, err := filepath.Rel(filepath.Dir(s.OutPath()), s.Path); err == nil && s.Path != "" {
		specPath = filepath.ToSlash(rel)
	}
	imports := make([]gogen.Import, len(s.Imports))
	for i, imp := range s.Imports {
		imports[i] = gogen.Import{Name: imp.Name, Path: imp.Path}
	}
	return gogen.Options{
		Generator:   o.Generator,
		SpecPath:    specPath,
		SpecHash:    s.Hash,
		PackagePath: s.PackagePath,
		RuntimePath: s.Runtime,
		Imports:     imports,
	}
}
