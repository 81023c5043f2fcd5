package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sghaida/oproxy/internal/generate"
	"github.com/sghaida/oproxy/internal/spec"
	"github.com/sghaida/oproxy/internal/writer"
)

var version = "0.1.0-dev"

const envLogLevel = "PROXYGEN_LOG_LEVEL"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "proxygen:", err)
		os.Exit(1)
	}
}

// run builds the command tree and executes it with args.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type genFlags struct {
	specs    []string
	out      string
	check    bool
	load     bool
	dumpIR   bool
	logLevel string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "proxygen",
		Short: "Generate interceptor proxies for Go types",
		Long: `proxygen reads proxy spec files (*.proxy.json, *.proxy.yaml) and writes
a proxy type per spec next to it. Intercepted methods run through interceptor
chains; everything else reaches the target unchanged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newGenCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the proxygen version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "proxygen", version)
		},
	}
}

func newGenCmd() *cobra.Command {
	f := &genFlags{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate proxies from spec files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGen(cmd.Context(), f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	fl := cmd.Flags()
	fl.StringArrayVar(&f.specs, "spec", nil, "spec file (repeatable)")
	fl.StringVar(&f.out, "out", "", "output file; only with a single --spec")
	fl.BoolVar(&f.check, "check", false, "fail if generated files are out of date instead of writing them")
	fl.BoolVar(&f.load, "load", false, "complete specs by type-checking the target package")
	fl.BoolVar(&f.dumpIR, "dump-ir", false, "log the synthesized proxy at debug level")
	fl.StringVar(&f.logLevel, "log-level", getenv(envLogLevel, "info"), "debug|info|warn|error (env "+envLogLevel+")")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func runGen(ctx context.Context, f *genFlags, stdout, stderr io.Writer) error {
	level, err := parseLevel(f.logLevel)
	if err != nil {
		return err
	}
	if f.dumpIR && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	if f.out != "" && len(f.specs) != 1 {
		return errors.New("--out needs exactly one --spec")
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var w generate.Writer = writer.FileWriter{}
	if f.check {
		w = writer.CheckWriter{}
	}
	opts := generate.Options{Load: f.load, DumpIR: f.dumpIR, Logger: log}

	results := make([]*generate.Result, len(f.specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range f.specs {
		i, path := i, path
		g.Go(func() error {
			s, err := spec.Load(path)
			if err != nil {
				return err
			}
			if f.out != "" {
				s.Out = absFrom(f.out)
			}
			res, err := generate.Generate(gctx, s, opts, w)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	verb := "wrote"
	if f.check {
		verb = "up to date"
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "%s %s (%s, %s)\n", verb, filepath.ToSlash(r.Path), r.Type, r.Mode)
	}
	return nil
}

// absFrom makes --out independent of the spec directory.
func absFrom(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
