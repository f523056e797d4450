package vi

import (
	"context"
	"fmt"
	"log/slog"
)

// Options configure a compilation. The zero value reads local files and
// URLs with default limits and logs nothing.
type Options struct {
	Logger           *slog.Logger
	Loader           Loader
	Emit             EmitOptions
	MaxImportDepth   int
	WarningsAsErrors bool
}

// Options returns compiler options for the project settings in c.
func (c Config) Options(logger *slog.Logger) (Options, error) {
	timeout, err := c.Timeout()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Logger:           logger,
		Loader:           DefaultLoader(timeout),
		Emit:             c.EmitOptions(),
		MaxImportDepth:   c.MaxImportDepth,
		WarningsAsErrors: c.WarningsAsErrors,
	}, nil
}

// Result is the output of a successful compilation.
type Result struct {
	Dart     string
	Program  *Program
	Facts    *Facts
	Warnings []Diagnostic
}

// Locate returns the canonical location of an entry file, adding the .vi
// extension when path has none.
func Locate(path string) (string, error) {
	return resolveLocation("", path)
}

// Compile loads the Vi file at path and compiles it to Dart.
func Compile(ctx context.Context, path string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	loc, err := Locate(path)
	if err != nil {
		return nil, err
	}
	src, err := opts.Loader.Load(ctx, loc)
	if err != nil {
		return nil, err
	}
	return CompileSource(ctx, loc, src, opts)
}

// CompileSource compiles src. file names the source for diagnostics and is
// the base for relative imports.
func CompileSource(ctx context.Context, file, src string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("file", file)

	prog, warnings, err := Check(ctx, file, src, opts)
	if err != nil {
		return nil, err
	}
	facts := Analyze(prog)
	log.Debug("analyzed",
		"repeats", len(facts.Repeats),
		"lifted", facts.Lifted.Len(),
		"async", len(facts.Async))

	dart := Emit(prog, facts, opts.Emit)
	log.Info("compiled", "functions", prog.Funcs.Len(), "containers", prog.Containers.Len(), "bytes", len(dart))
	return &Result{Dart: dart, Program: prog, Facts: facts, Warnings: warnings}, nil
}

// Check parses src, resolves its imports and validates the merged program,
// without generating code.
func Check(ctx context.Context, file, src string, opts Options) (*Program, []Diagnostic, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("file", file)

	prog, err := Parse(file, src)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("parsed", "imports", len(prog.Imports), "containers", prog.Containers.Len())

	r := NewResolver(opts.Loader, opts.Logger)
	if opts.MaxImportDepth > 0 {
		r.MaxDepth = opts.MaxImportDepth
	}
	if err := r.Resolve(ctx, prog); err != nil {
		return nil, nil, err
	}

	warnings, err := Validate(prog)
	for _, w := range warnings {
		log.Warn(w.Msg, "line", w.Line)
	}
	if err != nil {
		return nil, warnings, err
	}
	if opts.WarningsAsErrors && len(warnings) > 0 {
		promoted := make([]Diagnostic, len(warnings))
		for i, w := range warnings {
			w.Severity = SeverityError
			promoted[i] = w
		}
		return nil, warnings, &ValidationError{File: file, Errors: promoted}
	}
	return prog, warnings, nil
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = discardLogger()
	}
	if o.Loader == nil {
		o.Loader = DefaultLoader(DefaultHTTPTimeout)
	}
	return o
}

// String summarizes r for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%s: %d functions, %d containers, %d warnings",
		r.Program.File, r.Program.Funcs.Len(), r.Program.Containers.Len(), len(r.Warnings))
}
