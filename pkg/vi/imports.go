package vi

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxImportDepth bounds the nesting of imports.
const DefaultMaxImportDepth = 32

// Resolver loads and merges the imports of a Program. Modules are cached by
// canonical location, so a module imported along several paths is parsed
// once per Resolver.
type Resolver struct {
	Loader   Loader
	Logger   *slog.Logger
	MaxDepth int

	cache map[string]*Program
}

// NewResolver returns a Resolver reading through l.
func NewResolver(l Loader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = discardLogger()
	}
	return &Resolver{
		Loader:   l,
		Logger:   logger,
		MaxDepth: DefaultMaxImportDepth,
		cache:    make(map[string]*Program),
	}
}

// Resolve loads every import of prog depth-first in declaration order and
// merges the selected declarations into prog. Later imports replace earlier
// bindings and prog's own declarations win over all of them. On success the
// import list is cleared.
func (r *Resolver) Resolve(ctx context.Context, prog *Program) error {
	var stack []string
	if prog.File != "" {
		stack = append(stack, prog.File)
	}
	return r.resolve(ctx, prog, stack)
}

func (r *Resolver) resolve(ctx context.Context, prog *Program, stack []string) error {
	if len(prog.Imports) == 0 {
		return nil
	}

	var vars Table[Expr]
	var funcs Table[*Function]
	var containers Table[*Container]

	for _, imp := range prog.Imports {
		loc, err := resolveLocation(prog.File, imp.Source)
		if err != nil {
			return &ImportError{Locator: imp.Source, Importer: prog.File, Err: err}
		}
		mod, err := r.module(ctx, imp, loc, prog.File, stack)
		if err != nil {
			return err
		}

		if imp.All {
			vars.Merge(&mod.Vars)
			funcs.Merge(&mod.Funcs)
			containers.Merge(&mod.Containers)
			continue
		}
		for _, name := range imp.Names {
			if v, ok := mod.Vars.Get(name); ok {
				vars.Set(name, v)
			} else if f, ok := mod.Funcs.Get(name); ok {
				funcs.Set(name, f)
			} else if c, ok := mod.Containers.Get(name); ok {
				containers.Set(name, c)
			} else {
				return &ImportError{
					Locator:  imp.Source,
					Importer: prog.File,
					Err:      fmt.Errorf("%w: %q is not declared in %s", ErrMissingExport, name, loc),
				}
			}
		}
	}

	vars.Merge(&prog.Vars)
	funcs.Merge(&prog.Funcs)
	containers.Merge(&prog.Containers)
	prog.Vars, prog.Funcs, prog.Containers = vars, funcs, containers
	prog.Imports = nil
	return nil
}

func (r *Resolver) module(ctx context.Context, imp Import, loc, importer string, stack []string) (*Program, error) {
	for _, s := range stack {
		if s == loc {
			return nil, &ImportError{
				Locator:  imp.Source,
				Importer: importer,
				Err:      fmt.Errorf("%w: %s", ErrImportCycle, cyclePath(stack, loc)),
			}
		}
	}
	if r.MaxDepth > 0 && len(stack) > r.MaxDepth {
		return nil, &ImportError{
			Locator:  imp.Source,
			Importer: importer,
			Err:      fmt.Errorf("imports nested deeper than %d", r.MaxDepth),
		}
	}
	if mod, ok := r.cache[loc]; ok {
		r.Logger.Debug("import cached", "locator", imp.Source, "canonical", loc)
		return mod, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.Logger.Debug("loading import", "locator", imp.Source, "canonical", loc, "importer", importer)
	src, err := r.Loader.Load(ctx, loc)
	if err != nil {
		return nil, &ImportError{Locator: imp.Source, Importer: importer, Err: err}
	}
	mod, err := Parse(loc, src)
	if err != nil {
		return nil, &ImportError{Locator: imp.Source, Importer: importer, Err: err}
	}
	if err := r.resolve(ctx, mod, append(stack[:len(stack):len(stack)], loc)); err != nil {
		return nil, err
	}
	if r.cache == nil {
		r.cache = make(map[string]*Program)
	}
	r.cache[loc] = mod
	return mod, nil
}

// cyclePath renders "a.vi -> b.vi -> a.vi" starting at the first occurrence of again.
func cyclePath(stack []string, again string) string {
	i := 0
	for idx, s := range stack {
		if s == again {
			i = idx
			break
		}
	}
	chain := append(append([]string(nil), stack[i:]...), again)
	for k, s := range chain {
		chain[k] = shortName(s)
	}
	return strings.Join(chain, " -> ")
}

func shortName(loc string) string {
	if isURL(loc) {
		return path.Base(loc)
	}
	return filepath.Base(loc)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
