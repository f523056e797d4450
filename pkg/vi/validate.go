package vi

import (
	"fmt"
	"slices"
	"strings"
)

// Builtins are the functions a program may call without declaring them.
var Builtins = map[string]bool{
	"length":   true,
	"rgb":      true,
	"random":   true,
	"wait_sec": true,
	"visit":    true,
	"play":     true,
	"print":    true,
}

// typeRequirements lists the attributes each element type needs.
var typeRequirements = map[string][]string{
	"button":     {"text_content"},
	"input":      {"placeholder"},
	"icon":       {"icon"},
	"search_bar": {"placeholder"},
	"link":       {"text_content"},
	"scroller":   nil,
}

// Validate checks prog after import resolution. It returns the non-fatal
// warnings, and a *ValidationError holding every fatal finding.
func Validate(prog *Program) ([]Diagnostic, error) {
	v := &validator{prog: prog}
	v.checkMain()
	v.checkContainers()
	v.checkCalls()
	v.checkCycles()
	if len(v.errors) > 0 {
		return v.warnings, &ValidationError{File: prog.File, Errors: v.errors}
	}
	return v.warnings, nil
}

type validator struct {
	prog     *Program
	warnings []Diagnostic
	errors   []Diagnostic
}

func (v *validator) warnf(line int, format string, args ...any) {
	v.warnings = append(v.warnings, Diagnostic{Severity: SeverityWarning, Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (v *validator) errorf(line int, format string, args ...any) {
	v.errors = append(v.errors, Diagnostic{Severity: SeverityError, Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (v *validator) checkMain() {
	if v.prog.Main != "" && !v.prog.Containers.Has(v.prog.Main) {
		v.errorf(0, "main container %q is not declared", v.prog.Main)
	}
}

func (v *validator) checkContainers() {
	for _, name := range v.prog.Containers.Keys() {
		c, _ := v.prog.Containers.Get(name)
		walkContainer(c, func(c *Container) {
			for _, child := range childRefs(c) {
				if !v.prog.Containers.Has(child) {
					v.warnf(c.Line, "container %q lists undeclared child %q", c.Name, child)
				}
			}
			if kind, ok := elementType(c); ok {
				required, known := typeRequirements[kind]
				if !known {
					v.warnf(c.Line, "container %q has unknown type %q", c.Name, kind)
				}
				for _, attr := range required {
					if !c.Attrs.Has(attr) {
						v.warnf(c.Line, "container %q has type %q but no %s attribute", c.Name, kind, attr)
					}
				}
			}
			if r := c.Attr("repeat_by"); r != nil {
				switch _, err := repeatDims(r); err {
				case errRepeatSize:
					v.errorf(c.Line, "container %q: repeat_by expands to more than %d cells", c.Name, MaxRepeatCells)
				case errRepeatShape:
					v.warnf(c.Line, "container %q: repeat_by is not a literal [rows, cols] or [rows, cols, depth] array and will not be expanded", c.Name)
				}
			}
		})
	}
}

func (v *validator) checkCalls() {
	known := func(name string, locals map[string]bool) bool {
		return v.prog.Funcs.Has(name) || Builtins[name] || locals[name]
	}
	report := func(line int, where string, locals map[string]bool) func(Expr) {
		return func(e Expr) {
			call, ok := e.(Call)
			if !ok {
				return
			}
			if name, ok := calleeName(call); ok && !known(name, locals) {
				v.warnf(line, "%s calls undeclared function %q", where, name)
			}
		}
	}

	for _, name := range v.prog.Funcs.Keys() {
		fn, _ := v.prog.Funcs.Get(name)
		locals := map[string]bool{}
		walkStmts(fn.Body, func(s Stmt) {
			if d, ok := s.(FuncDef); ok {
				locals[d.Func.Name] = true
			}
		})
		where := fmt.Sprintf("function %q", fn.Name)
		walkStmts(fn.Body, func(s Stmt) {
			forEachStmtExpr(s, func(e Expr) { walkExpr(e, report(fn.Line, where, locals)) })
		})
	}
	for _, name := range v.prog.Containers.Keys() {
		c, _ := v.prog.Containers.Get(name)
		walkContainer(c, func(c *Container) {
			where := fmt.Sprintf("container %q", c.Name)
			for _, attr := range c.Attrs.Keys() {
				e, _ := c.Attrs.Get(attr)
				walkExpr(e, report(c.Line, where, nil))
			}
		})
	}
}

// checkCycles runs a depth-first search from every container, with a fresh
// visited set per root, and reports each distinct cycle once.
func (v *validator) checkCycles() {
	graph := map[string][]string{}
	for _, name := range v.prog.Containers.Keys() {
		c, _ := v.prog.Containers.Get(name)
		var edges []string
		walkContainer(c, func(c *Container) {
			for _, child := range childRefs(c) {
				if v.prog.Containers.Has(child) {
					edges = append(edges, child)
				}
			}
		})
		graph[name] = edges
	}

	seen := map[string]bool{}
	for _, root := range v.prog.Containers.Keys() {
		visited := map[string]bool{}
		var path []string
		var visit func(n string)
		visit = func(n string) {
			if i := slices.Index(path, n); i >= 0 {
				cycle := append(append([]string(nil), path[i:]...), n)
				key := cycleKey(cycle[:len(cycle)-1])
				if !seen[key] {
					seen[key] = true
					c, _ := v.prog.Containers.Get(n)
					v.errorf(c.Line, "container cycle: %s", strings.Join(cycle, " -> "))
				}
				return
			}
			if visited[n] {
				return
			}
			visited[n] = true
			path = append(path, n)
			for _, next := range graph[n] {
				visit(next)
			}
			path = path[:len(path)-1]
		}
		visit(root)
	}
}

func cycleKey(members []string) string {
	sorted := slices.Clone(members)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}

// childRefs returns the container names listed in c's children attribute.
func childRefs(c *Container) []string {
	arr, ok := c.Attr("children").(Array)
	if !ok {
		return nil
	}
	var names []string
	for _, e := range arr.Elems {
		if ref, ok := e.(Var); ok {
			names = append(names, ref.Name)
		}
	}
	return names
}

// elementType returns the value of the type attribute, written either as a
// string or a bare name.
func elementType(c *Container) (string, bool) {
	switch t := c.Attr("type").(type) {
	case Literal:
		if t.Kind == LitString {
			return t.Str, true
		}
	case Var:
		return t.Name, true
	}
	return "", false
}

// walkContainer calls fn for c and every inline descendant, parents first.
func walkContainer(c *Container, fn func(*Container)) {
	fn(c)
	for _, child := range c.Children {
		walkContainer(child, fn)
	}
}

// walkStmts calls fn for every statement in body, including nested blocks
// and nested function bodies.
func walkStmts(body []Stmt, fn func(Stmt)) {
	for _, s := range body {
		fn(s)
		switch s := s.(type) {
		case If:
			walkStmts(s.Then, fn)
			walkStmts(s.Else, fn)
		case For:
			walkStmts(s.Body, fn)
		case While:
			walkStmts(s.Body, fn)
		case FuncDef:
			walkStmts(s.Func.Body, fn)
		}
	}
}

// forEachStmtExpr calls fn for the expressions held directly by s.
func forEachStmtExpr(s Stmt, fn func(Expr)) {
	switch s := s.(type) {
	case Assign:
		fn(s.Target)
		fn(s.Value)
	case Return:
		if s.Value != nil {
			fn(s.Value)
		}
	case If:
		fn(s.Cond)
	case For:
		fn(s.Iter)
	case While:
		fn(s.Cond)
	case ExprStmt:
		fn(s.X)
	case Mutate:
		fn(s.Target)
		for _, a := range s.Attrs {
			fn(a.Value)
		}
	}
}

// walkExpr calls fn for e and every sub-expression, parents first.
func walkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case Binary:
		walkExpr(e.Left, fn)
		walkExpr(e.Right, fn)
	case Unary:
		walkExpr(e.Operand, fn)
	case Member:
		walkExpr(e.Object, fn)
	case Index:
		walkExpr(e.Object, fn)
		walkExpr(e.Index, fn)
	case Call:
		walkExpr(e.Callee, fn)
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	case MethodCall:
		walkExpr(e.Object, fn)
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	case Ternary:
		walkExpr(e.Cond, fn)
		walkExpr(e.Then, fn)
		walkExpr(e.Else, fn)
	case Array:
		for _, x := range e.Elems {
			walkExpr(x, fn)
		}
	case Object:
		for _, p := range e.Props {
			walkExpr(p.Value, fn)
		}
	case Pair:
		walkExpr(e.Value, fn)
	}
}
