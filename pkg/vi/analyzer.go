package vi

import (
	"errors"
	"maps"
	"slices"
)

// clickHandlers are the attributes whose call binds a repeated container's
// cell index to the handler's first parameter.
var clickHandlers = []string{"on_click", "on_double_click", "on_long_press"}

// WaitBuiltin is the built-in whose use makes a function asynchronous.
const WaitBuiltin = "wait_sec"

// MaxRepeatCells bounds the number of cells a repeat_by grid expands to.
const MaxRepeatCells = 1 << 16

var (
	errRepeatShape = errors.New("repeat_by is not a literal [rows, cols] or [rows, cols, depth] array")
	errRepeatSize  = errors.New("repeat_by grid is too large")
)

// Repeat is the static geometry of a repeated container.
type Repeat struct {
	Rows  int
	Cols  int
	Depth int // 0 for two-dimensional grids
	Count int
}

// Index returns the flat cell index of (x, y, z).
func (r Repeat) Index(x, y, z int) int {
	return z*r.Rows*r.Cols + y*r.Cols + x
}

// Facts are the side tables derived from a validated Program. They are keyed
// by container and function name; the Program itself is not modified.
type Facts struct {
	// Containers indexes every declared container, inline ones included.
	// A top-level declaration wins over an inline one of the same name.
	Containers map[string]*Container
	// Repeats holds the geometry of statically expandable containers.
	Repeats map[string]Repeat
	// Bindings maps function -> parameter -> repeated container.
	Bindings map[string]map[string]string
	// Lifted holds, per container, the attributes any function mutates.
	Lifted Table[[]string]
	// Calls is the user-function call graph, callees in first-call order.
	Calls map[string][]string
	// Internal marks functions called by a different user function.
	Internal map[string]bool
	// Async marks functions that call wait_sec directly. Callers of an
	// async function are not marked.
	Async map[string]bool
}

// IsLifted reports whether attr of container is mutated at runtime.
func (f *Facts) IsLifted(container, attr string) bool {
	attrs, _ := f.Lifted.Get(container)
	return slices.Contains(attrs, attr)
}

// Binding returns the repeated container bound to param of fn.
func (f *Facts) Binding(fn, param string) (string, bool) {
	c, ok := f.Bindings[fn][param]
	return c, ok
}

// analysisScope is threaded by value through the statement walk.
type analysisScope struct {
	fn    string
	cells map[string]string // loop variable -> repeated container
}

func (s analysisScope) withCell(name, container string) analysisScope {
	cells := make(map[string]string, len(s.cells)+1)
	for k, v := range s.cells {
		cells[k] = v
	}
	cells[name] = container
	return analysisScope{fn: s.fn, cells: cells}
}

// Analyze derives repeat geometry, handler bindings, the state-lift set, the
// call graph and async functions from prog.
func Analyze(prog *Program) *Facts {
	f := &Facts{
		Containers: map[string]*Container{},
		Repeats:    map[string]Repeat{},
		Bindings:   map[string]map[string]string{},
		Calls:      map[string][]string{},
		Internal:   map[string]bool{},
		Async:      map[string]bool{},
	}
	f.indexContainers(prog)
	f.findRepeats()
	f.bindParams(prog)
	for _, name := range prog.Funcs.Keys() {
		fn, _ := prog.Funcs.Get(name)
		f.collectMutations(fn.Body, analysisScope{fn: name})
		f.collectCalls(prog, fn)
		if containsWait(fn.Body) {
			f.Async[name] = true
		}
	}
	return f
}

func (f *Facts) indexContainers(prog *Program) {
	for _, name := range prog.Containers.Keys() {
		c, _ := prog.Containers.Get(name)
		f.Containers[name] = c
	}
	for _, name := range prog.Containers.Keys() {
		c, _ := prog.Containers.Get(name)
		for _, child := range c.Children {
			walkContainer(child, func(c *Container) {
				if _, ok := f.Containers[c.Name]; !ok {
					f.Containers[c.Name] = c
				}
			})
		}
	}
}

func (f *Facts) findRepeats() {
	for name, c := range f.Containers {
		if r, err := repeatDims(c.Attr("repeat_by")); err == nil {
			f.Repeats[name] = r
		}
	}
}

// repeatDims reads a literal [rows, cols] or [rows, cols, depth] array of
// positive integers whose product is at most MaxRepeatCells.
func repeatDims(e Expr) (Repeat, error) {
	arr, ok := e.(Array)
	if !ok || (len(arr.Elems) != 2 && len(arr.Elems) != 3) {
		return Repeat{}, errRepeatShape
	}
	dims := make([]int, len(arr.Elems))
	cells := 1.0
	for i, el := range arr.Elems {
		lit, ok := el.(Literal)
		if !ok || lit.Kind != LitNumber || !lit.IsInt || lit.Num < 1 {
			return Repeat{}, errRepeatShape
		}
		cells *= lit.Num
		if cells > MaxRepeatCells {
			return Repeat{}, errRepeatSize
		}
		dims[i] = int(lit.Num)
	}
	r := Repeat{Rows: dims[0], Cols: dims[1], Count: dims[0] * dims[1]}
	if len(dims) == 3 {
		r.Depth = dims[2]
		r.Count *= dims[2]
	}
	return r, nil
}

func (f *Facts) bindParams(prog *Program) {
	for _, name := range slices.Sorted(maps.Keys(f.Repeats)) {
		c := f.Containers[name]
		for _, attr := range clickHandlers {
			call, ok := c.Attr(attr).(Call)
			if !ok {
				continue
			}
			fname, ok := calleeName(call)
			if !ok {
				continue
			}
			fn, ok := prog.Funcs.Get(fname)
			if !ok || len(fn.Params) == 0 {
				continue
			}
			if f.Bindings[fname] == nil {
				f.Bindings[fname] = map[string]string{}
			}
			f.Bindings[fname][fn.Params[0]] = name
		}
	}
}

func (f *Facts) collectMutations(body []Stmt, sc analysisScope) {
	for _, s := range body {
		switch s := s.(type) {
		case Mutate:
			container, ok := f.mutationTarget(s.Target, sc)
			if !ok {
				continue
			}
			attrs, _ := f.Lifted.Get(container)
			for _, a := range s.Attrs {
				if !slices.Contains(attrs, a.Key) {
					attrs = append(attrs, a.Key)
				}
			}
			f.Lifted.Set(container, attrs)
		case If:
			f.collectMutations(s.Then, sc)
			f.collectMutations(s.Else, sc)
		case For:
			inner := sc
			if grid, ok := f.cellIteration(s.Iter); ok {
				inner = sc.withCell(s.Var, grid)
			}
			f.collectMutations(s.Body, inner)
		case While:
			f.collectMutations(s.Body, sc)
		case FuncDef:
			f.collectMutations(s.Func.Body, sc)
		}
	}
}

// cellIteration reports whether iter is `grid.children` for a repeated grid.
func (f *Facts) cellIteration(iter Expr) (string, bool) {
	m, ok := iter.(Member)
	if !ok || m.Field != "children" {
		return "", false
	}
	v, ok := m.Object.(Var)
	if !ok {
		return "", false
	}
	_, repeated := f.Repeats[v.Name]
	return v.Name, repeated
}

// mutationTarget resolves the container a mutation statement refers to.
func (f *Facts) mutationTarget(target Expr, sc analysisScope) (string, bool) {
	if v, ok := target.(Var); ok {
		if c, ok := sc.cells[v.Name]; ok {
			return c, true
		}
		if c, ok := f.Binding(sc.fn, v.Name); ok {
			return c, true
		}
		return v.Name, true
	}
	return baseName(target)
}

func (f *Facts) collectCalls(prog *Program, fn *Function) {
	locals := map[string]bool{}
	walkStmts(fn.Body, func(s Stmt) {
		if d, ok := s.(FuncDef); ok {
			locals[d.Func.Name] = true
		}
	})
	walkStmts(fn.Body, func(s Stmt) {
		forEachStmtExpr(s, func(e Expr) {
			walkExpr(e, func(e Expr) {
				call, ok := e.(Call)
				if !ok {
					return
				}
				callee, ok := calleeName(call)
				if !ok || locals[callee] || !prog.Funcs.Has(callee) {
					return
				}
				if !slices.Contains(f.Calls[fn.Name], callee) {
					f.Calls[fn.Name] = append(f.Calls[fn.Name], callee)
				}
				if callee != fn.Name {
					f.Internal[callee] = true
				}
			})
		})
	})
}

// containsWait reports whether body calls wait_sec, looking into nested
// blocks but not into nested function definitions.
func containsWait(body []Stmt) bool {
	found := false
	var visit func([]Stmt)
	visit = func(stmts []Stmt) {
		for _, s := range stmts {
			forEachStmtExpr(s, func(e Expr) {
				if waits(e) {
					found = true
				}
			})
			switch s := s.(type) {
			case If:
				visit(s.Then)
				visit(s.Else)
			case For:
				visit(s.Body)
			case While:
				visit(s.Body)
			}
		}
	}
	visit(body)
	return found
}

// waits reports whether x calls wait_sec anywhere inside it.
func waits(x Expr) bool {
	found := false
	walkExpr(x, func(e Expr) {
		if call, ok := e.(Call); ok {
			if name, ok := calleeName(call); ok && name == WaitBuiltin {
				found = true
			}
		}
	})
	return found
}
