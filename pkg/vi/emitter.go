package vi

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultAppClass names the generated stateful widget.
const DefaultAppClass = "ViApp"

// EmitOptions configure the generated Dart file. Values set in the program's
// config container take precedence over Title and DebugBanner.
type EmitOptions struct {
	AppClass    string
	Title       string
	DebugBanner bool
}

// cellPath matches the X{x}Y{y} and X{x}Y{y}Z{z} member names of grid cells.
var cellPath = regexp.MustCompile(`^X(\d+)Y(\d+)(?:Z(\d+))?$`)

// Emit generates a Flutter application for prog. It never fails on a
// validated program: mutations it cannot express become comments.
//
// Only functions that call wait_sec directly are emitted async. A function
// calling an async function does not await it.
func Emit(prog *Program, facts *Facts, opts EmitOptions) string {
	if opts.AppClass == "" {
		opts.AppClass = DefaultAppClass
	}
	e := &emitter{prog: prog, facts: facts, opts: opts}
	e.findMutators()
	w := &dartWriter{}
	e.header(w)
	e.mainFunc(w)
	e.appClass(w)
	return w.String()
}

type emitter struct {
	prog  *Program
	facts *Facts
	opts  EmitOptions

	// mutators holds the functions that change state, directly or through
	// a call to another mutator.
	mutators map[string]bool
}

type cellRef struct {
	container string
	index     string
}

// emitScope is threaded by value through statement, expression and widget
// emission. Maps are copied before they are extended, except declared, which
// block() copies so that a block's locals stay inside it.
type emitScope struct {
	fn       string            // enclosing top-level function, empty in build()
	params   map[string]bool   // parameters of the innermost function
	bound    map[string]string // parameter -> repeated container
	declared map[string]bool
	cells    map[string]cellRef // loop variable -> grid cell
	repeat   string             // grid whose cell template is being emitted
	commit   bool               // emit setState(() {}) after state changes
	path     []string           // containers on the current widget path
}

func (sc emitScope) block() emitScope {
	sc.declared = maps.Clone(sc.declared)
	if sc.declared == nil {
		sc.declared = map[string]bool{}
	}
	return sc
}

func (sc emitScope) withCell(name string, ref cellRef) emitScope {
	cells := maps.Clone(sc.cells)
	if cells == nil {
		cells = map[string]cellRef{}
	}
	cells[name] = ref
	sc.cells = cells
	return sc
}

// shadowed reports whether name refers to a program or local binding rather
// than a color or other predefined name.
func (e *emitter) shadowed(name string, sc emitScope) bool {
	if sc.params[name] || sc.declared[name] {
		return true
	}
	if _, ok := sc.cells[name]; ok {
		return true
	}
	return e.prog.Vars.Has(name) || e.prog.Funcs.Has(name)
}

func (e *emitter) title() string {
	if c := e.prog.Config; c != nil {
		for _, key := range []string{"title", "app_name"} {
			if lit, ok := c.Attr(key).(Literal); ok && lit.Kind == LitString {
				return lit.Str
			}
		}
	}
	if e.opts.Title != "" {
		return e.opts.Title
	}
	if e.prog.Main != "" {
		return e.prog.Main
	}
	return "Vi App"
}

func (e *emitter) debugBanner() bool {
	if c := e.prog.Config; c != nil {
		if lit, ok := c.Attr("debug_banner").(Literal); ok && lit.Kind == LitBool {
			return lit.Bool
		}
	}
	return e.opts.DebugBanner
}

func (e *emitter) header(w *dartWriter) {
	w.line("// Generated by vic. Do not edit.")
	if e.prog.File != "" {
		w.line("// Source: %s", shortName(e.prog.File))
	}
	if c := e.prog.Config; c != nil {
		for _, key := range []string{"icon", "splash"} {
			if lit, ok := c.Attr(key).(Literal); ok && lit.Kind == LitString {
				w.line("// %s: %s", key, lit.Str)
			}
		}
	}
	w.line("")
	w.line("import 'dart:math';")
	w.line("")
	w.line("import 'package:flutter/material.dart';")
	w.line("")
}

func (e *emitter) mainFunc(w *dartWriter) {
	app := newCall("MaterialApp").constant().
		arg("title", dstr(e.title())).
		arg("debugShowCheckedModeBanner", code(strconv.FormatBool(e.debugBanner()))).
		arg("home", code(e.opts.AppClass+"()"))
	w.open("void main() {")
	w.line("runApp(%s);", app.render(w.depth))
	w.close("}")
	w.line("")
}

func (e *emitter) appClass(w *dartWriter) {
	cls := e.opts.AppClass
	w.open("class %s extends StatefulWidget {", cls)
	w.line("const %s({super.key});", cls)
	w.line("")
	w.line("@override")
	w.line("State<%s> createState() => _%sState();", cls, cls)
	w.close("}")
	w.line("")

	w.open("class _%sState extends State<%s> {", cls, cls)
	e.fields(w)
	for _, name := range e.prog.Funcs.Keys() {
		fn, _ := e.prog.Funcs.Get(name)
		w.line("")
		e.function(w, fn)
	}
	w.line("")
	e.build(w)
	w.close("}")
}

// State fields.

func (e *emitter) fields(w *dartWriter) {
	sc := emitScope{declared: map[string]bool{}}
	for _, name := range e.prog.Vars.Keys() {
		x, _ := e.prog.Vars.Get(name)
		init := e.expr(x, sc)
		late := ""
		if !isLiteral(x) || strings.Contains(init, "${") {
			late = "late "
		}
		w.line("%s%s %s = %s;", late, e.inferType(x, sc), name, init)
	}
	for _, name := range e.facts.Lifted.Keys() {
		attrs, _ := e.facts.Lifted.Get(name)
		r, repeated := e.facts.Repeats[name]
		if !repeated {
			w.line("// %s is not repeated; runtime changes to %s are not tracked", name, strings.Join(attrs, ", "))
			continue
		}
		for _, attr := range attrs {
			typ, zero := liftedSlot(attr)
			w.line("List<%s> %s_%s = List.filled(%d, %s, growable: false);", typ, name, attr, r.Count, zero)
		}
	}
}

// liftedSlot returns the element type and default of a lifted attribute array.
func liftedSlot(attr string) (typ, zero string) {
	switch attr {
	case "text_content":
		return "String", `""`
	case "visibility":
		return "bool", "true"
	case "color":
		return "Color?", "null"
	case "text_content_style":
		return "TextStyle?", "null"
	}
	return "dynamic", "null"
}

func isLiteral(x Expr) bool {
	switch x := x.(type) {
	case Literal:
		return true
	case Unary:
		return x.Op == "-" && isLiteral(x.Operand)
	case Array:
		for _, el := range x.Elems {
			if !isLiteral(el) {
				return false
			}
		}
		return true
	case Pair:
		return isLiteral(x.Value)
	case Object:
		for _, p := range x.Props {
			if !isLiteral(p.Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (e *emitter) inferType(x Expr, sc emitScope) string {
	switch x := x.(type) {
	case Literal:
		switch x.Kind {
		case LitBool:
			return "bool"
		case LitString:
			return "String"
		}
		if x.IsInt {
			return "int"
		}
		return "double"
	case Unary:
		if x.Op == "not" {
			return "bool"
		}
		return e.inferType(x.Operand, sc)
	case Array:
		if isPairArray(x) {
			return "Map<String, dynamic>"
		}
		return "List"
	case Object:
		return "Map<String, dynamic>"
	case Call:
		switch name, _ := calleeName(x); name {
		case "length", "random":
			if !e.shadowed(name, sc) {
				return "int"
			}
		case "rgb":
			if !e.shadowed(name, sc) {
				return "Color"
			}
		}
	}
	return "dynamic"
}

func isPairArray(a Array) bool {
	if len(a.Elems) == 0 {
		return false
	}
	for _, el := range a.Elems {
		if _, ok := el.(Pair); !ok {
			return false
		}
	}
	return true
}

// Functions.

func (e *emitter) function(w *dartWriter, fn *Function) {
	sc := emitScope{
		fn:       fn.Name,
		params:   map[string]bool{},
		bound:    e.facts.Bindings[fn.Name],
		declared: map[string]bool{},
	}
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		sc.params[p] = true
		if _, ok := sc.bound[p]; ok {
			params[i] = "int " + p
		} else {
			params[i] = "dynamic " + p
		}
	}

	async := e.facts.Async[fn.Name]
	returns := returnsValue(fn.Body)
	result, suffix := "void", ""
	switch {
	case async:
		result, suffix = "Future<void>", " async"
	case returns:
		result = "dynamic"
	}

	w.open("%s %s(%s)%s {", result, fn.Name, strings.Join(params, ", "), suffix)
	commit := e.mutators[fn.Name] && !e.facts.Internal[fn.Name]
	switch {
	case commit && !async && !returns:
		w.open("setState(() {")
		e.stmts(w, fn.Body, sc)
		w.close("});")
	case commit:
		sc.commit = true
		e.stmts(w, fn.Body, sc)
	default:
		e.stmts(w, fn.Body, sc)
	}
	w.close("}")
}

// localFunction emits a nested function definition as a Dart local function.
// It inherits the enclosing commit mode.
func (e *emitter) localFunction(w *dartWriter, fn *Function, outer emitScope) {
	sc := outer.block()
	sc.params = map[string]bool{}
	sc.bound = maps.Clone(outer.bound)
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		sc.params[p] = true
		delete(sc.bound, p)
		params[i] = "dynamic " + p
	}
	result, suffix := "void", ""
	switch {
	case containsWait(fn.Body):
		result, suffix = "Future<void>", " async"
	case returnsValue(fn.Body):
		result = "dynamic"
	}
	outer.declared[fn.Name] = true
	w.open("%s %s(%s)%s {", result, fn.Name, strings.Join(params, ", "), suffix)
	e.stmts(w, fn.Body, sc)
	w.close("}")
}

func returnsValue(body []Stmt) bool {
	for _, s := range body {
		switch s := s.(type) {
		case Return:
			if s.Value != nil {
				return true
			}
		case If:
			if returnsValue(s.Then) || returnsValue(s.Else) {
				return true
			}
		case For:
			if returnsValue(s.Body) {
				return true
			}
		case While:
			if returnsValue(s.Body) {
				return true
			}
		}
	}
	return false
}

func (e *emitter) findMutators() {
	e.mutators = map[string]bool{}
	for _, name := range e.prog.Funcs.Keys() {
		fn, _ := e.prog.Funcs.Get(name)
		params := make(map[string]bool, len(fn.Params))
		for _, p := range fn.Params {
			params[p] = true
		}
		if e.hasStateChange(fn.Body, emitScope{params: params}) {
			e.mutators[name] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for _, name := range e.prog.Funcs.Keys() {
			if e.mutators[name] {
				continue
			}
			for _, callee := range e.facts.Calls[name] {
				if e.mutators[callee] {
					e.mutators[name] = true
					changed = true
					break
				}
			}
		}
	}
}

// callsMutator reports whether s is a call statement to a state-changing
// user function.
func (e *emitter) callsMutator(s Stmt, sc emitScope) bool {
	x, ok := s.(ExprStmt)
	if !ok {
		return false
	}
	call, ok := x.X.(Call)
	if !ok {
		return false
	}
	name, ok := calleeName(call)
	return ok && e.mutators[name] && !sc.declared[name] && !sc.params[name]
}

// hasStateChange reports whether body assigns a top-level variable or
// mutates a container, outside nested function definitions.
func (e *emitter) hasStateChange(body []Stmt, sc emitScope) bool {
	for _, s := range body {
		if e.isStateLeaf(s, sc) {
			return true
		}
		switch s := s.(type) {
		case If:
			if e.hasStateChange(s.Then, sc) || e.hasStateChange(s.Else, sc) {
				return true
			}
		case For:
			if e.hasStateChange(s.Body, sc) {
				return true
			}
		case While:
			if e.hasStateChange(s.Body, sc) {
				return true
			}
		}
	}
	return false
}

func (e *emitter) isStateLeaf(s Stmt, sc emitScope) bool {
	switch s := s.(type) {
	case Mutate:
		return true
	case Assign:
		root, ok := baseName(s.Target)
		if !ok {
			if ix, isIndex := s.Target.(Index); isIndex {
				root, ok = baseName(ix.Object)
			}
		}
		return ok && e.prog.Vars.Has(root) && !sc.params[root] && !sc.declared[root]
	}
	return false
}

// Statements.

func (e *emitter) stmts(w *dartWriter, body []Stmt, sc emitScope) {
	for i, s := range body {
		if s, ok := s.(If); ok {
			e.hoist(w, s, body[i+1:], sc)
		}
		e.stmt(w, s, sc)
	}
}

func (e *emitter) stmt(w *dartWriter, s Stmt, sc emitScope) {
	switch s := s.(type) {
	case Assign:
		if v, ok := s.Target.(Var); ok && e.isNewLocal(v.Name, sc) {
			w.line("%s %s = %s;", e.inferType(s.Value, sc), v.Name, e.cond(s.Value, sc))
			sc.declared[v.Name] = true
			return
		}
		w.line("%s = %s;", e.expr(s.Target, sc), e.cond(s.Value, sc))
		if sc.commit && e.isStateLeaf(s, sc) {
			w.line("setState(() {});")
		}

	case Return:
		if s.Value == nil {
			w.line("return;")
		} else {
			w.line("return %s;", e.cond(s.Value, sc))
		}

	case If:
		e.ifStmt(w, s, sc)

	case For:
		if grid, ok := e.facts.cellIteration(s.Iter); ok {
			idx := s.Var + "Idx"
			w.open("for (int %s = 0; %s < %d; %s++) {", idx, idx, e.facts.Repeats[grid].Count, idx)
			e.stmts(w, s.Body, sc.block().withCell(s.Var, cellRef{container: grid, index: idx}))
			w.close("}")
			return
		}
		body := sc.block()
		body.declared[s.Var] = true
		w.open("for (var %s in %s) {", s.Var, e.expr(s.Iter, sc))
		e.stmts(w, s.Body, body)
		w.close("}")

	case While:
		w.open("while (%s) {", e.cond(s.Cond, sc))
		e.stmts(w, s.Body, sc.block())
		w.close("}")

	case ExprStmt:
		w.line("%s;", e.cond(s.X, sc))
		if sc.commit && e.callsMutator(s, sc) {
			w.line("setState(() {});")
		}

	case Mutate:
		e.mutate(w, s, sc)

	case FuncDef:
		e.localFunction(w, s.Func, sc)
	}
}

func (e *emitter) isNewLocal(name string, sc emitScope) bool {
	if e.prog.Vars.Has(name) || sc.params[name] || sc.declared[name] {
		return false
	}
	_, cell := sc.cells[name]
	return !cell
}

func (e *emitter) ifStmt(w *dartWriter, s If, sc emitScope) {
	w.open("if (%s) {", e.cond(s.Cond, sc))
	e.stmts(w, s.Then, sc.block())
	for len(s.Else) == 1 {
		elif, ok := s.Else[0].(If)
		if !ok {
			break
		}
		w.depth--
		w.open("} else if (%s) {", e.cond(elif.Cond, sc))
		e.stmts(w, elif.Then, sc.block())
		s = elif
	}
	if len(s.Else) > 0 {
		w.depth--
		w.open("} else {")
		e.stmts(w, s.Else, sc.block())
	}
	w.close("}")
}

// hoist declares, ahead of s, the new locals its branches assign that are
// read after it. The inferred type is kept only when every branch assigns
// the name with the same type; otherwise the local is dynamic.
func (e *emitter) hoist(w *dartWriter, s If, rest []Stmt, sc emitScope) {
	branches := [][]Stmt{s.Then}
	complete := false
	for {
		if len(s.Else) == 1 {
			if elif, ok := s.Else[0].(If); ok {
				branches = append(branches, elif.Then)
				s = elif
				continue
			}
		}
		if len(s.Else) > 0 {
			branches = append(branches, s.Else)
			complete = true
		}
		break
	}

	var names []string
	types := map[string][]string{}
	for _, b := range branches {
		seen := map[string]bool{}
		for _, st := range b {
			a, ok := st.(Assign)
			if !ok {
				continue
			}
			v, ok := a.Target.(Var)
			if !ok || seen[v.Name] || !e.isNewLocal(v.Name, sc) {
				continue
			}
			seen[v.Name] = true
			if _, ok := types[v.Name]; !ok {
				names = append(names, v.Name)
			}
			types[v.Name] = append(types[v.Name], e.inferType(a.Value, sc))
		}
	}
	if len(names) == 0 {
		return
	}

	read := readNames(rest)
	for _, name := range names {
		if !read[name] {
			continue
		}
		typ := "dynamic"
		ts := types[name]
		if complete && len(ts) == len(branches) && len(slices.Compact(slices.Clone(ts))) == 1 {
			typ = ts[0]
		}
		w.line("%s %s;", typ, name)
		sc.declared[name] = true
	}
}

// readNames collects the variables body reads, including inside nested
// blocks and local functions. A plain assignment target is not a read.
func readNames(body []Stmt) map[string]bool {
	read := map[string]bool{}
	note := func(x Expr) {
		walkExpr(x, func(x Expr) {
			if v, ok := x.(Var); ok {
				read[v.Name] = true
			}
		})
	}
	var visit func([]Stmt)
	visit = func(stmts []Stmt) {
		for _, s := range stmts {
			switch s := s.(type) {
			case Assign:
				if _, ok := s.Target.(Var); !ok {
					note(s.Target)
				}
				note(s.Value)
			case If:
				note(s.Cond)
				visit(s.Then)
				visit(s.Else)
			case For:
				note(s.Iter)
				visit(s.Body)
			case While:
				note(s.Cond)
				visit(s.Body)
			case FuncDef:
				visit(s.Func.Body)
			default:
				forEachStmtExpr(s, note)
			}
		}
	}
	visit(body)
	return read
}

// mutate writes lifted attributes of grid cells. Other targets cannot be
// changed after the widget is built and are kept as comments.
func (e *emitter) mutate(w *dartWriter, s Mutate, sc emitScope) {
	container, index, ok := e.cellTarget(s.Target, sc)
	if !ok {
		for _, a := range s.Attrs {
			w.line("// %s.%s = %s;", describe(s.Target), a.Key, e.expr(a.Value, sc))
		}
		return
	}
	for _, a := range s.Attrs {
		w.line("%s_%s[%s] = %s;", container, a.Key, index, e.attrValue(a.Key, a.Value, sc))
	}
	if sc.commit {
		w.line("setState(() {});")
	}
}

// cellTarget resolves a mutation target to a grid and a Dart index
// expression: a loop cell, a bound handler parameter or a literal
// grid.X{x}Y{y} path.
func (e *emitter) cellTarget(target Expr, sc emitScope) (container, index string, ok bool) {
	switch t := target.(type) {
	case Var:
		if ref, ok := sc.cells[t.Name]; ok {
			return ref.container, ref.index, true
		}
		if c, ok := sc.bound[t.Name]; ok {
			return c, t.Name, true
		}
	case Member:
		return e.gridCell(t)
	}
	return "", "", false
}

// gridCell resolves grid.X{x}Y{y}(Z{z}) to the grid and its flat index.
func (e *emitter) gridCell(m Member) (string, string, bool) {
	v, ok := m.Object.(Var)
	if !ok {
		return "", "", false
	}
	r, ok := e.facts.Repeats[v.Name]
	if !ok {
		return "", "", false
	}
	match := cellPath.FindStringSubmatch(m.Field)
	if match == nil {
		return "", "", false
	}
	x, _ := strconv.Atoi(match[1])
	y, _ := strconv.Atoi(match[2])
	z := 0
	if match[3] != "" {
		z, _ = strconv.Atoi(match[3])
	}
	if x >= r.Cols || y >= r.Rows || (r.Depth == 0 && z > 0) || (r.Depth > 0 && z >= r.Depth) {
		return "", "", false
	}
	return v.Name, strconv.Itoa(r.Index(x, y, z)), true
}

// describe renders a mutation target for a comment.
func describe(target Expr) string {
	switch t := target.(type) {
	case Var:
		return t.Name
	case Member:
		return describe(t.Object) + "." + t.Field
	case Index:
		return describe(t.Object) + "[...]"
	}
	return "?"
}

// attrValue renders the value written to a lifted attribute slot.
func (e *emitter) attrValue(attr string, x Expr, sc emitScope) string {
	switch attr {
	case "color":
		if c := e.color(x, sc); c != nil {
			return c.render(0)
		}
	case "text_content_style":
		if s := e.textStyle(x, sc); s != nil {
			return s.render(0)
		}
		return "null"
	case "text_content":
		if lit, ok := x.(Literal); ok && lit.Kind == LitString {
			return e.expr(x, sc)
		}
		return fmt.Sprintf("(%s).toString()", e.expr(x, sc))
	}
	return e.expr(x, sc)
}

// Expressions.

var binaryOps = map[string]string{"and": "&&", "or": "||"}

// cond renders a condition or a statement-level expression without
// redundant outer parentheses.
func (e *emitter) cond(x Expr, sc emitScope) string {
	if b, ok := x.(Binary); ok {
		return e.binary(b, sc)
	}
	return e.expr(x, sc)
}

func (e *emitter) binary(b Binary, sc emitScope) string {
	op := b.Op
	if mapped, ok := binaryOps[op]; ok {
		op = mapped
	}
	return fmt.Sprintf("%s %s %s", e.expr(b.Left, sc), op, e.expr(b.Right, sc))
}

func (e *emitter) expr(x Expr, sc emitScope) string {
	switch x := x.(type) {
	case nil:
		return "null"

	case Literal:
		switch x.Kind {
		case LitString:
			return e.stringLit(x.Str, sc)
		case LitBool:
			return strconv.FormatBool(x.Bool)
		}
		return formatNum(x)

	case Var:
		if c, ok := namedColors[x.Name]; ok && !e.shadowed(x.Name, sc) {
			return c
		}
		if ref, ok := sc.cells[x.Name]; ok {
			return ref.index
		}
		return x.Name

	case Binary:
		return "(" + e.binary(x, sc) + ")"

	case Unary:
		if x.Op == "not" {
			return "!" + e.expr(x.Operand, sc)
		}
		inner := e.expr(x.Operand, sc)
		if strings.HasPrefix(inner, "-") {
			return "-(" + inner + ")"
		}
		return "-" + inner

	case Member:
		return e.member(x, sc)

	case Index:
		if base, ok := x.Object.(Var); ok && namedColors[base.Name] != "" && !e.shadowed(base.Name, sc) {
			if c := e.color(x, sc); c != nil {
				return c.render(0)
			}
		}
		return fmt.Sprintf("%s[%s]", e.expr(x.Object, sc), e.expr(x.Index, sc))

	case Call:
		return e.call(x, sc)

	case MethodCall:
		method := x.Method
		switch method {
		case "index":
			method = "indexOf"
		case "length":
			if len(x.Args) == 0 {
				return e.expr(x.Object, sc) + ".length"
			}
		}
		return fmt.Sprintf("%s.%s(%s)", e.expr(x.Object, sc), method, e.args(x.Args, sc))

	case Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", e.cond(x.Cond, sc), e.expr(x.Then, sc), e.expr(x.Else, sc))

	case Array:
		if isPairArray(x) {
			props := make([]Pair, len(x.Elems))
			for i, el := range x.Elems {
				props[i] = el.(Pair)
			}
			return e.object(props, sc)
		}
		elems := make([]string, len(x.Elems))
		for i, el := range x.Elems {
			elems[i] = e.expr(el, sc)
		}
		return "[" + strings.Join(elems, ", ") + "]"

	case Object:
		return e.object(x.Props, sc)

	case Pair:
		return e.object([]Pair{x}, sc)
	}
	return "null"
}

func (e *emitter) object(props []Pair, sc emitScope) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = dartString(p.Key) + ": " + e.expr(p.Value, sc)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (e *emitter) args(args []Expr, sc emitScope) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = e.expr(a, sc)
	}
	return strings.Join(parts, ", ")
}

// member reads lifted grid state where possible.
func (e *emitter) member(m Member, sc emitScope) string {
	if v, ok := m.Object.(Var); ok {
		if v.Name == "repeat_by" && m.Field == "index" && sc.repeat != "" {
			return "index"
		}
		if ref, ok := sc.cells[v.Name]; ok && e.facts.IsLifted(ref.container, m.Field) {
			return fmt.Sprintf("%s_%s[%s]", ref.container, m.Field, ref.index)
		}
		if c, ok := sc.bound[v.Name]; ok && e.facts.IsLifted(c, m.Field) {
			return fmt.Sprintf("%s_%s[%s]", c, m.Field, v.Name)
		}
	}
	if inner, ok := m.Object.(Member); ok {
		if grid, idx, ok := e.gridCell(inner); ok && e.facts.IsLifted(grid, m.Field) {
			return fmt.Sprintf("%s_%s[%s]", grid, m.Field, idx)
		}
	}
	return e.expr(m.Object, sc) + "." + m.Field
}

func (e *emitter) call(c Call, sc emitScope) string {
	name, ok := calleeName(c)
	if !ok {
		return fmt.Sprintf("%s(%s)", e.expr(c.Callee, sc), e.args(c.Args, sc))
	}
	if Builtins[name] && !e.shadowed(name, sc) {
		if s, ok := e.builtin(name, c.Args, sc); ok {
			return s
		}
	}
	return fmt.Sprintf("%s(%s)", name, e.args(c.Args, sc))
}

func (e *emitter) builtin(name string, args []Expr, sc emitScope) (string, bool) {
	switch {
	case name == "length" && len(args) == 1:
		return e.expr(args[0], sc) + ".length", true
	case name == "rgb" && len(args) == 3:
		return e.rgb(args, sc), true
	case name == "random" && len(args) == 2:
		lo, hi := e.expr(args[0], sc), e.expr(args[1], sc)
		return fmt.Sprintf("(Random().nextInt(%s - %s + 1) + %s)", hi, lo, lo), true
	case name == WaitBuiltin && len(args) == 1:
		if lit, ok := args[0].(Literal); ok && lit.Kind == LitNumber && lit.IsInt {
			return fmt.Sprintf("await Future.delayed(const Duration(seconds: %d))", int(lit.Num)), true
		}
		return fmt.Sprintf("await Future.delayed(Duration(milliseconds: ((%s) * 1000).round()))", e.expr(args[0], sc)), true
	case name == "visit" && len(args) == 1:
		return fmt.Sprintf("print(\"visit: ${%s}\")", e.expr(args[0], sc)), true
	case name == "play" && len(args) == 1:
		return fmt.Sprintf("print(\"play: ${%s}\")", e.expr(args[0], sc)), true
	case name == "print":
		return fmt.Sprintf("print(%s)", e.args(args, sc)), true
	}
	return "", false
}

func formatNum(l Literal) string {
	if l.IsInt {
		return strconv.FormatInt(int64(l.Num), 10)
	}
	s := strconv.FormatFloat(l.Num, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// stringLit renders a Vi string as a Dart string. {expr} interpolates a Vi
// expression; {{ and }} are literal braces. Braces that do not hold a valid
// expression are kept as text.
func (e *emitter) stringLit(s string, sc emitScope) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			sb.WriteByte('{')
			i += 2
			continue
		case strings.HasPrefix(s[i:], "}}"):
			sb.WriteByte('}')
			i += 2
			continue
		case s[i] == '{':
			end := strings.IndexByte(s[i+1:], '}')
			if end >= 0 {
				inner := s[i+1 : i+1+end]
				if x, err := ParseExpr(inner); err == nil {
					sb.WriteString("${" + e.expr(x, sc) + "}")
					i += end + 2
					continue
				}
			}
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		writeEscaped(&sb, string(r))
		i += size
	}
	sb.WriteByte('"')
	return sb.String()
}
