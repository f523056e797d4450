package vi

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProgramMap returns prog as nested maps and slices. Tables are encoded as
// ordered lists of entries, and number literals record whether they were
// written as integers, so DecodeProgram restores the same Program.
func ProgramMap(prog *Program) map[string]any {
	imports := make([]any, len(prog.Imports))
	for i, imp := range prog.Imports {
		names := make([]any, len(imp.Names))
		for j, n := range imp.Names {
			names[j] = n
		}
		imports[i] = map[string]any{"source": imp.Source, "names": names, "all": imp.All, "line": imp.Line}
	}
	vars := make([]any, 0, prog.Vars.Len())
	for _, name := range prog.Vars.Keys() {
		v, _ := prog.Vars.Get(name)
		vars = append(vars, map[string]any{"name": name, "value": exprMap(v)})
	}
	funcs := make([]any, 0, prog.Funcs.Len())
	for _, name := range prog.Funcs.Keys() {
		fn, _ := prog.Funcs.Get(name)
		funcs = append(funcs, funcMap(fn))
	}
	containers := make([]any, 0, prog.Containers.Len())
	for _, name := range prog.Containers.Keys() {
		c, _ := prog.Containers.Get(name)
		containers = append(containers, containerMap(c))
	}
	m := map[string]any{
		"file":       prog.File,
		"imports":    imports,
		"variables":  vars,
		"functions":  funcs,
		"containers": containers,
		"main":       prog.Main,
	}
	if prog.Config != nil {
		m["config"] = containerMap(prog.Config)
	}
	return m
}

// EncodeProgram renders prog as indented JSON.
func EncodeProgram(prog *Program) ([]byte, error) {
	s, err := structpb.NewStruct(ProgramMap(prog))
	if err != nil {
		return nil, fmt.Errorf("encoding program: %w", err)
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

// DecodeProgram parses JSON produced by EncodeProgram.
func DecodeProgram(data []byte) (*Program, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	d := &astDecoder{}
	prog := d.program(s.AsMap())
	if d.err != nil {
		return nil, fmt.Errorf("decoding program: %w", d.err)
	}
	return prog, nil
}

func pairsMap(pairs []Pair) []any {
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = map[string]any{"key": p.Key, "value": exprMap(p.Value)}
	}
	return out
}

func funcMap(fn *Function) map[string]any {
	params := make([]any, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p
	}
	return map[string]any{"name": fn.Name, "params": params, "body": stmtsMap(fn.Body), "line": fn.Line}
}

func containerMap(c *Container) map[string]any {
	attrs := make([]any, 0, c.Attrs.Len())
	for _, k := range c.Attrs.Keys() {
		v, _ := c.Attrs.Get(k)
		attrs = append(attrs, map[string]any{"key": k, "value": exprMap(v)})
	}
	children := make([]any, len(c.Children))
	for i, child := range c.Children {
		children[i] = containerMap(child)
	}
	return map[string]any{"name": c.Name, "line": c.Line, "attributes": attrs, "children": children}
}

func exprsMap(xs []Expr) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = exprMap(x)
	}
	return out
}

func exprMap(x Expr) any {
	switch x := x.(type) {
	case Literal:
		switch x.Kind {
		case LitString:
			return map[string]any{"type": "literal", "value_type": "string", "value": x.Str}
		case LitBool:
			return map[string]any{"type": "literal", "value_type": "boolean", "value": x.Bool}
		}
		return map[string]any{"type": "literal", "value_type": "number", "value": x.Num, "int": x.IsInt}
	case Var:
		return map[string]any{"type": "var", "name": x.Name}
	case Binary:
		return map[string]any{"type": "binary", "op": x.Op, "left": exprMap(x.Left), "right": exprMap(x.Right)}
	case Unary:
		return map[string]any{"type": "unary", "op": x.Op, "operand": exprMap(x.Operand)}
	case Member:
		return map[string]any{"type": "member", "object": exprMap(x.Object), "field": x.Field}
	case Index:
		return map[string]any{"type": "index", "object": exprMap(x.Object), "index": exprMap(x.Index)}
	case Call:
		return map[string]any{"type": "call", "function": exprMap(x.Callee), "args": exprsMap(x.Args)}
	case MethodCall:
		return map[string]any{"type": "method_call", "object": exprMap(x.Object), "method": x.Method, "args": exprsMap(x.Args)}
	case Ternary:
		return map[string]any{"type": "ternary", "condition": exprMap(x.Cond), "then": exprMap(x.Then), "else": exprMap(x.Else)}
	case Array:
		return map[string]any{"type": "array", "elements": exprsMap(x.Elems)}
	case Object:
		return map[string]any{"type": "object", "properties": pairsMap(x.Props)}
	case Pair:
		return map[string]any{"type": "kvpair", "key": x.Key, "value": exprMap(x.Value)}
	}
	return nil
}

func stmtsMap(body []Stmt) []any {
	out := make([]any, len(body))
	for i, s := range body {
		out[i] = stmtMap(s)
	}
	return out
}

func stmtMap(s Stmt) map[string]any {
	switch s := s.(type) {
	case Assign:
		return map[string]any{"type": "assign", "target": exprMap(s.Target), "value": exprMap(s.Value)}
	case Return:
		return map[string]any{"type": "return", "value": exprMap(s.Value)}
	case If:
		return map[string]any{"type": "if", "condition": exprMap(s.Cond), "then": stmtsMap(s.Then), "else": stmtsMap(s.Else)}
	case For:
		return map[string]any{"type": "for", "var": s.Var, "iter": exprMap(s.Iter), "body": stmtsMap(s.Body)}
	case While:
		return map[string]any{"type": "while", "condition": exprMap(s.Cond), "body": stmtsMap(s.Body)}
	case ExprStmt:
		return map[string]any{"type": "expr", "expr": exprMap(s.X)}
	case Mutate:
		return map[string]any{"type": "modify", "target": exprMap(s.Target), "attributes": pairsMap(s.Attrs)}
	case FuncDef:
		return map[string]any{"type": "funcdef", "function": funcMap(s.Func)}
	}
	return nil
}

// astDecoder keeps the first error; later lookups return zero values.
type astDecoder struct {
	err error
}

func (d *astDecoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *astDecoder) obj(v any, what string) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		d.fail("%s: expected object, got %T", what, v)
	}
	return m
}

func (d *astDecoder) list(m map[string]any, key string) []any {
	switch v := m[key].(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		d.fail("%s: expected list, got %T", key, v)
		return nil
	}
}

func (d *astDecoder) str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		d.fail("%s: expected string, got %T", key, v)
		return ""
	}
}

func (d *astDecoder) num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case nil:
		return 0
	case float64:
		return v
	default:
		d.fail("%s: expected number, got %T", key, v)
		return 0
	}
}

func (d *astDecoder) boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func (d *astDecoder) strs(m map[string]any, key string) []string {
	items := d.list(m, key)
	if len(items) == 0 {
		return nil
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			d.fail("%s: expected string, got %T", key, it)
		}
		out[i] = s
	}
	return out
}

func (d *astDecoder) program(m map[string]any) *Program {
	prog := &Program{File: d.str(m, "file"), Main: d.str(m, "main")}
	for _, it := range d.list(m, "imports") {
		im := d.obj(it, "import")
		prog.Imports = append(prog.Imports, Import{
			Source: d.str(im, "source"),
			Names:  d.strs(im, "names"),
			All:    d.boolean(im, "all"),
			Line:   int(d.num(im, "line")),
		})
	}
	for _, it := range d.list(m, "variables") {
		vm := d.obj(it, "variable")
		prog.Vars.Set(d.str(vm, "name"), d.expr(vm["value"]))
	}
	for _, it := range d.list(m, "functions") {
		fn := d.function(d.obj(it, "function"))
		prog.Funcs.Set(fn.Name, fn)
	}
	for _, it := range d.list(m, "containers") {
		c := d.container(d.obj(it, "container"))
		prog.Containers.Set(c.Name, c)
	}
	if cfg, ok := m["config"]; ok && cfg != nil {
		prog.Config = d.container(d.obj(cfg, "config"))
	}
	return prog
}

func (d *astDecoder) function(m map[string]any) *Function {
	return &Function{
		Name:   d.str(m, "name"),
		Params: d.strs(m, "params"),
		Body:   d.stmts(d.list(m, "body")),
		Line:   int(d.num(m, "line")),
	}
}

func (d *astDecoder) container(m map[string]any) *Container {
	c := &Container{Name: d.str(m, "name"), Line: int(d.num(m, "line"))}
	for _, p := range d.pairs(d.list(m, "attributes")) {
		c.Attrs.Set(p.Key, p.Value)
	}
	for _, it := range d.list(m, "children") {
		c.Children = append(c.Children, d.container(d.obj(it, "child")))
	}
	return c
}

func (d *astDecoder) pairs(items []any) []Pair {
	var out []Pair
	for _, it := range items {
		pm := d.obj(it, "pair")
		out = append(out, Pair{Key: d.str(pm, "key"), Value: d.expr(pm["value"])})
	}
	return out
}

func (d *astDecoder) exprs(items []any) []Expr {
	var out []Expr
	for _, it := range items {
		out = append(out, d.expr(it))
	}
	return out
}

func (d *astDecoder) expr(v any) Expr {
	if v == nil {
		return nil
	}
	m := d.obj(v, "expression")
	switch t := d.str(m, "type"); t {
	case "literal":
		switch d.str(m, "value_type") {
		case "string":
			return Str(d.str(m, "value"))
		case "boolean":
			return Bool(d.boolean(m, "value"))
		}
		return Num(d.num(m, "value"), d.boolean(m, "int"))
	case "var":
		return Var{Name: d.str(m, "name")}
	case "binary":
		return Binary{Op: d.str(m, "op"), Left: d.expr(m["left"]), Right: d.expr(m["right"])}
	case "unary":
		return Unary{Op: d.str(m, "op"), Operand: d.expr(m["operand"])}
	case "member":
		return Member{Object: d.expr(m["object"]), Field: d.str(m, "field")}
	case "index":
		return Index{Object: d.expr(m["object"]), Index: d.expr(m["index"])}
	case "call":
		return Call{Callee: d.expr(m["function"]), Args: d.exprs(d.list(m, "args"))}
	case "method_call":
		return MethodCall{Object: d.expr(m["object"]), Method: d.str(m, "method"), Args: d.exprs(d.list(m, "args"))}
	case "ternary":
		return Ternary{Cond: d.expr(m["condition"]), Then: d.expr(m["then"]), Else: d.expr(m["else"])}
	case "array":
		return Array{Elems: d.exprs(d.list(m, "elements"))}
	case "object":
		return Object{Props: d.pairs(d.list(m, "properties"))}
	case "kvpair":
		return Pair{Key: d.str(m, "key"), Value: d.expr(m["value"])}
	default:
		d.fail("unknown expression type %q", t)
		return nil
	}
}

func (d *astDecoder) stmts(items []any) []Stmt {
	var out []Stmt
	for _, it := range items {
		if s := d.stmt(d.obj(it, "statement")); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (d *astDecoder) stmt(m map[string]any) Stmt {
	switch t := d.str(m, "type"); t {
	case "assign":
		return Assign{Target: d.expr(m["target"]), Value: d.expr(m["value"])}
	case "return":
		return Return{Value: d.expr(m["value"])}
	case "if":
		return If{Cond: d.expr(m["condition"]), Then: d.stmts(d.list(m, "then")), Else: d.stmts(d.list(m, "else"))}
	case "for":
		return For{Var: d.str(m, "var"), Iter: d.expr(m["iter"]), Body: d.stmts(d.list(m, "body"))}
	case "while":
		return While{Cond: d.expr(m["condition"]), Body: d.stmts(d.list(m, "body"))}
	case "expr":
		return ExprStmt{X: d.expr(m["expr"])}
	case "modify":
		return Mutate{Target: d.expr(m["target"]), Attrs: d.pairs(d.list(m, "attributes"))}
	case "funcdef":
		return FuncDef{Func: d.function(d.obj(m["function"], "function"))}
	default:
		d.fail("unknown statement type %q", t)
		return nil
	}
}
