package vi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse("t.vi", src)
	require.NoError(t, err)
	return prog
}

func TestParseVariables(t *testing.T) {
	prog := mustParse(t, `count = 0
name = "vi"
ratio = 1.5
flag = true
span = 1 to 10
dims = 3, 3
size = [2, 3]
`)

	assert.Equal(t, []string{"count", "name", "ratio", "flag", "span", "dims", "size"}, prog.Vars.Keys())

	cases := []struct {
		name string
		want Expr
	}{
		{"count", Int(0)},
		{"name", Str("vi")},
		{"ratio", Num(1.5, false)},
		{"flag", Bool(true)},
		{"span", Array{Elems: []Expr{Int(1), Int(10)}}},
		{"dims", Array{Elems: []Expr{Int(3), Int(3)}}},
		{"size", Array{Elems: []Expr{Int(2), Int(3)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := prog.Vars.Get(tc.name)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseImports(t *testing.T) {
	prog := mustParse(t, "from \"lib.vi\" import a, b\nimport \"all.vi\"\nfrom \"x.vi\" import *\n")
	assert.Equal(t, []Import{
		{Source: "lib.vi", Names: []string{"a", "b"}, Line: 1},
		{Source: "all.vi", All: true, Line: 2},
		{Source: "x.vi", All: true, Line: 3},
	}, prog.Imports)
}

func TestParseFunctions(t *testing.T) {
	prog := mustParse(t, "inc(by):\n    count = count + by\n\nreset():\n    count = 0\n")

	inc, ok := prog.Funcs.Get("inc")
	require.True(t, ok)
	assert.Equal(t, &Function{
		Name:   "inc",
		Params: []string{"by"},
		Line:   1,
		Body: []Stmt{
			Assign{Target: Var{Name: "count"}, Value: Binary{Op: "+", Left: Var{Name: "count"}, Right: Var{Name: "by"}}},
		},
	}, inc)

	reset, ok := prog.Funcs.Get("reset")
	require.True(t, ok)
	assert.Empty(t, reset.Params)
	assert.Equal(t, 4, reset.Line)
	assert.Equal(t, []Stmt{Assign{Target: Var{Name: "count"}, Value: Int(0)}}, reset.Body)
}

func TestParseContainers(t *testing.T) {
	t.Run("main with attributes", func(t *testing.T) {
		prog := mustParse(t, `main app:
    children = [title, button]
    padding = 10
    on_click: inc(1)
    text_content: "Count: {count}"
`)
		assert.Equal(t, "app", prog.Main)
		app, ok := prog.Containers.Get("app")
		require.True(t, ok)
		assert.Equal(t, 1, app.Line)
		assert.Equal(t, []string{"children", "padding", "on_click", "text_content"}, app.Attrs.Keys())
		assert.Equal(t, Array{Elems: []Expr{Var{Name: "title"}, Var{Name: "button"}}}, app.Attr("children"))
		assert.Equal(t, Int(10), app.Attr("padding"))
		assert.Equal(t, Call{Callee: Var{Name: "inc"}, Args: []Expr{Int(1)}}, app.Attr("on_click"))
		assert.Equal(t, Str("Count: {count}"), app.Attr("text_content"))
		assert.Nil(t, app.Attr("color"))
	})

	t.Run("inline children", func(t *testing.T) {
		prog := mustParse(t, "main app:\n    header:\n        text_content = \"hi\"\n    color = blue\n")
		app, _ := prog.Containers.Get("app")
		require.Len(t, app.Children, 1)
		assert.Equal(t, "header", app.Children[0].Name)
		assert.Equal(t, 2, app.Children[0].Line)
		assert.Equal(t, Str("hi"), app.Children[0].Attr("text_content"))
		assert.Equal(t, Var{Name: "blue"}, app.Attr("color"))
		assert.False(t, prog.Containers.Has("header"))
	})

	t.Run("shared body", func(t *testing.T) {
		prog := mustParse(t, "a, b:\n    text_content = \"x\"\n")
		assert.Equal(t, []string{"a", "b"}, prog.Containers.Keys())
		a, _ := prog.Containers.Get("a")
		b, _ := prog.Containers.Get("b")
		assert.Equal(t, "a", a.Name)
		assert.Equal(t, "b", b.Name)
		assert.Equal(t, Str("x"), b.Attr("text_content"))

		a.Attrs.Set("color", Var{Name: "red"})
		assert.Nil(t, b.Attr("color"))
	})

	t.Run("config", func(t *testing.T) {
		prog := mustParse(t, "config:\n    title = \"My App\"\n")
		require.NotNil(t, prog.Config)
		assert.Equal(t, Str("My App"), prog.Config.Attr("title"))
		assert.Zero(t, prog.Containers.Len())
	})

	t.Run("multi-line array", func(t *testing.T) {
		prog := mustParse(t, "main app:\n    children = [\n        a,\n        b,\n    ]\n")
		app, _ := prog.Containers.Get("app")
		assert.Equal(t, Array{Elems: []Expr{Var{Name: "a"}, Var{Name: "b"}}}, app.Attr("children"))
	})

	t.Run("unrecognised lines are skipped", func(t *testing.T) {
		prog := mustParse(t, "main app:\n    width 50\n    42\n    color = red\n")
		app, _ := prog.Containers.Get("app")
		assert.Equal(t, []string{"color"}, app.Attrs.Keys())
	})
}

func TestParseStatements(t *testing.T) {
	prog := mustParse(t, `f(x):
    if x > 1:
        y = 1
    else if x == 1:
        y = 2
    else:
        y = 3
    for c in grid.children:
        c.text_content = ""
    while x > 0:
        x = x - 1
    label: text_content = "b"
    label:
        color = red
        visibility = false
    helper(n):
        return n * 2
    v = "a" if x else "b"
    w = if (x) 1 else 2
    i = items.index(3)
    o = {a: 1, "b": 2}
    return
`)
	fn, ok := prog.Funcs.Get("f")
	require.True(t, ok)

	x, y := Var{Name: "x"}, Var{Name: "y"}
	want := []Stmt{
		If{
			Cond: Binary{Op: ">", Left: x, Right: Int(1)},
			Then: []Stmt{Assign{Target: y, Value: Int(1)}},
			Else: []Stmt{If{
				Cond: Binary{Op: "==", Left: x, Right: Int(1)},
				Then: []Stmt{Assign{Target: y, Value: Int(2)}},
				Else: []Stmt{Assign{Target: y, Value: Int(3)}},
			}},
		},
		For{
			Var:  "c",
			Iter: Member{Object: Var{Name: "grid"}, Field: "children"},
			Body: []Stmt{Assign{Target: Member{Object: Var{Name: "c"}, Field: "text_content"}, Value: Str("")}},
		},
		While{
			Cond: Binary{Op: ">", Left: x, Right: Int(0)},
			Body: []Stmt{Assign{Target: x, Value: Binary{Op: "-", Left: x, Right: Int(1)}}},
		},
		Mutate{Target: Var{Name: "label"}, Attrs: []Pair{{Key: "text_content", Value: Str("b")}}},
		Mutate{Target: Var{Name: "label"}, Attrs: []Pair{
			{Key: "color", Value: Var{Name: "red"}},
			{Key: "visibility", Value: Bool(false)},
		}},
		FuncDef{Func: &Function{
			Name:   "helper",
			Params: []string{"n"},
			Line:   16,
			Body:   []Stmt{Return{Value: Binary{Op: "*", Left: Var{Name: "n"}, Right: Int(2)}}},
		}},
		Assign{Target: Var{Name: "v"}, Value: Ternary{Cond: x, Then: Str("a"), Else: Str("b")}},
		Assign{Target: Var{Name: "w"}, Value: Ternary{Cond: x, Then: Int(1), Else: Int(2)}},
		Assign{Target: Var{Name: "i"}, Value: MethodCall{Object: Var{Name: "items"}, Method: "index", Args: []Expr{Int(3)}}},
		Assign{Target: Var{Name: "o"}, Value: Object{Props: []Pair{{Key: "a", Value: Int(1)}, {Key: "b", Value: Int(2)}}}},
		Return{},
	}
	require.Len(t, fn.Body, len(want))
	for i := range want {
		assert.Equal(t, want[i], fn.Body[i], "statement %d", i)
	}
}

func TestParsePrecedence(t *testing.T) {
	cases := []struct {
		src  string
		want Expr
	}{
		{"1 + 2 * 3", Binary{Op: "+", Left: Int(1), Right: Binary{Op: "*", Left: Int(2), Right: Int(3)}}},
		{"(1 + 2) * 3", Binary{Op: "*", Left: Binary{Op: "+", Left: Int(1), Right: Int(2)}, Right: Int(3)}},
		{"a or b and c", Binary{Op: "or", Left: Var{Name: "a"}, Right: Binary{Op: "and", Left: Var{Name: "b"}, Right: Var{Name: "c"}}}},
		{"not a == b", Binary{Op: "==", Left: Unary{Op: "not", Operand: Var{Name: "a"}}, Right: Var{Name: "b"}}},
		{"-x", Unary{Op: "-", Operand: Var{Name: "x"}}},
		{"grid.children[2].text_content", Member{Object: Index{Object: Member{Object: Var{Name: "grid"}, Field: "children"}, Index: Int(2)}, Field: "text_content"}},
		{"random(1, 6)", Call{Callee: Var{Name: "random"}, Args: []Expr{Int(1), Int(6)}}},
		{"[x: 1, y: 2]", Array{Elems: []Expr{Pair{Key: "x", Value: Int(1)}, Pair{Key: "y", Value: Int(2)}}}},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			got, err := ParseExpr(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseExprErrors(t *testing.T) {
	for _, src := range []string{"", "1 2", "(1", "a +"} {
		_, err := ParseExpr(src)
		assert.Error(t, err, src)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{name: "double assign", src: "x = = 1\n", line: 1, msg: "unexpected '='"},
		{name: "literal target", src: "f(x):\n    1 = 2\n", line: 2, msg: "cannot assign to literal expression"},
		{name: "import without names", src: "from \"a.vi\" import\n", line: 1, msg: "expected IDENTIFIER, got NEWLINE"},
		{name: "bare name", src: "x\n", line: 1, msg: `expected '=', '(' or ':' after "x", got NEWLINE`},
		{name: "leading indent", src: "  x = 1\n", line: 1, msg: "unexpected indent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("t.vi", tc.src)
			var synErr *SyntaxError
			require.True(t, errors.As(err, &synErr), "got %v", err)
			assert.Equal(t, tc.line, synErr.Token.Line)
			assert.Equal(t, tc.msg, synErr.Msg)
			assert.NotEmpty(t, synErr.Context)
			assert.Contains(t, err.Error(), "t.vi: syntax error at line")
		})
	}
}
