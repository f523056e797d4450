package vi

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emit(t *testing.T, src string, opts EmitOptions) string {
	t.Helper()
	prog := mustParse(t, src)
	_, err := Validate(prog)
	require.NoError(t, err)
	return Emit(prog, Analyze(prog), opts)
}

func assertOrder(t *testing.T, out string, parts ...string) {
	t.Helper()
	last := -1
	for _, p := range parts {
		i := strings.Index(out, p)
		require.GreaterOrEqual(t, i, 0, "missing %q", p)
		assert.Greater(t, i, last, "%q out of order", p)
		last = i
	}
}

const counterSource = `count = 0
main app:
    children = [label, add]
label:
    text_content = "Count: {count}"
add:
    type = button
    text_content = "Add"
    on_click: inc()
inc():
    count = count + 1
`

func TestEmitCounter(t *testing.T) {
	out := emit(t, counterSource, EmitOptions{})

	assert.True(t, strings.HasPrefix(out, "// Generated by vic. Do not edit.\n// Source: t.vi\n"))
	assert.Contains(t, out, "import 'package:flutter/material.dart';")
	assert.Contains(t, out, "class ViApp extends StatefulWidget {")
	assert.Contains(t, out, "State<ViApp> createState() => _ViAppState();")
	assert.Contains(t, out, "  int count = 0;\n")
	assert.Contains(t, out, "  void inc() {\n    setState(() {\n      count = count + 1;\n    });\n  }\n")
	assert.Contains(t, out, `Text("Count: ${count}")`)
	assert.Contains(t, out, `ElevatedButton(onPressed: () => inc(), child: Text("Add"))`)
	assert.Contains(t, out, "Widget build(BuildContext context) {")
	assertOrder(t, out, "Scaffold(", "SafeArea(", "Column(", `Text("Count`, "ElevatedButton(")
}

func TestEmitAppOptions(t *testing.T) {
	t.Run("config container", func(t *testing.T) {
		out := emit(t, "config:\n    title = \"My App\"\n    debug_banner = true\n    icon = \"assets/icon.png\"\nmain app:\n    text_content = \"hi\"\n", EmitOptions{Title: "ignored"})
		assert.Contains(t, out, `title: "My App"`)
		assert.Contains(t, out, "debugShowCheckedModeBanner: true")
		assert.Contains(t, out, "// icon: assets/icon.png\n")
		assert.NotContains(t, out, "ignored")
	})

	t.Run("options", func(t *testing.T) {
		out := emit(t, "main app:\n    text_content = \"hi\"\n", EmitOptions{AppClass: "Board", Title: "Board Game"})
		assert.Contains(t, out, "class Board extends StatefulWidget {")
		assert.Contains(t, out, "State<Board> createState() => _BoardState();")
		assert.Contains(t, out, "class _BoardState extends State<Board> {")
		assert.Contains(t, out, `title: "Board Game"`)
		assert.Contains(t, out, "debugShowCheckedModeBanner: false")
	})

	t.Run("no main container", func(t *testing.T) {
		out := emit(t, "x = 1\n", EmitOptions{})
		assert.Contains(t, out, `Center(child: Text("No main container"))`)
		assert.Contains(t, out, `title: "Vi App"`)
	})
}

func TestEmitGrid(t *testing.T) {
	out := emit(t, `main grid:
    repeat_by = [2, 3]
    text_content = ""
    on_click: mark(1)
mark(cell):
    cell: text_content = "X"
`, EmitOptions{})

	assert.Contains(t, out, `List<String> grid_text_content = List.filled(6, "", growable: false);`)
	assert.Contains(t, out, "void mark(int cell) {")
	assert.Contains(t, out, `grid_text_content[cell] = "X";`)
	assert.Contains(t, out, "Text(grid_text_content[index])")
	assert.Contains(t, out, "onTap: () => mark(index)")
	assert.Contains(t, out, "crossAxisCount: 3")
	assert.Regexp(t, `List\.generate\(\s*6,`, out)
}

func TestEmitGridHandlerArguments(t *testing.T) {
	out := emit(t, `main grid:
    repeat_by = [1, 2]
    on_click: put(1, "X")
    on_long_press: clear
put(cell, mark):
    cell: text_content = mark
clear():
    print("clear")
`, EmitOptions{})
	assert.Contains(t, out, `onTap: () => put(index, "X")`)
	assert.Contains(t, out, "onLongPress: clear")
	assert.Contains(t, out, "grid_text_content[cell] = (mark).toString();")
}

func TestEmitGridIndexMapping(t *testing.T) {
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			t.Run(fmt.Sprintf("X%dY%d", x, y), func(t *testing.T) {
				src := fmt.Sprintf("main grid:\n    repeat_by = [2, 3]\npaint():\n    grid.X%dY%d: color = red\n", x, y)
				out := emit(t, src, EmitOptions{})
				assert.Contains(t, out, "List<Color?> grid_color = List.filled(6, null, growable: false);")
				assert.Contains(t, out, fmt.Sprintf("grid_color[%d] = Colors.red;", y*3+x))
			})
		}
	}

	cases := []struct {
		name   string
		repeat string
		path   string
		want   string
	}{
		{"column out of range", "[2, 3]", "X3Y0", "// grid.X3Y0.color = Colors.red;"},
		{"row out of range", "[2, 3]", "X0Y2", "// grid.X0Y2.color = Colors.red;"},
		{"depth on flat grid", "[2, 3]", "X1Y1Z1", "// grid.X1Y1Z1.color = Colors.red;"},
		{"three dimensions", "[2, 3, 2]", "X1Y1Z1", "grid_color[10] = Colors.red;"},
		{"not a cell", "[2, 3]", "header", "// grid.header.color = Colors.red;"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := fmt.Sprintf("main grid:\n    repeat_by = %s\npaint():\n    grid.%s: color = red\n", tc.repeat, tc.path)
			assert.Contains(t, emit(t, src, EmitOptions{}), tc.want)
		})
	}
}

func TestEmitCellLoop(t *testing.T) {
	out := emit(t, `main grid:
    repeat_by = [2, 3]
clear():
    for c in grid.children:
        c: text_content = ""
        if c.text_content == "":
            c: visibility = false
`, EmitOptions{})
	assert.Contains(t, out, "for (int cIdx = 0; cIdx < 6; cIdx++) {")
	assert.Contains(t, out, `grid_text_content[cIdx] = "";`)
	assert.Contains(t, out, `if (grid_text_content[cIdx] == "") {`)
	assert.Contains(t, out, "grid_visibility[cIdx] = false;")
	assert.Contains(t, out, "visible: grid_visibility[index]")
}

func TestEmitCommitBoundaries(t *testing.T) {
	t.Run("internal helper", func(t *testing.T) {
		out := emit(t, `count = 0
main app:
    on_click: bump()
bump():
    add(1)
add(n):
    count = count + n
`, EmitOptions{})
		assert.Contains(t, out, "  void bump() {\n    setState(() {\n      add(1);\n    });\n  }\n")
		assert.Contains(t, out, "  void add(dynamic n) {\n    count = count + n;\n  }\n")
		assert.Equal(t, 1, strings.Count(out, "setState("))
		assert.Contains(t, out, "GestureDetector(onTap: () => bump(), child: Container())")
	})

	t.Run("async", func(t *testing.T) {
		out := emit(t, `count = 0
main app:
    text_content = "{count}"
tick():
    wait_sec(1)
    count = count + 1
    wait_sec(0.5)
`, EmitOptions{})
		assert.Contains(t, out, "  Future<void> tick() async {\n"+
			"    await Future.delayed(const Duration(seconds: 1));\n"+
			"    count = count + 1;\n"+
			"    setState(() {});\n"+
			"    await Future.delayed(Duration(milliseconds: ((0.5) * 1000).round()));\n"+
			"  }\n")
	})

	t.Run("value returning", func(t *testing.T) {
		out := emit(t, `count = 0
main app:
    text_content = "x"
bump():
    count = count + 1
    return count
`, EmitOptions{})
		assert.Contains(t, out, "  dynamic bump() {\n    count = count + 1;\n    setState(() {});\n    return count;\n  }\n")
	})

	t.Run("async caller of a mutator", func(t *testing.T) {
		out := emit(t, `count = 0
main app:
    on_click: later()
later():
    wait_sec(2)
    add()
add():
    count = count + 1
`, EmitOptions{})
		assert.Contains(t, out, "    add();\n    setState(() {});\n")
		assert.Contains(t, out, "  void add() {\n    count = count + 1;\n  }\n")
	})

	t.Run("pure function", func(t *testing.T) {
		out := emit(t, "main app:\n    text_content = \"x\"\ntwice(n):\n    return n * 2\n", EmitOptions{})
		assert.Contains(t, out, "  dynamic twice(dynamic n) {\n    return n * 2;\n  }\n")
		assert.NotContains(t, out, "setState(")
	})
}

func TestEmitUntrackedMutation(t *testing.T) {
	out := emit(t, `main app:
    children = [label]
label:
    text_content = "a"
relabel():
    label: text_content = "b"
`, EmitOptions{})
	assert.Contains(t, out, "// label is not repeated; runtime changes to text_content are not tracked")
	assert.Contains(t, out, `// label.text_content = "b";`)
}

func TestEmitLocals(t *testing.T) {
	out := emit(t, `main app:
    text_content = "x"
pick(flag):
    if flag:
        y = 1
    else if not flag:
        y = 2.5
    else:
        y = "no"
    y = 3
    z = 1
    z = 2
    for item in [1, 2]:
        total = item
    helper(v):
        w = v
        return w
    helper(z)
`, EmitOptions{})

	assert.Equal(t, 1, strings.Count(out, "int y = 1;"))
	assert.Contains(t, out, "double y = 2.5;")
	assert.Contains(t, out, `String y = "no";`)
	assert.Contains(t, out, "int y = 3;")
	assert.Contains(t, out, "int z = 1;\n    z = 2;")
	assert.Contains(t, out, "} else if (!flag) {")
	assert.Contains(t, out, "for (var item in [1, 2]) {\n      dynamic total = item;")
	assert.Contains(t, out, "    dynamic helper(dynamic v) {\n      dynamic w = v;\n      return w;\n    }\n    helper(z);\n")
	assert.NotContains(t, out, "setState(")
}

func TestEmitHoistedLocals(t *testing.T) {
	out := emit(t, `main app:
    text_content = "x"
pick(c):
    if c:
        x = 1
    else:
        x = 2
    return x
mixed(c):
    if c:
        y = 1
    else:
        y = "one"
    print(y)
partial(c):
    if c:
        z = 1
    print(z)
`, EmitOptions{})

	assert.Contains(t, out, "    int x;\n    if (c) {\n      x = 1;\n    } else {\n      x = 2;\n    }\n    return x;\n")
	assert.Contains(t, out, "    dynamic y;\n    if (c) {\n      y = 1;\n    } else {\n      y = \"one\";\n    }\n    print(y);\n")
	assert.Contains(t, out, "    dynamic z;\n    if (c) {\n      z = 1;\n    }\n    print(z);\n")
	assert.NotContains(t, out, "int x = 1;")
}

func TestEmitFields(t *testing.T) {
	out := emit(t, `count = 0
ratio = 0.5
done = false
msg = "{{literal}} {count}"
price = "costs $5 {oops"
bad = "{a b}"
hashed = "{a # b}"
roll = random(1, 6)
tags = ["a", "b"]
point = [x: 1, y: 2]
flipped = not done
neg = - -1
main app:
    text_content = msg
`, EmitOptions{})

	for _, want := range []string{
		"  int count = 0;\n",
		"  double ratio = 0.5;\n",
		"  bool done = false;\n",
		`  late String msg = "{literal} ${count}";` + "\n",
		`  String price = "costs \$5 {oops";` + "\n",
		`  String bad = "{a b}";` + "\n",
		`  String hashed = "{a # b}";` + "\n",
		"  late int roll = (Random().nextInt(6 - 1 + 1) + 1);\n",
		`  List tags = ["a", "b"];` + "\n",
		`  Map<String, dynamic> point = {"x": 1, "y": 2};` + "\n",
		"  late bool flipped = !done;\n",
		"  int neg = -(-1);\n",
		"Text((msg).toString())",
	} {
		assert.Contains(t, out, want)
	}
}

func TestEmitColors(t *testing.T) {
	out := emit(t, `main app:
    children = [a, b, c, d]
a:
    text_content = "a"
    color = blue[300]
b:
    text_content = "b"
    color = rgb(10, 20, 30)
c:
    text_content = "c"
    color = "#FF0000"
d:
    text_content = "d"
    color = red if flag else green
flag = true
`, EmitOptions{})
	assert.Contains(t, out, "Container(color: Colors.blue[300], child: Text(\"a\"))")
	assert.Contains(t, out, "const Color.fromRGBO(10, 20, 30, 1.0)")
	assert.Contains(t, out, "const Color(0xFFFF0000)")
	assert.Contains(t, out, "(flag ? Colors.red : Colors.green)")
}

func TestEmitDecoratorOrder(t *testing.T) {
	out := emit(t, `shown = true
main app:
    text_content = "hi"
    visibility = shown
    color = red
    align_self = center
    margin = 8
`, EmitOptions{})
	assertOrder(t, out, "Padding(", "const EdgeInsets.all(8)", "Align(", "Alignment.center", "Container(", "Visibility(", `Text("hi")`)
}

func TestEmitHandlers(t *testing.T) {
	out := emit(t, `main app:
    children = [a, b, c]
a:
    type = button
    text_content = "a"
    on_click: reset
b:
    type = button
    text_content = "b"
    on_click: greet
c:
    type = link
    text_content = "docs"
    url = "https://example.com"
reset():
    print("r")
greet(name):
    print(name)
`, EmitOptions{})
	assert.Contains(t, out, `ElevatedButton(onPressed: reset, child: Text("a"))`)
	assert.Contains(t, out, `ElevatedButton(onPressed: () => greet(null), child: Text("b"))`)
	assert.Contains(t, out, `onTap: () => print("visit: ${"https://example.com"}")`)
	assert.Contains(t, out, "TextDecoration.underline")
}

func TestEmitWaitingHandler(t *testing.T) {
	out := emit(t, `main app:
    children = [pause, later]
pause:
    type = button
    text_content = "Pause"
    on_click: wait_sec(1)
later:
    text_content = "later"
    on_click: wait_sec(0.5)
`, EmitOptions{})
	assert.Contains(t, out, "onPressed: () async { await Future.delayed(const Duration(seconds: 1)); }")
	assert.Contains(t, out, "onTap: () async { await Future.delayed(Duration(milliseconds: ((0.5) * 1000).round())); }")
	assert.NotContains(t, out, "=> await")
}

func TestWidgetShapes(t *testing.T) {
	cases := []struct {
		name  string
		attrs string
		kind  string
		outer string
	}{
		{"grid", "repeat_by = [2, 2]", "GridView", "GridView.count("},
		{"grid before type", "repeat_by = [2, 2]\n    type = button", "GridView", "GridView.count("},
		{"button", "type = button\n    text_content = \"b\"", "ElevatedButton", "ElevatedButton("},
		{"input", "type = input", "TextField", "TextField("},
		{"type before scrollable", "type = input\n    scrollable = true", "TextField", "TextField("},
		{"search bar", "type = search_bar", "SearchBar", "SearchBar("},
		{"icon", "type = icon\n    icon = home", "Icon", "Icon(Icons.home)"},
		{"link", "type = link\n    text_content = \"l\"", "InkWell", "InkWell("},
		{"scroller", "type = scroller", "SingleChildScrollView", "SingleChildScrollView("},
		{"scrollable", "scrollable = true\n    children = [leaf]", "ListView", "ListView("},
		{"children", "children = [leaf]", "Column", "Column("},
		{"children before text", "children = [leaf]\n    text_content = \"t\"", "Column", "Column("},
		{"text", "text_content = \"t\"", "Text", "Text("},
		{"plain box", "color = red", "Container", "Container("},
	}
	const decorators = "\n    visibility = shown\n    align_self = center\n    margin = 8"

	render := func(t *testing.T, src string) (string, string) {
		t.Helper()
		prog := mustParse(t, src)
		facts := Analyze(prog)
		c, ok := prog.Containers.Get("app")
		require.True(t, ok)
		e := &emitter{prog: prog, facts: facts}
		return WidgetKinds(prog, facts)["app"], e.widget(c, emitScope{declared: map[string]bool{}}).render(0)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := "shown = true\nleaf:\n    text_content = \"leaf\"\nmain app:\n    "
			kind, out := render(t, base+tc.attrs+"\n")
			assert.Equal(t, tc.kind, kind)
			assert.True(t, strings.HasPrefix(out, tc.outer), out)

			kind, out = render(t, base+tc.attrs+decorators+"\n")
			assert.Equal(t, tc.kind, kind)
			assert.True(t, strings.HasPrefix(out, "Padding("), out)
			if tc.kind == "GridView" {
				assertOrder(t, out, "Padding(", "Align(", tc.outer, "Visibility(")
			} else {
				assertOrder(t, out, "Padding(", "Align(", "Visibility(", tc.outer)
			}
		})
	}
}

func TestWidgetKinds(t *testing.T) {
	prog := mustParse(t, `main app:
    children = [t, btn, inp, lst, box, ic, sb, lnk, scr, g]
t:
    text_content = "t"
btn:
    type = button
    text_content = "b"
inp:
    type = input
lst:
    scrollable = true
    children = [t]
box:
    color = red
ic:
    type = icon
    icon = home
sb:
    type = search_bar
lnk:
    type = link
    text_content = "l"
scr:
    type = scroller
g:
    repeat_by = [2, 2]
    children = [t]
`)
	kinds := WidgetKinds(prog, Analyze(prog))
	assert.Equal(t, map[string]string{
		"app": "Column",
		"t":   "Text",
		"btn": "ElevatedButton",
		"inp": "TextField",
		"lst": "ListView",
		"box": "Container",
		"ic":  "Icon",
		"sb":  "SearchBar",
		"lnk": "InkWell",
		"scr": "SingleChildScrollView",
		"g":   "GridView",
	}, kinds)

	out := Emit(prog, Analyze(prog), EmitOptions{})
	for _, kind := range kinds {
		if kind == "GridView" {
			kind = "GridView.count"
		}
		assert.Contains(t, out, kind+"(")
	}
	assert.Contains(t, out, "Icon(Icons.home)")
	assert.Contains(t, out, `hintText: "Enter text"`)
}

func TestEmitContainerCycleGuard(t *testing.T) {
	prog := mustParse(t, "main app:\n    children = [app]\n")
	out := Emit(prog, Analyze(prog), EmitOptions{})
	assert.Contains(t, out, "const SizedBox.shrink()")
}
