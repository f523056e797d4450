package vi

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// elementKinds maps the type attribute to a Flutter widget.
var elementKinds = map[string]string{
	"button":     "ElevatedButton",
	"input":      "TextField",
	"icon":       "Icon",
	"search_bar": "SearchBar",
	"link":       "InkWell",
	"scroller":   "SingleChildScrollView",
}

// gestureArgs pairs click-style attributes with GestureDetector callbacks.
var gestureArgs = [][2]string{
	{"on_click", "onTap"},
	{"on_double_click", "onDoubleTap"},
	{"on_long_press", "onLongPress"},
}

// wrap selects the decorators applied around a widget.
type wrap uint8

const (
	wrapGesture wrap = 1 << iota
	wrapVisibility
	wrapBox
	wrapAlign
	wrapMargin

	wrapAll = wrapGesture | wrapVisibility | wrapBox | wrapAlign | wrapMargin
)

// WidgetKinds returns the Flutter widget each declared container becomes,
// keyed by container name.
func WidgetKinds(prog *Program, facts *Facts) map[string]string {
	e := &emitter{prog: prog, facts: facts}
	kinds := make(map[string]string, len(facts.Containers))
	for name, c := range facts.Containers {
		kinds[name] = e.kind(c)
	}
	return kinds
}

// kind picks the widget for c: repeat expansion, then the type table, then
// scrollable, then children, then text, else a plain Container.
func (e *emitter) kind(c *Container) string {
	if _, ok := e.facts.Repeats[c.Name]; ok && e.facts.Containers[c.Name] == c {
		return "GridView"
	}
	if t, ok := elementType(c); ok {
		if k, ok := elementKinds[t]; ok {
			return k
		}
	}
	if truthy(c.Attr("scrollable")) {
		return "ListView"
	}
	if len(e.children(c)) > 0 {
		return "Column"
	}
	if c.Attrs.Has("text_content") {
		return "Text"
	}
	return "Container"
}

func truthy(x Expr) bool {
	switch x := x.(type) {
	case Literal:
		switch x.Kind {
		case LitBool:
			return x.Bool
		case LitNumber:
			return x.Num != 0
		case LitString:
			return x.Str != ""
		}
	case Var:
		return x.Name == "true" || x.Name == "yes"
	}
	return false
}

// children returns the declared containers c lists by name, then its inline
// children. Undeclared names are skipped.
func (e *emitter) children(c *Container) []*Container {
	var out []*Container
	for _, name := range childRefs(c) {
		if child, ok := e.prog.Containers.Get(name); ok {
			out = append(out, child)
		}
	}
	return append(out, c.Children...)
}

func (e *emitter) build(w *dartWriter) {
	w.line("@override")
	w.open("Widget build(BuildContext context) {")
	var body dart
	if c, ok := e.prog.Containers.Get(e.prog.Main); ok {
		body = e.widget(c, emitScope{declared: map[string]bool{}})
	} else {
		body = centerWidget(textWidget(dstr("No main container"), nil))
	}
	scaffold := newCall("Scaffold").arg("body", newCall("SafeArea").arg("child", body))
	w.line("return %s;", scaffold.render(w.depth))
	w.close("}")
}

func (e *emitter) widget(c *Container, sc emitScope) dart {
	if slices.Contains(sc.path, c.Name) {
		return code("const SizedBox.shrink()")
	}
	sc.path = append(sc.path[:len(sc.path):len(sc.path)], c.Name)

	switch e.kind(c) {
	case "GridView":
		return e.decorate(c, e.grid(c, e.facts.Repeats[c.Name], sc), sc, wrapAlign|wrapMargin)
	case "ElevatedButton":
		return e.decorate(c, e.button(c, sc), sc, wrapVisibility|wrapAlign|wrapMargin)
	case "TextField":
		field := newCall("TextField").
			arg("decoration", newCall("InputDecoration").arg("hintText", e.placeholder(c, sc)))
		return e.decorate(c, field, sc, wrapVisibility|wrapBox|wrapAlign|wrapMargin)
	case "SearchBar":
		bar := newCall("SearchBar").arg("hintText", e.placeholder(c, sc))
		return e.decorate(c, bar, sc, wrapVisibility|wrapBox|wrapAlign|wrapMargin)
	case "Icon":
		return e.decorate(c, e.icon(c, sc), sc, wrapGesture|wrapVisibility|wrapAlign|wrapMargin)
	case "InkWell":
		return e.decorate(c, e.link(c, sc), sc, wrapVisibility|wrapBox|wrapAlign|wrapMargin)
	case "SingleChildScrollView":
		view := newCall("SingleChildScrollView")
		if len(e.children(c)) > 0 {
			view.arg("child", e.column(c, sc))
		}
		return e.decorate(c, view, sc, wrapAll)
	case "ListView":
		kids := e.children(c)
		items := make([]dart, len(kids))
		for i, k := range kids {
			items[i] = e.widget(k, sc)
		}
		return e.decorate(c, listViewWidget(items), sc, wrapAll)
	case "Column":
		return e.decorate(c, e.column(c, sc), sc, wrapAll)
	case "Text":
		text := textWidget(code(e.attrValue("text_content", c.Attr("text_content"), sc)), e.textStyle(c.Attr("text_content_style"), sc))
		return e.decorate(c, text, sc, wrapAll)
	}
	return e.decorate(c, containerWidget(e.box(c, sc), nil), sc, wrapAll&^wrapBox)
}

// decorate layers the wrappers selected by flags around inner, innermost
// first: gesture, visibility, box, alignment, margin.
func (e *emitter) decorate(c *Container, inner dart, sc emitScope, flags wrap) dart {
	w := inner
	if flags&wrapGesture != 0 {
		if g := e.gestures(c, sc, ""); g != nil {
			w = g.arg("child", w)
		}
	}
	if flags&wrapVisibility != 0 {
		if v := c.Attr("visibility"); v != nil {
			w = visibilityWidget(code(e.expr(v, sc)), w)
		}
	}
	if flags&wrapBox != 0 {
		if box := e.box(c, sc); !box.empty() {
			w = containerWidget(box, w)
		}
	}
	if flags&wrapAlign != 0 {
		if a := alignment(c.Attr("align_self")); a != "" {
			w = alignWidget(a, w)
		}
	}
	if flags&wrapMargin != 0 {
		if m := e.margin(c.Attr("margin"), sc); m != nil {
			w = paddingWidget(m, w)
		}
	}
	return w
}

func (e *emitter) column(c *Container, sc emitScope) dart {
	kids := e.children(c)
	items := make([]dart, len(kids))
	size := "MainAxisSize.min"
	for i, k := range kids {
		items[i] = e.widget(k, sc)
		if isMaxHeight(k) {
			items[i] = expandedWidget(items[i])
			size = "MainAxisSize.max"
		}
	}
	main, cross := columnAlignment(c.Attr("align_children"))
	return columnWidget(main, cross, size, items)
}

func isMaxHeight(c *Container) bool {
	switch h := c.Attr("height").(type) {
	case Var:
		return h.Name == "max"
	case Literal:
		return h.Kind == LitString && h.Str == "max"
	}
	return false
}

// grid expands a repeated container into a GridView over its flattened
// cells. Lifted attributes are read from their state arrays by cell index.
func (e *emitter) grid(c *Container, r Repeat, sc emitScope) dart {
	name := c.Name
	sc.repeat = name

	var content dart
	if t := c.Attr("text_content"); t != nil || e.facts.IsLifted(name, "text_content") {
		var text dart = dstr("")
		if e.facts.IsLifted(name, "text_content") {
			text = code(name + "_text_content[index]")
		} else if t != nil {
			text = code(e.attrValue("text_content", t, sc))
		}
		var style dart
		if e.facts.IsLifted(name, "text_content_style") {
			style = code(name + "_text_content_style[index]")
		} else {
			style = e.textStyle(c.Attr("text_content_style"), sc)
		}
		content = centerWidget(textWidget(text, style))
	} else if len(e.children(c)) > 0 {
		content = e.column(c, sc)
	}

	color := e.color(c.Attr("color"), sc)
	if e.facts.IsLifted(name, "color") {
		if color != nil {
			color = code(fmt.Sprintf("%s_color[index] ?? %s", name, color.render(0)))
		} else {
			color = code(name + "_color[index]")
		}
	}
	var cell dart = containerWidget(boxProps{color: color, decoration: e.decoration(c, color)}, content)

	if e.facts.IsLifted(name, "visibility") {
		cell = visibilityWidget(code(name+"_visibility[index]"), cell)
	} else if v := c.Attr("visibility"); v != nil {
		cell = visibilityWidget(code(e.expr(v, sc)), cell)
	}
	if g := e.gestures(c, sc, "index"); g != nil {
		cell = g.arg("child", cell)
	}
	return gridWidget(r.Cols, r.Count, cell)
}

func (e *emitter) button(c *Container, sc emitScope) dart {
	var text dart = dstr("Button")
	if t := c.Attr("text_content"); t != nil {
		text = code(e.attrValue("text_content", t, sc))
	}
	var onPressed dart = code("null")
	if h := e.handler(c.Attr("on_click"), sc, ""); h != nil {
		onPressed = h
	}

	styleFrom := newCall("ElevatedButton.styleFrom").opt("backgroundColor", e.color(c.Attr("color"), sc))
	switch shapeName(c) {
	case "sqircle":
		styleFrom.arg("shape", code("RoundedRectangleBorder(borderRadius: BorderRadius.circular(16))"))
	case "circle":
		styleFrom.arg("shape", code("const CircleBorder()"))
	}
	w, h := dimension(c.Attr("width"), "width"), dimension(c.Attr("height"), "height")
	if w != nil && h != nil {
		size := code(fmt.Sprintf("Size(%s, %s)", w.render(0), h.render(0)))
		styleFrom.arg("minimumSize", size).arg("maximumSize", size)
	}

	btn := newCall("ElevatedButton").arg("onPressed", onPressed)
	if len(styleFrom.args) > 0 {
		btn.arg("style", styleFrom)
	}
	return btn.arg("child", textWidget(text, e.textStyle(c.Attr("text_content_style"), sc)))
}

func (e *emitter) placeholder(c *Container, sc emitScope) dart {
	if p := c.Attr("placeholder"); p != nil {
		return code(e.attrValue("text_content", p, sc))
	}
	return dstr("Enter text")
}

func (e *emitter) icon(c *Container, sc emitScope) dart {
	glyph := "help_outline"
	switch x := c.Attr("icon").(type) {
	case Var:
		glyph = x.Name
	case Literal:
		if x.Kind == LitString && x.Str != "" {
			glyph = x.Str
		}
	}
	icon := newCall("Icon").pos(code("Icons." + glyph)).opt("color", e.color(c.Attr("color"), sc))
	if size, ok := c.Attr("size").(Literal); ok && size.Kind == LitNumber {
		icon.arg("size", code(formatNum(Literal{Kind: LitNumber, Num: size.Num})))
	}
	return icon
}

func (e *emitter) link(c *Container, sc emitScope) dart {
	var text dart = dstr("")
	if t := c.Attr("text_content"); t != nil {
		text = code(e.attrValue("text_content", t, sc))
	}
	var onTap dart = code("null")
	if h := e.handler(c.Attr("on_click"), sc, ""); h != nil {
		onTap = h
	} else if url := c.Attr("url"); url != nil {
		onTap = code("() => " + e.expr(Call{Callee: Var{Name: "visit"}, Args: []Expr{url}}, sc))
	}
	style := newCall("TextStyle").
		arg("color", code("Colors.blue")).
		arg("decoration", code("TextDecoration.underline"))
	return newCall("InkWell").arg("onTap", onTap).arg("child", textWidget(text, style))
}

// handler renders an event attribute as a Dart callback. Inside a grid cell
// a call to a user function receives the cell index as its first argument.
func (e *emitter) handler(x Expr, sc emitScope, index string) dart {
	switch h := x.(type) {
	case nil:
		return nil
	case Var:
		fn, ok := e.prog.Funcs.Get(h.Name)
		if !ok {
			break
		}
		if index != "" && len(fn.Params) > 0 {
			return code(fmt.Sprintf("() => %s(%s)", h.Name, index))
		}
		if len(fn.Params) == 0 {
			return code(h.Name)
		}
		nulls := strings.TrimSuffix(strings.Repeat("null, ", len(fn.Params)), ", ")
		return code(fmt.Sprintf("() => %s(%s)", h.Name, nulls))
	case Call:
		name, ok := calleeName(h)
		fn, declared := e.prog.Funcs.Get(name)
		if !ok || !declared || index == "" || len(fn.Params) == 0 {
			break
		}
		args := []string{index}
		if len(h.Args) > 1 {
			args = append(args, e.args(h.Args[1:], sc))
		}
		return code(fmt.Sprintf("() => %s(%s)", name, strings.Join(args, ", ")))
	}
	if waits(x) {
		return code("() async { " + e.expr(x, sc) + "; }")
	}
	return code("() => " + e.expr(x, sc))
}

// gestures returns a GestureDetector without its child, or nil when c has no
// click-style handler.
func (e *emitter) gestures(c *Container, sc emitScope, index string) *dartCall {
	g := newCall("GestureDetector")
	for _, ga := range gestureArgs {
		if h := e.handler(c.Attr(ga[0]), sc, index); h != nil {
			g.arg(ga[1], h)
		}
	}
	if len(g.args) == 0 {
		return nil
	}
	return g
}

func (e *emitter) box(c *Container, sc emitScope) boxProps {
	color := e.color(c.Attr("color"), sc)
	return boxProps{
		width:      dimension(c.Attr("width"), "width"),
		height:     dimension(c.Attr("height"), "height"),
		color:      color,
		decoration: e.decoration(c, color),
	}
}

func shapeName(c *Container) string {
	switch s := c.Attr("shape").(type) {
	case Var:
		return s.Name
	case Literal:
		if s.Kind == LitString {
			return s.Str
		}
	}
	return ""
}

// decoration returns a BoxDecoration for shaped containers, or nil.
func (e *emitter) decoration(c *Container, color dart) dart {
	deco := newCall("BoxDecoration").opt("color", color)
	switch shapeName(c) {
	case "sqircle":
		deco.arg("borderRadius", code("BorderRadius.circular(16)"))
	case "circle":
		deco.arg("shape", code("BoxShape.circle"))
	default:
		return nil
	}
	return deco
}

// dimension renders a width or height: a number is a percentage of the
// screen, max fills the parent.
func dimension(x Expr, axis string) dart {
	switch x := x.(type) {
	case Literal:
		switch x.Kind {
		case LitNumber:
			return code(fmt.Sprintf("MediaQuery.of(context).size.%s * %s", axis, strconv.FormatFloat(x.Num/100, 'f', -1, 64)))
		case LitString:
			if x.Str == "max" {
				return code("double.infinity")
			}
		}
	case Var:
		if x.Name == "max" {
			return code("double.infinity")
		}
	}
	return nil
}

// margin renders a number, [vertical, horizontal] or
// [top, right, bottom, left] as EdgeInsets.
func (e *emitter) margin(x Expr, sc emitScope) dart {
	switch x := x.(type) {
	case Literal:
		if x.Kind == LitNumber {
			return code(fmt.Sprintf("const EdgeInsets.all(%s)", formatNum(x)))
		}
	case Array:
		vals := make([]string, len(x.Elems))
		for i, el := range x.Elems {
			vals[i] = e.expr(el, sc)
		}
		switch len(vals) {
		case 2:
			return code(fmt.Sprintf("EdgeInsets.symmetric(vertical: %s, horizontal: %s)", vals[0], vals[1]))
		case 4:
			return code(fmt.Sprintf("EdgeInsets.fromLTRB(%s, %s, %s, %s)", vals[3], vals[0], vals[1], vals[2]))
		}
	}
	return nil
}

func alignName(x Expr) string {
	switch x := x.(type) {
	case Var:
		return x.Name
	case Literal:
		if x.Kind == LitString {
			return x.Str
		}
	}
	return ""
}

func alignment(x Expr) string {
	switch alignName(x) {
	case "center", "centre":
		return "Alignment.center"
	case "top":
		return "Alignment.topCenter"
	case "bottom":
		return "Alignment.bottomCenter"
	case "left":
		return "Alignment.centerLeft"
	case "right":
		return "Alignment.centerRight"
	}
	return ""
}

func columnAlignment(x Expr) (main, cross string) {
	switch alignName(x) {
	case "center", "centre":
		return "MainAxisAlignment.center", "CrossAxisAlignment.center"
	case "right":
		return "MainAxisAlignment.start", "CrossAxisAlignment.end"
	}
	return "MainAxisAlignment.start", "CrossAxisAlignment.start"
}

// textStyle renders a text_content_style array of key: value pairs.
func (e *emitter) textStyle(x Expr, sc emitScope) dart {
	arr, ok := x.(Array)
	if !ok {
		return nil
	}
	style := newCall("TextStyle")
	for _, el := range arr.Elems {
		p, ok := el.(Pair)
		if !ok {
			continue
		}
		switch p.Key {
		case "font":
			switch alignName(p.Value) {
			case "bold":
				style.arg("fontWeight", code("FontWeight.bold"))
			case "italic":
				style.arg("fontStyle", code("FontStyle.italic"))
			case "bold_italic":
				style.arg("fontWeight", code("FontWeight.bold")).arg("fontStyle", code("FontStyle.italic"))
			}
		case "font_size", "size":
			if lit, ok := p.Value.(Literal); ok && lit.Kind == LitNumber {
				style.arg("fontSize", code(formatNum(Literal{Kind: LitNumber, Num: lit.Num})))
			} else {
				style.arg("fontSize", code(e.expr(p.Value, sc)))
			}
		case "color":
			if c := e.color(p.Value, sc); c != nil {
				style.arg("color", c)
			} else {
				style.arg("color", code(e.expr(p.Value, sc)))
			}
		}
	}
	if len(style.args) == 0 {
		return nil
	}
	return style
}
