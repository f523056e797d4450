package vi

import (
	"fmt"
	"strings"
)

// inlineWidth is the longest call rendered on a single line.
const inlineWidth = 72

// dart is a fragment of Dart expression source that can render itself at a
// given nesting depth. Widget constructors below take their required parts
// as parameters, so a fragment cannot be built with a slot left empty.
type dart interface {
	render(depth int) string
}

// code is an already well-formed inline Dart expression.
type code string

func (c code) render(int) string { return string(c) }

type dartArg struct {
	name  string // empty for positional arguments
	value dart
}

// dartCall is a constructor or function call.
type dartCall struct {
	callee  string
	isConst bool
	args    []dartArg
}

func newCall(callee string) *dartCall {
	if callee == "" {
		panic("vi: dart call without callee")
	}
	return &dartCall{callee: callee}
}

func (c *dartCall) constant() *dartCall {
	c.isConst = true
	return c
}

// pos appends a positional argument. Positional arguments must precede named ones.
func (c *dartCall) pos(v dart) *dartCall {
	if v == nil {
		panic(fmt.Sprintf("vi: nil positional argument to %s", c.callee))
	}
	c.args = append(c.args, dartArg{value: v})
	return c
}

// arg appends a required named argument.
func (c *dartCall) arg(name string, v dart) *dartCall {
	if v == nil {
		panic(fmt.Sprintf("vi: nil %s argument to %s", name, c.callee))
	}
	c.args = append(c.args, dartArg{name: name, value: v})
	return c
}

// opt appends a named argument when v is set.
func (c *dartCall) opt(name string, v dart) *dartCall {
	if v == nil {
		return c
	}
	if s, ok := v.(code); ok && s == "" {
		return c
	}
	c.args = append(c.args, dartArg{name: name, value: v})
	return c
}

func (c *dartCall) head() string {
	if c.isConst {
		return "const " + c.callee
	}
	return c.callee
}

func (c *dartCall) render(depth int) string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.render(depth + 1)
	}
	inline := c.head() + "(" + strings.Join(parts, ", ") + ")"
	if !strings.Contains(inline, "\n") && (len(c.args) <= 1 || len(inline) <= inlineWidth) {
		return inline
	}

	var sb strings.Builder
	sb.WriteString(c.head())
	sb.WriteString("(\n")
	for _, p := range parts {
		sb.WriteString(pad(depth + 1))
		sb.WriteString(p)
		sb.WriteString(",\n")
	}
	sb.WriteString(pad(depth))
	sb.WriteString(")")
	return sb.String()
}

func (a dartArg) render(depth int) string {
	if a.name == "" {
		return a.value.render(depth)
	}
	return a.name + ": " + a.value.render(depth)
}

// dartList is a list literal.
type dartList struct {
	elems []dart
}

func (l dartList) render(depth int) string {
	if len(l.elems) == 0 {
		return "[]"
	}
	parts := make([]string, len(l.elems))
	for i, e := range l.elems {
		parts[i] = e.render(depth + 1)
	}
	inline := "[" + strings.Join(parts, ", ") + "]"
	if len(inline) <= inlineWidth && !strings.Contains(inline, "\n") {
		return inline
	}
	var sb strings.Builder
	sb.WriteString("[\n")
	for _, p := range parts {
		sb.WriteString(pad(depth + 1))
		sb.WriteString(p)
		sb.WriteString(",\n")
	}
	sb.WriteString(pad(depth))
	sb.WriteString("]")
	return sb.String()
}

// dartLambda is `(params) => body`.
type dartLambda struct {
	params string
	body   dart
}

func (l dartLambda) render(depth int) string {
	return "(" + l.params + ") => " + l.body.render(depth)
}

func pad(depth int) string { return strings.Repeat("  ", depth) }

func dstr(s string) code { return code(dartString(s)) }

// dartString quotes s as a Dart string literal with no interpolation.
func dartString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	writeEscaped(&sb, s)
	sb.WriteByte('"')
	return sb.String()
}

// writeEscaped writes s for use inside a double-quoted Dart string.
func writeEscaped(sb *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '$':
			sb.WriteString(`\$`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
}

// Widget constructors.

func textWidget(text dart, style dart) *dartCall {
	return newCall("Text").pos(text).opt("style", style)
}

func visibilityWidget(visible dart, child dart) *dartCall {
	return newCall("Visibility").arg("visible", visible).arg("child", child)
}

func alignWidget(alignment string, child dart) *dartCall {
	return newCall("Align").arg("alignment", code(alignment)).arg("child", child)
}

func paddingWidget(insets dart, child dart) *dartCall {
	return newCall("Padding").arg("padding", insets).arg("child", child)
}

func expandedWidget(child dart) *dartCall {
	return newCall("Expanded").arg("child", child)
}

func centerWidget(child dart) *dartCall {
	return newCall("Center").arg("child", child)
}

// boxProps are the optional properties of a Container widget.
type boxProps struct {
	width, height dart
	color         dart
	decoration    dart
}

func (b boxProps) empty() bool {
	return b.width == nil && b.height == nil && b.color == nil && b.decoration == nil
}

// containerWidget builds a Container. Flutter rejects color together with
// decoration, so color is dropped when a decoration is set.
func containerWidget(b boxProps, child dart) *dartCall {
	c := newCall("Container").opt("width", b.width).opt("height", b.height)
	if b.decoration != nil {
		c.arg("decoration", b.decoration)
	} else {
		c.opt("color", b.color)
	}
	return c.opt("child", child)
}

func columnWidget(mainAxis, crossAxis, size string, children []dart) *dartCall {
	return newCall("Column").
		arg("mainAxisAlignment", code(mainAxis)).
		arg("crossAxisAlignment", code(crossAxis)).
		arg("mainAxisSize", code(size)).
		arg("children", dartList{elems: children})
}

func listViewWidget(children []dart) *dartCall {
	return newCall("ListView").
		arg("shrinkWrap", code("true")).
		arg("children", dartList{elems: children})
}

func gridWidget(cols, count int, cell dart) *dartCall {
	gen := newCall("List.generate").
		pos(code(fmt.Sprint(count))).
		pos(dartLambda{params: "index", body: cell})
	return newCall("GridView.count").
		arg("crossAxisCount", code(fmt.Sprint(cols))).
		arg("shrinkWrap", code("true")).
		arg("physics", code("const NeverScrollableScrollPhysics()")).
		arg("childAspectRatio", code("1.0")).
		arg("children", gen)
}

// dartWriter accumulates indented Dart statements.
type dartWriter struct {
	sb    strings.Builder
	depth int
}

func (w *dartWriter) line(format string, args ...any) {
	if format == "" {
		w.sb.WriteByte('\n')
		return
	}
	w.sb.WriteString(pad(w.depth))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *dartWriter) open(format string, args ...any) {
	w.line(format, args...)
	w.depth++
}

func (w *dartWriter) close(s string) {
	w.depth--
	w.line("%s", s)
}

func (w *dartWriter) String() string { return w.sb.String() }
