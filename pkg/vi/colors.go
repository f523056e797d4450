package vi

import (
	"fmt"
	"strconv"
	"strings"
)

// namedColors maps Vi color names to Flutter Colors constants.
var namedColors = map[string]string{
	"red":         "Colors.red",
	"pink":        "Colors.pink",
	"purple":      "Colors.purple",
	"deep_purple": "Colors.deepPurple",
	"indigo":      "Colors.indigo",
	"blue":        "Colors.blue",
	"light_blue":  "Colors.lightBlue",
	"cyan":        "Colors.cyan",
	"teal":        "Colors.teal",
	"green":       "Colors.green",
	"light_green": "Colors.lightGreen",
	"lime":        "Colors.lime",
	"yellow":      "Colors.yellow",
	"amber":       "Colors.amber",
	"orange":      "Colors.orange",
	"deep_orange": "Colors.deepOrange",
	"brown":       "Colors.brown",
	"gray":        "Colors.grey",
	"grey":        "Colors.grey",
	"blue_grey":   "Colors.blueGrey",
	"white":       "Colors.white",
	"black":       "Colors.black",
	"transparent": "Colors.transparent",
}

// swatchless colors have no shade lookup in Flutter.
var swatchless = map[string]bool{"white": true, "black": true, "transparent": true}

// color resolves a Vi color expression: a color name, a shade lookup such as
// blue[300], rgb(r, g, b), a "#RRGGBB" or "#AARRGGBB" string, or a ternary
// between colors. It returns nil for anything else.
func (e *emitter) color(x Expr, sc emitScope) dart {
	switch x := x.(type) {
	case Var:
		if c, ok := namedColors[x.Name]; ok && !e.shadowed(x.Name, sc) {
			return code(c)
		}
		// A program variable holding a shade or rgb() color is read through
		// its field.
		if v, ok := e.prog.Vars.Get(x.Name); ok && !sc.params[x.Name] && !sc.declared[x.Name] && isColorValue(v) {
			return code(x.Name)
		}
	case Literal:
		if x.Kind != LitString {
			return nil
		}
		if c, ok := namedColors[x.Str]; ok {
			return code(c)
		}
		if c, ok := hexColor(x.Str); ok {
			return code(c)
		}
	case Index:
		base, ok := x.Object.(Var)
		lit, isLit := x.Index.(Literal)
		if !ok || !isLit || lit.Kind != LitNumber {
			return nil
		}
		name := namedColors[base.Name]
		if name == "" || swatchless[base.Name] {
			name = "Colors.grey"
		}
		return code(fmt.Sprintf("%s[%d]", name, int(lit.Num)))
	case Call:
		if name, ok := calleeName(x); ok && name == "rgb" && len(x.Args) == 3 {
			return code(e.rgb(x.Args, sc))
		}
	case Ternary:
		then := e.color(x.Then, sc)
		other := e.color(x.Else, sc)
		if then == nil || other == nil {
			return nil
		}
		return code(fmt.Sprintf("(%s ? %s : %s)", e.expr(x.Cond, sc), then.render(0), other.render(0)))
	}
	return nil
}

func isColorValue(x Expr) bool {
	switch x := x.(type) {
	case Index:
		base, ok := x.Object.(Var)
		return ok && namedColors[base.Name] != ""
	case Call:
		name, ok := calleeName(x)
		return ok && name == "rgb" && len(x.Args) == 3
	}
	return false
}

// rgb renders Color.fromRGBO, const when every channel is a literal.
func (e *emitter) rgb(args []Expr, sc emitScope) string {
	parts := make([]string, 3)
	constant := true
	for i, a := range args[:3] {
		if _, ok := a.(Literal); !ok {
			constant = false
		}
		parts[i] = e.expr(a, sc)
	}
	s := fmt.Sprintf("Color.fromRGBO(%s, %s, %s, 1.0)", parts[0], parts[1], parts[2])
	if constant {
		return "const " + s
	}
	return s
}

func hexColor(s string) (string, bool) {
	h, ok := strings.CutPrefix(s, "#")
	if !ok || (len(h) != 6 && len(h) != 8) {
		return "", false
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil {
		return "", false
	}
	if len(h) == 6 {
		h = "FF" + h
	}
	return "const Color(0x" + strings.ToUpper(h) + ")", true
}
