package vi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messages(ds []Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Msg
	}
	return out
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		prog func(t *testing.T) *Program
		want []string
	}{
		{
			name: "undeclared main",
			prog: func(t *testing.T) *Program { return &Program{File: "t.vi", Main: "app"} },
			want: []string{`main container "app" is not declared`},
		},
		{
			name: "two container cycle reported once",
			prog: func(t *testing.T) *Program {
				return mustParse(t, "a:\n    children = [b]\nb:\n    children = [a]\n")
			},
			want: []string{"container cycle: a -> b -> a"},
		},
		{
			name: "self reference",
			prog: func(t *testing.T) *Program {
				return mustParse(t, "a:\n    children = [a]\n")
			},
			want: []string{"container cycle: a -> a"},
		},
		{
			name: "cycle through inline child",
			prog: func(t *testing.T) *Program {
				return mustParse(t, "main app:\n    panel:\n        children = [app]\n")
			},
			want: []string{"container cycle: app -> app"},
		},
		{
			name: "oversized grid",
			prog: func(t *testing.T) *Program {
				return mustParse(t, "main board:\n    repeat_by = [99999999999999999999, 2]\n")
			},
			want: []string{`container "board": repeat_by expands to more than 65536 cells`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.prog(t))
			var valErr *ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tc.want, messages(valErr.Errors))
			for _, d := range valErr.Errors {
				assert.Equal(t, SeverityError, d.Severity)
			}
		})
	}
}

func TestValidateCycleLine(t *testing.T) {
	_, err := Validate(mustParse(t, "x = 1\na:\n    children = [b]\nb:\n    children = [a]\n"))
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	require.Len(t, valErr.Errors, 1)
	assert.Equal(t, 2, valErr.Errors[0].Line)
	assert.Equal(t, "t.vi: validation failed: container cycle: a -> b -> a", err.Error())
}

func TestValidateWarnings(t *testing.T) {
	prog := mustParse(t, `main app:
    children = [ghost, btn, field, grid]
btn:
    type = button
    on_click: launch()
field:
    type = "slider"
grid:
    repeat_by = [rows, 3]
go():
    launch(1)
`)
	warnings, err := Validate(prog)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`container "app" lists undeclared child "ghost"`,
		`container "btn" has type "button" but no text_content attribute`,
		`container "field" has unknown type "slider"`,
		`container "grid": repeat_by is not a literal [rows, cols] or [rows, cols, depth] array and will not be expanded`,
		`function "go" calls undeclared function "launch"`,
		`container "btn" calls undeclared function "launch"`,
	}, messages(warnings))
	assert.Equal(t, 1, warnings[0].Line)
	assert.Equal(t, 10, warnings[4].Line)
	assert.Equal(t, "warning: line 3: "+warnings[1].Msg, warnings[1].String())
}

func TestValidateClean(t *testing.T) {
	cases := map[string]string{
		"nested function call": "f():\n    helper(n):\n        return n\n    helper(1)\n    print(1)\n",
		"recursive call":       "count(n):\n    if n > 0:\n        count(n - 1)\n",
		"required attributes": `main app:
    children = [ok, field]
ok:
    type = "button"
    text_content = "OK"
field:
    type = input
    placeholder = "Name"
`,
		"static grid": "main board:\n    repeat_by = [3, 3, 2]\n",
		"shared child": "main app:\n    children = [a, b]\na:\n    children = [leaf]\nb:\n    children = [leaf]\nleaf:\n    text_content = \"x\"\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			warnings, err := Validate(mustParse(t, src))
			require.NoError(t, err)
			assert.Empty(t, warnings)
		})
	}
}
