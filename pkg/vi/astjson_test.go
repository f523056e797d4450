package vi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const everyNodeSource = `from "lib" import helper
import "shared"
config:
    title = "T"
count = -3
ratio = 2.5
items = [1, "two", true, [k: 1]]
obj = {a: 1}
main app:
    children = [cell]
    header:
        text_content = "hi {count}"
cell:
    on_click: go(1)
go(n):
    if n > 1 and not done:
        x = items[0]
    else:
        x = app.header
    for c in items:
        print(c)
    while false:
        return
    app: color = blue
    inner():
        return items.index(1) if n else -n
    return x
`

func TestProgramJSONRoundTrip(t *testing.T) {
	sources := map[string]string{
		"every node": everyNodeSource,
		"counter":    counterSource,
		"analysis":   analysisSource,
		"empty":      "",
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			prog := mustParse(t, src)
			data, err := EncodeProgram(prog)
			require.NoError(t, err)

			got, err := DecodeProgram(data)
			require.NoError(t, err)
			assert.Equal(t, prog, got)
		})
	}
}

func TestProgramMap(t *testing.T) {
	m := ProgramMap(mustParse(t, counterSource))
	assert.Equal(t, "app", m["main"])
	assert.Equal(t, "t.vi", m["file"])
	assert.NotContains(t, m, "config")

	vars := m["variables"].([]any)
	require.Len(t, vars, 1)
	assert.Equal(t, map[string]any{
		"name":  "count",
		"value": map[string]any{"type": "literal", "value_type": "number", "value": 0.0, "int": true},
	}, vars[0])

	funcs := m["functions"].([]any)
	require.Len(t, funcs, 1)
	inc := funcs[0].(map[string]any)
	assert.Equal(t, "inc", inc["name"])
	body := inc["body"].([]any)
	assert.Equal(t, "assign", body[0].(map[string]any)["type"])

	containers := m["containers"].([]any)
	assert.Len(t, containers, 3)
	add := containers[2].(map[string]any)
	assert.Equal(t, "add", add["name"])
	attrs := add["attributes"].([]any)
	assert.Equal(t, map[string]any{
		"key": "on_click",
		"value": map[string]any{
			"type":     "call",
			"function": map[string]any{"type": "var", "name": "inc"},
			"args":     []any{},
		},
	}, attrs[2])
}

func TestDecodeProgramErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		msg  string
	}{
		{"invalid json", `{"variables": [`, "decoding program"},
		{"unknown expression", `{"variables": [{"name": "x", "value": {"type": "lambda"}}]}`, `unknown expression type "lambda"`},
		{"unknown statement", `{"functions": [{"name": "f", "body": [{"type": "goto"}]}]}`, `unknown statement type "goto"`},
		{"wrong shape", `{"variables": "x"}`, "variables: expected list"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeProgram([]byte(tc.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
