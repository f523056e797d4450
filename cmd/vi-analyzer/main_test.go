package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boardSource = `count = 0
main app:
    children = [board, label]
board:
    repeat_by = [2, 2]
    on_click: mark(1)
label:
    text_content = "{count}"
mark(cell):
    cell: text_content = "X"
    bump()
bump():
    count = count + 1
    wait_sec(1)
`

type rawResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// exchange feeds one request per line to a fresh server and decodes every
// response.
func exchange(t *testing.T, lines ...string) []rawResponse {
	t.Helper()
	s := &server{ctx: t.Context(), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	var out bytes.Buffer
	require.NoError(t, s.serve(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out))

	var resps []rawResponse
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r rawResponse
		require.NoError(t, dec.Decode(&r))
		resps = append(resps, r)
	}
	return resps
}

func request(t *testing.T, id int, method string, params any) string {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	b, err := json.Marshal(Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw})
	require.NoError(t, err)
	return string(b)
}

func initialize(t *testing.T, root string) string {
	return request(t, 1, "initialize", InitializeParams{WorkspaceRoot: root})
}

func TestServerLifecycle(t *testing.T) {
	root := t.TempDir()
	resps := exchange(t,
		request(t, 7, "parse", SourceParams{File: "a.vi", Source: "x = 1\n"}),
		"{not json",
		initialize(t, root),
		request(t, 2, "rename", nil),
		request(t, 3, "shutdown", nil),
		request(t, 4, "parse", SourceParams{File: "a.vi", Source: "x = 1\n"}),
	)
	require.Len(t, resps, 5)

	assert.Equal(t, 7, resps[0].ID)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, codeNotInitialized, resps[0].Error.Code)

	require.NotNil(t, resps[1].Error)
	assert.Equal(t, codeParseError, resps[1].Error.Code)

	var init InitializeResult
	require.NoError(t, json.Unmarshal(resps[2].Result, &init))
	assert.True(t, init.Initialized)
	assert.Empty(t, init.Config)

	require.NotNil(t, resps[3].Error)
	assert.Equal(t, codeMethodNotFound, resps[3].Error.Code)
	assert.Equal(t, "Method not found: rename", resps[3].Error.Message)

	assert.Equal(t, 3, resps[4].ID)
	assert.Nil(t, resps[4].Error)
}

func TestServerParse(t *testing.T) {
	resps := exchange(t,
		initialize(t, t.TempDir()),
		request(t, 2, "parse", SourceParams{File: "board.vi", Source: boardSource}),
		request(t, 3, "parse", SourceParams{File: "bad.vi", Source: "x = = 1\n"}),
		request(t, 4, "parse", SourceParams{Source: "x = 1\n"}),
	)
	require.Len(t, resps, 4)

	var tree map[string]any
	require.NoError(t, json.Unmarshal(resps[1].Result, &tree))
	assert.Equal(t, "app", tree["main"])
	assert.Len(t, tree["containers"], 3)
	assert.Len(t, tree["functions"], 2)

	require.NotNil(t, resps[2].Error)
	assert.Contains(t, resps[2].Error.Message, "unexpected '='")

	require.NotNil(t, resps[3].Error)
	assert.Equal(t, "file is required", resps[3].Error.Message)
}

func TestServerValidate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "disk.vi"), []byte("main app:\n    children = [ghost]\n"), 0644))

	resps := exchange(t,
		initialize(t, root),
		request(t, 2, "validate", SourceParams{File: "board.vi", Source: boardSource}),
		request(t, 3, "validate", SourceParams{File: "bad.vi", Source: "x = = 1\n"}),
		request(t, 4, "validate", SourceParams{File: "loop.vi", Source: "main app:\n    children = [app]\n"}),
		request(t, 5, "validate", SourceParams{File: "disk.vi"}),
		request(t, 6, "validate", SourceParams{File: "absent.vi"}),
	)
	require.Len(t, resps, 6)

	decode := func(r rawResponse) ValidateResult {
		require.Nil(t, r.Error)
		var res ValidateResult
		require.NoError(t, json.Unmarshal(r.Result, &res))
		return res
	}

	clean := decode(resps[1])
	assert.True(t, clean.Valid)
	assert.Empty(t, clean.Diagnostics)

	syntax := decode(resps[2])
	assert.False(t, syntax.Valid)
	assert.Equal(t, []Diagnostic{{Severity: "error", Line: 1, Col: 5, Message: "unexpected '='"}}, syntax.Diagnostics)

	loop := decode(resps[3])
	assert.False(t, loop.Valid)
	require.Len(t, loop.Diagnostics, 1)
	assert.Equal(t, "error", loop.Diagnostics[0].Severity)
	assert.Equal(t, "container cycle: app -> app", loop.Diagnostics[0].Message)

	disk := decode(resps[4])
	assert.True(t, disk.Valid)
	assert.Equal(t, []Diagnostic{{Severity: "warning", Line: 1, Message: `container "app" lists undeclared child "ghost"`}}, disk.Diagnostics)

	require.NotNil(t, resps[5].Error)
	assert.Contains(t, resps[5].Error.Message, "not found")
}

func TestServerAnalyze(t *testing.T) {
	resps := exchange(t,
		initialize(t, t.TempDir()),
		request(t, 2, "analyze", SourceParams{File: "board.vi", Source: boardSource}),
		request(t, 3, "analyze", SourceParams{File: "board.vi", Source: boardSource}),
		request(t, 4, "analyze", SourceParams{File: "bad.vi", Source: "x = = 1\n"}),
	)
	require.Len(t, resps, 4)

	require.Nil(t, resps[1].Error)
	var res AnalyzeResult
	require.NoError(t, json.Unmarshal(resps[1].Result, &res))
	assert.Equal(t, map[string]string{"app": "Column", "board": "GridView", "label": "Text"}, res.Widgets)
	assert.Equal(t, map[string]RepeatInfo{"board": {Rows: 2, Cols: 2, Count: 4}}, res.Repeats)
	assert.Equal(t, map[string][]string{"board": {"text_content"}}, res.Lifted)
	assert.Equal(t, map[string]map[string]string{"mark": {"cell": "board"}}, res.Bindings)
	assert.Equal(t, map[string][]string{"mark": {"bump"}}, res.Calls)
	assert.Equal(t, []string{"bump"}, res.Async)
	assert.Equal(t, []string{"bump"}, res.Internal)

	assert.JSONEq(t, string(resps[1].Result), string(resps[2].Result))

	require.NotNil(t, resps[3].Error)
	assert.Equal(t, codeServerError, resps[3].Error.Code)
}

func TestServerStrictWorkspace(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "vic.yaml"), []byte("warnings_as_errors: true\n"), 0644))

	resps := exchange(t,
		initialize(t, root),
		request(t, 2, "validate", SourceParams{File: "a.vi", Source: "main app:\n    children = [ghost]\n"}),
	)
	require.Len(t, resps, 2)

	var init InitializeResult
	require.NoError(t, json.Unmarshal(resps[0].Result, &init))
	assert.Equal(t, filepath.Join(root, "vic.yaml"), init.Config)

	var res ValidateResult
	require.NoError(t, json.Unmarshal(resps[1].Result, &res))
	assert.False(t, res.Valid)
	assert.Equal(t, []Diagnostic{{Severity: "error", Line: 1, Message: `container "app" lists undeclared child "ghost"`}}, res.Diagnostics)
}
