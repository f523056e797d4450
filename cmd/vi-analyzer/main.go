// vi-analyzer provides diagnostics and program structure for Vi sources.
// It runs as a long-lived process communicating via JSON-RPC over stdin/stdout,
// one request per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/njreid/vic/pkg/vi"
)

// JSON-RPC request/response types
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeNotInitialized = -32002
)

type InitializeParams struct {
	WorkspaceRoot string `json:"workspaceRoot"`
}

// SourceParams name a file relative to the workspace root. When Source is
// empty the file is read through the workspace loader.
type SourceParams struct {
	File   string `json:"file"`
	Source string `json:"source"`
}

type InitializeResult struct {
	Initialized bool   `json:"initialized"`
	Config      string `json:"config,omitempty"`
}

type Diagnostic struct {
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Col      int    `json:"col,omitempty"`
	Message  string `json:"message"`
}

type ValidateResult struct {
	Valid       bool         `json:"valid"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type RepeatInfo struct {
	Rows  int `json:"rows"`
	Cols  int `json:"cols"`
	Depth int `json:"depth,omitempty"`
	Count int `json:"count"`
}

type AnalyzeResult struct {
	Widgets  map[string]string            `json:"widgets"`
	Repeats  map[string]RepeatInfo        `json:"repeats"`
	Lifted   map[string][]string          `json:"lifted"`
	Bindings map[string]map[string]string `json:"bindings"`
	Calls    map[string][]string          `json:"calls"`
	Async    []string                     `json:"async"`
	Internal []string                     `json:"internal"`
}

// Analyzer holds the workspace state.
type Analyzer struct {
	workspaceRoot string
	opts          vi.Options
	cache         map[string]*checked
}

// checked is the outcome of checking one version of a file.
type checked struct {
	source   string
	prog     *vi.Program
	warnings []vi.Diagnostic
	err      error
}

func NewAnalyzer(root string, logger *slog.Logger) (*Analyzer, string, error) {
	cfg, path, err := vi.FindConfig(root)
	if err != nil {
		return nil, "", err
	}
	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, "", err
	}
	return &Analyzer{
		workspaceRoot: root,
		opts:          opts,
		cache:         make(map[string]*checked),
	}, path, nil
}

func (a *Analyzer) path(file string) string {
	if filepath.IsAbs(file) || a.workspaceRoot == "" {
		return filepath.Clean(file)
	}
	return filepath.Join(a.workspaceRoot, file)
}

func (a *Analyzer) source(ctx context.Context, p SourceParams) (string, string, error) {
	if p.File == "" {
		return "", "", errors.New("file is required")
	}
	file := a.path(p.File)
	if p.Source != "" {
		return file, p.Source, nil
	}
	src, err := a.opts.Loader.Load(ctx, file)
	return file, src, err
}

// check parses, resolves and validates a file, reusing the previous result
// when the source has not changed.
func (a *Analyzer) check(ctx context.Context, p SourceParams) (*checked, error) {
	file, src, err := a.source(ctx, p)
	if err != nil {
		return nil, err
	}
	if c, ok := a.cache[file]; ok && c.source == src {
		return c, nil
	}
	prog, warnings, err := vi.Check(ctx, file, src, a.opts)
	c := &checked{source: src, prog: prog, warnings: warnings, err: err}
	a.cache[file] = c
	return c, nil
}

// Parse returns the file's syntax tree without resolving imports.
func (a *Analyzer) Parse(ctx context.Context, p SourceParams) (map[string]any, error) {
	file, src, err := a.source(ctx, p)
	if err != nil {
		return nil, err
	}
	prog, err := vi.Parse(file, src)
	if err != nil {
		return nil, err
	}
	return vi.ProgramMap(prog), nil
}

func (a *Analyzer) Validate(ctx context.Context, p SourceParams) (*ValidateResult, error) {
	c, err := a.check(ctx, p)
	if err != nil {
		return nil, err
	}
	res := &ValidateResult{Valid: c.err == nil, Diagnostics: []Diagnostic{}}
	for _, w := range c.warnings {
		if c.err != nil && a.opts.WarningsAsErrors {
			break
		}
		res.Diagnostics = append(res.Diagnostics, Diagnostic{Severity: w.Severity.String(), Line: w.Line, Message: w.Msg})
	}
	if c.err != nil {
		res.Diagnostics = append(res.Diagnostics, diagnostics(c.err)...)
	}
	return res, nil
}

func (a *Analyzer) Analyze(ctx context.Context, p SourceParams) (*AnalyzeResult, error) {
	c, err := a.check(ctx, p)
	if err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	facts := vi.Analyze(c.prog)

	res := &AnalyzeResult{
		Widgets:  vi.WidgetKinds(c.prog, facts),
		Repeats:  make(map[string]RepeatInfo, len(facts.Repeats)),
		Lifted:   make(map[string][]string, facts.Lifted.Len()),
		Bindings: facts.Bindings,
		Calls:    facts.Calls,
		Async:    sortedKeys(facts.Async),
		Internal: sortedKeys(facts.Internal),
	}
	for name, r := range facts.Repeats {
		res.Repeats[name] = RepeatInfo{Rows: r.Rows, Cols: r.Cols, Depth: r.Depth, Count: r.Count}
	}
	for _, name := range facts.Lifted.Keys() {
		attrs, _ := facts.Lifted.Get(name)
		res.Lifted[name] = attrs
	}
	return res, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// diagnostics converts a check failure into editor diagnostics.
func diagnostics(err error) []Diagnostic {
	var lexErr *vi.LexError
	var synErr *vi.SyntaxError
	var valErr *vi.ValidationError
	switch {
	case errors.As(err, &lexErr):
		return []Diagnostic{{Severity: "error", Line: lexErr.Line, Col: lexErr.Col, Message: lexErr.Msg}}
	case errors.As(err, &synErr):
		return []Diagnostic{{Severity: "error", Line: synErr.Token.Line, Col: synErr.Token.Col, Message: synErr.Msg}}
	case errors.As(err, &valErr):
		out := make([]Diagnostic, len(valErr.Errors))
		for i, d := range valErr.Errors {
			out[i] = Diagnostic{Severity: d.Severity.String(), Line: d.Line, Message: d.Msg}
		}
		return out
	}
	return []Diagnostic{{Severity: "error", Line: 1, Message: err.Error()}}
}

// server dispatches requests to the workspace analyzer.
type server struct {
	ctx      context.Context
	logger   *slog.Logger
	analyzer *Analyzer
}

// handle answers one request. It reports false when the client asked the
// process to stop.
func (s *server) handle(req Request) (Response, bool) {
	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if req.Method == "shutdown" {
		return resp, false
	}

	var result any
	var rpcErr *RPCError
	switch req.Method {
	case "initialize":
		var params InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = invalidParams(err)
			break
		}
		analyzer, cfg, err := NewAnalyzer(params.WorkspaceRoot, s.logger)
		if err != nil {
			rpcErr = &RPCError{Code: codeServerError, Message: err.Error()}
			break
		}
		s.analyzer = analyzer
		result = InitializeResult{Initialized: true, Config: cfg}

	case "parse", "validate", "analyze":
		if s.analyzer == nil {
			rpcErr = &RPCError{Code: codeNotInitialized, Message: "Analyzer not initialized"}
			break
		}
		var params SourceParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = invalidParams(err)
			break
		}
		var err error
		switch req.Method {
		case "parse":
			result, err = s.analyzer.Parse(s.ctx, params)
		case "validate":
			result, err = s.analyzer.Validate(s.ctx, params)
		case "analyze":
			result, err = s.analyzer.Analyze(s.ctx, params)
		}
		if err != nil {
			rpcErr = &RPCError{Code: codeServerError, Message: err.Error()}
		}

	default:
		rpcErr = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	}

	if rpcErr != nil {
		s.logger.Debug("request failed", "method", req.Method, "id", req.ID, "error", rpcErr.Message)
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp, true
}

func invalidParams(err error) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
}

// serve reads requests from in until EOF or shutdown.
func (s *server) serve(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(Response{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: codeParseError, Message: fmt.Sprintf("Parse error: %v", err)},
			})
			continue
		}
		resp, more := s.handle(req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return scanner.Err()
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := &server{ctx: context.Background(), logger: logger}
	if err := s.serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
		os.Exit(1)
	}
}
