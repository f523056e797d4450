package vi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is wrapped by loaders when a locator has no source.
	ErrNotFound = errors.New("not found")
	// ErrImportCycle is wrapped by ImportError when a module imports itself.
	ErrImportCycle = errors.New("import cycle")
	// ErrMissingExport is wrapped by ImportError when a named import is absent.
	ErrMissingExport = errors.New("missing export")
)

// LexError is a malformed token or inconsistent indentation.
type LexError struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%slex error at %d:%d: %s", filePrefix(e.File), e.Line, e.Col, e.Msg)
}

// SyntaxError is an unexpected token at a grammar position. Context holds up
// to two tokens on either side of Token.
type SyntaxError struct {
	File    string
	Token   Token
	Msg     string
	Context []Token
}

func (e *SyntaxError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%ssyntax error at line %d: %s", filePrefix(e.File), e.Token.Line, e.Msg)
	if len(e.Context) > 0 {
		sb.WriteString("\n\ncontext:")
		for _, t := range e.Context {
			marker := "    "
			if t == e.Token {
				marker = " -->"
			}
			fmt.Fprintf(&sb, "\n%s line %d: %s", marker, t.Line, t)
		}
	}
	return sb.String()
}

// ImportError reports a failure to resolve an import.
type ImportError struct {
	Locator  string
	Importer string
	Err      error
}

func (e *ImportError) Error() string {
	if e.Importer != "" {
		return fmt.Sprintf("import %q from %s: %v", e.Locator, e.Importer, e.Err)
	}
	return fmt.Sprintf("import %q: %v", e.Locator, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a single validator finding.
type Diagnostic struct {
	Severity Severity
	Line     int
	Msg      string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", d.Severity, d.Line, d.Msg)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Msg)
}

// ValidationError aggregates every fatal validator finding.
type ValidationError struct {
	File   string
	Errors []Diagnostic
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, d := range e.Errors {
		msgs[i] = d.Msg
	}
	return fmt.Sprintf("%svalidation failed: %s", filePrefix(e.File), strings.Join(msgs, "; "))
}

func filePrefix(file string) string {
	if file == "" {
		return ""
	}
	return file + ": "
}

// FormatError renders lex and syntax errors as a caret-annotated snippet of
// src with one line of context on each side. Other errors are returned as is.
func FormatError(err error, src string) string {
	var lexErr *LexError
	var synErr *SyntaxError
	switch {
	case errors.As(err, &lexErr):
		return snippet("LEX ERROR", lexErr.File, lexErr.Line, lexErr.Col, lexErr.Msg, src)
	case errors.As(err, &synErr):
		return snippet("SYNTAX ERROR", synErr.File, synErr.Token.Line, synErr.Token.Col, synErr.Msg, src)
	}
	return err.Error()
}

func snippet(header, file string, line, col int, msg, src string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}

	var sb strings.Builder
	if file != "" {
		fmt.Fprintf(&sb, "%s in %s at %d:%d: %s\n\n", header, file, line, col, msg)
	} else {
		fmt.Fprintf(&sb, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}

	width := len(fmt.Sprint(min(line+1, len(lines))))
	for n := max(1, line-1); n <= min(line+1, len(lines)); n++ {
		fmt.Fprintf(&sb, "%*d | %s\n", width, n, lines[n-1])
		if n == line {
			fmt.Fprintf(&sb, "%s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", col-1))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
