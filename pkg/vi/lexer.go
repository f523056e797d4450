package vi

import (
	"fmt"
	"strings"
)

// TabWidth is the indentation width a tab character counts for.
const TabWidth = 4

// Lex strips comments from src and tokenizes the result. The file name is
// only used in error messages.
//
// Indentation is tracked with a stack of widths: a deeper line pushes and
// emits INDENT, a shallower one pops and emits one DEDENT per level. Inside
// (), [] and {} lines are joined, so no NEWLINE, INDENT or DEDENT tokens are
// produced until the bracket closes.
func Lex(file, src string) ([]Token, error) {
	stripped, lineMap := StripComments(src)
	l := &lexer{
		file:    file,
		lineMap: lineMap,
		indents: []int{0},
	}
	if err := l.run(stripped); err != nil {
		return nil, err
	}
	return l.toks, nil
}

type lexer struct {
	file    string
	lineMap []int
	toks    []Token
	indents []int
	open    []Token // unclosed brackets
	line    int     // original line of the line being scanned
}

func (l *lexer) errorf(col int, format string, args ...any) error {
	return &LexError{File: l.file, Line: l.line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) emit(kind TokenKind, value string, col int) {
	l.toks = append(l.toks, Token{Kind: kind, Value: value, Line: l.line, Col: col})
}

func (l *lexer) last() (Token, bool) {
	if len(l.toks) == 0 {
		return Token{}, false
	}
	return l.toks[len(l.toks)-1], true
}

func (l *lexer) run(src string) error {
	lines := strings.Split(src, "\n")
	for i, text := range lines {
		l.line = i + 1
		if i < len(l.lineMap) {
			l.line = l.lineMap[i]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		start := 0
		if len(l.open) == 0 {
			width := 0
			for start < len(text) && (text[start] == ' ' || text[start] == '\t') {
				if text[start] == '\t' {
					width += TabWidth
				} else {
					width++
				}
				start++
			}
			if err := l.indent(width); err != nil {
				return err
			}
		}

		if err := l.scanLine(text, start); err != nil {
			return err
		}
		if len(l.open) == 0 {
			l.emit(TokNewline, "", len(text)+1)
		}
	}

	if len(l.open) > 0 {
		b := l.open[len(l.open)-1]
		return &LexError{File: l.file, Line: b.Line, Col: b.Col, Msg: fmt.Sprintf("unclosed %s", b.Kind)}
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(TokDedent, "", 1)
	}
	l.emit(TokEOF, "", 1)
	return nil
}

func (l *lexer) indent(width int) error {
	top := l.indents[len(l.indents)-1]
	switch {
	case width > top:
		l.indents = append(l.indents, width)
		l.emit(TokIndent, "", 1)
	case width < top:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
			l.indents = l.indents[:len(l.indents)-1]
			l.emit(TokDedent, "", 1)
		}
		if l.indents[len(l.indents)-1] != width {
			return l.errorf(width+1, "unindent does not match any outer indentation level")
		}
	}
	return nil
}

var twoCharOps = map[string]TokenKind{
	">=": TokGE,
	"<=": TokLE,
	"==": TokEQ,
	"!=": TokNE,
}

var oneCharOps = map[byte]TokenKind{
	'=': TokAssign,
	'+': TokPlus,
	'-': TokMinus,
	'*': TokStar,
	'/': TokSlash,
	'!': TokBang,
	'>': TokGT,
	'<': TokLT,
	':': TokColon,
	',': TokComma,
	'.': TokDot,
	'(': TokLParen,
	')': TokRParen,
	'[': TokLBracket,
	']': TokRBracket,
	'{': TokLBrace,
	'}': TokRBrace,
}

func (l *lexer) scanLine(text string, i int) error {
	for i < len(text) {
		c := text[i]
		col := i + 1

		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++

		case isDigit(c) || (c == '-' && i+1 < len(text) && isDigit(text[i+1]) && l.signPosition()):
			j := i + 1
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			if j+1 < len(text) && text[j] == '.' && isDigit(text[j+1]) {
				j++
				for j < len(text) && isDigit(text[j]) {
					j++
				}
			}
			l.emit(TokNumber, text[i:j], col)
			i = j

		case c == '"' || c == '\'':
			s, n, err := l.scanString(text[i:], col)
			if err != nil {
				return err
			}
			l.emit(TokString, s, col)
			i += n

		case isIdentStart(c):
			j := i + 1
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			word := text[i:j]
			if Keywords[word] {
				l.emit(TokKeyword, word, col)
			} else {
				l.emit(TokIdent, word, col)
			}
			i = j

		default:
			if i+1 < len(text) {
				if kind, ok := twoCharOps[text[i:i+2]]; ok {
					l.emit(kind, text[i:i+2], col)
					i += 2
					continue
				}
			}
			kind, ok := oneCharOps[c]
			if !ok {
				return l.errorf(col, "unexpected character %q", rune(c))
			}
			l.emit(kind, string(c), col)
			if err := l.track(kind); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}

// signPosition reports whether a '-' at the current position is a sign,
// i.e. the previous token cannot end an operand.
func (l *lexer) signPosition() bool {
	prev, ok := l.last()
	return !ok || !prev.operand()
}

func (l *lexer) track(kind TokenKind) error {
	switch kind {
	case TokLParen, TokLBracket, TokLBrace:
		l.open = append(l.open, l.toks[len(l.toks)-1])
	case TokRParen, TokRBracket, TokRBrace:
		closing := l.toks[len(l.toks)-1]
		if len(l.open) == 0 {
			return l.errorf(closing.Col, "unmatched %s", kind)
		}
		l.open = l.open[:len(l.open)-1]
	}
	return nil
}

// scanString reads a quoted literal at the start of s and returns its value
// and the number of bytes consumed. Doubled braces are kept verbatim so the
// emitter can tell them apart from interpolation markers.
func (l *lexer) scanString(s string, col int) (string, int, error) {
	quote := s[0]
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return sb.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(s[i])
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, l.errorf(col, "unterminated string literal")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
