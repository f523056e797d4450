package vi

import "fmt"

// TokenKind identifies the lexical class of a Token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNewline
	TokIndent
	TokDedent

	TokNumber
	TokString
	TokIdent
	TokKeyword

	TokAssign   // =
	TokPlus     // +
	TokMinus    // -
	TokStar     // *
	TokSlash    // /
	TokBang     // !
	TokGT       // >
	TokLT       // <
	TokGE       // >=
	TokLE       // <=
	TokEQ       // ==
	TokNE       // !=
	TokColon    // :
	TokComma    // ,
	TokDot      // .
	TokLParen   // (
	TokRParen   // )
	TokLBracket // [
	TokRBracket // ]
	TokLBrace   // {
	TokRBrace   // }
)

var tokenNames = map[TokenKind]string{
	TokEOF:      "EOF",
	TokNewline:  "NEWLINE",
	TokIndent:   "INDENT",
	TokDedent:   "DEDENT",
	TokNumber:   "NUMBER",
	TokString:   "STRING",
	TokIdent:    "IDENTIFIER",
	TokKeyword:  "KEYWORD",
	TokAssign:   "'='",
	TokPlus:     "'+'",
	TokMinus:    "'-'",
	TokStar:     "'*'",
	TokSlash:    "'/'",
	TokBang:     "'!'",
	TokGT:       "'>'",
	TokLT:       "'<'",
	TokGE:       "'>='",
	TokLE:       "'<='",
	TokEQ:       "'=='",
	TokNE:       "'!='",
	TokColon:    "':'",
	TokComma:    "','",
	TokDot:      "'.'",
	TokLParen:   "'('",
	TokRParen:   "')'",
	TokLBracket: "'['",
	TokRBracket: "']'",
	TokLBrace:   "'{'",
	TokRBrace:   "'}'",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Keywords is the reserved word set. Any other identifier-shaped lexeme is TokIdent.
var Keywords = map[string]bool{
	"main":   true,
	"from":   true,
	"import": true,
	"if":     true,
	"else":   true,
	"for":    true,
	"in":     true,
	"while":  true,
	"return": true,
	"true":   true,
	"false":  true,
	"and":    true,
	"or":     true,
	"not":    true,
	"to":     true,
}

// Token is a single lexeme. Line refers to the original (pre comment
// stripping) source; Col is 1-based.
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
	Col   int
}

// Is reports whether t is the keyword kw.
func (t Token) Is(kw string) bool {
	return t.Kind == TokKeyword && t.Value == kw
}

func (t Token) String() string {
	switch t.Kind {
	case TokNumber, TokIdent, TokKeyword:
		return fmt.Sprintf("%s %s", t.Kind, t.Value)
	case TokString:
		return fmt.Sprintf("%s %q", t.Kind, t.Value)
	default:
		return t.Kind.String()
	}
}

// operand reports whether a token can end an operand, which makes a
// following '-' a binary operator instead of a sign.
func (t Token) operand() bool {
	switch t.Kind {
	case TokNumber, TokString, TokIdent, TokRParen, TokRBracket, TokRBrace:
		return true
	case TokKeyword:
		return t.Value == "true" || t.Value == "false"
	}
	return false
}
