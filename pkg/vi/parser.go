package vi

import (
	"fmt"
	"strconv"
	"strings"
)

// funcDefLookahead bounds the scan that tells `name(a, b):` definitions
// apart from `name(a, b)` calls.
const funcDefLookahead = 256

// Parse lexes and parses a Vi source file.
func Parse(file, src string) (*Program, error) {
	toks, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(file, toks)
}

// ParseTokens parses a token stream produced by Lex.
func ParseTokens(file string, toks []Token) (*Program, error) {
	if len(toks) == 0 || toks[len(toks)-1].Kind != TokEOF {
		toks = append(toks, Token{Kind: TokEOF})
	}
	p := &parser{file: file, toks: toks}
	return p.program()
}

// ParseExpr parses a single expression, such as the inside of a string
// interpolation. Comment markers are not stripped, so '#' is an error.
func ParseExpr(src string) (Expr, error) {
	l := &lexer{indents: []int{0}}
	if err := l.run(strings.TrimSpace(src)); err != nil {
		return nil, err
	}
	p := &parser{toks: l.toks}
	p.skipNewlines()
	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if !p.at(TokEOF) {
		return nil, p.errorf("unexpected %s after expression", p.peek(0))
	}
	return x, nil
}

type parser struct {
	file string
	toks []Token
	pos  int
}

func (p *parser) peek(off int) Token {
	i := p.pos + off
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) next() Token {
	t := p.peek(0)
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) at(kind TokenKind) bool { return p.peek(0).Kind == kind }

func (p *parser) atKw(kw string) bool { return p.peek(0).Is(kw) }

func (p *parser) errorf(format string, args ...any) error {
	lo := max(0, p.pos-2)
	hi := min(len(p.toks), p.pos+3)
	return &SyntaxError{
		File:    p.file,
		Token:   p.peek(0),
		Msg:     fmt.Sprintf(format, args...),
		Context: append([]Token(nil), p.toks[lo:hi]...),
	}
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	if !p.at(kind) {
		return Token{}, p.errorf("expected %s, got %s", kind, p.peek(0))
	}
	return p.next(), nil
}

func (p *parser) expectKw(kw string) error {
	if !p.atKw(kw) {
		return p.errorf("expected '%s', got %s", kw, p.peek(0))
	}
	p.next()
	return nil
}

func (p *parser) skipNewlines() {
	for p.at(TokNewline) {
		p.next()
	}
}

// endLine requires the current simple statement to end here.
func (p *parser) endLine() error {
	switch p.peek(0).Kind {
	case TokNewline:
		p.skipNewlines()
		return nil
	case TokDedent, TokEOF:
		return nil
	}
	return p.errorf("unexpected %s at end of line", p.peek(0))
}

// skipLine drops the rest of the current line and any block indented under it.
func (p *parser) skipLine() {
	for !p.at(TokNewline) && !p.at(TokEOF) && !p.at(TokDedent) {
		p.next()
	}
	p.skipNewlines()
	if !p.at(TokIndent) {
		return
	}
	depth := 0
	for !p.at(TokEOF) {
		switch p.next().Kind {
		case TokIndent:
			depth++
		case TokDedent:
			depth--
		}
		if depth == 0 {
			p.skipNewlines()
			return
		}
	}
}

func (p *parser) program() (*Program, error) {
	prog := &Program{File: p.file}
	for !p.at(TokEOF) {
		tok := p.peek(0)
		var err error
		switch {
		case tok.Kind == TokNewline:
			p.next()
		case tok.Is("from"):
			err = p.fromImport(prog)
		case tok.Is("import"):
			p.next()
			var src Token
			if src, err = p.expect(TokString); err == nil {
				prog.Imports = append(prog.Imports, Import{Source: src.Value, All: true, Line: tok.Line})
				err = p.endLine()
			}
		case tok.Is("main"):
			err = p.mainContainer(prog)
		case tok.Kind == TokIdent:
			err = p.topLevelName(prog)
		case tok.Kind == TokIndent:
			err = p.errorf("unexpected indent")
		default:
			err = p.errorf("unexpected %s at top level", tok)
		}
		if err != nil {
			return nil, err
		}
	}
	return prog, nil
}

func (p *parser) fromImport(prog *Program) error {
	line := p.next().Line
	src, err := p.expect(TokString)
	if err != nil {
		return err
	}
	if err := p.expectKw("import"); err != nil {
		return err
	}
	imp := Import{Source: src.Value, Line: line}
	if p.at(TokStar) {
		p.next()
		imp.All = true
	} else {
		for {
			name, err := p.expect(TokIdent)
			if err != nil {
				return err
			}
			imp.Names = append(imp.Names, name.Value)
			if !p.at(TokComma) {
				break
			}
			p.next()
		}
	}
	prog.Imports = append(prog.Imports, imp)
	return p.endLine()
}

func (p *parser) mainContainer(prog *Program) error {
	p.next()
	name, err := p.expect(TokIdent)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokColon); err != nil {
		return err
	}
	c, err := p.containerBody(name.Value, name.Line)
	if err != nil {
		return err
	}
	prog.Containers.Set(name.Value, c)
	prog.Main = name.Value
	return nil
}

func (p *parser) topLevelName(prog *Program) error {
	name := p.next()
	switch p.peek(0).Kind {
	case TokAssign:
		p.next()
		v, err := p.value()
		if err != nil {
			return err
		}
		prog.Vars.Set(name.Value, v)
		return p.endLine()

	case TokLParen:
		fn, err := p.function(name)
		if err != nil {
			return err
		}
		prog.Funcs.Set(fn.Name, fn)
		return nil

	case TokColon:
		p.next()
		c, err := p.containerBody(name.Value, name.Line)
		if err != nil {
			return err
		}
		if name.Value == "config" {
			prog.Config = c
		} else {
			prog.Containers.Set(name.Value, c)
		}
		return nil

	case TokComma:
		names := []string{name.Value}
		for p.at(TokComma) {
			p.next()
			n, err := p.expect(TokIdent)
			if err != nil {
				return err
			}
			names = append(names, n.Value)
		}
		if _, err := p.expect(TokColon); err != nil {
			return err
		}
		shared, err := p.containerBody(name.Value, name.Line)
		if err != nil {
			return err
		}
		for _, n := range names {
			prog.Containers.Set(n, shared.clone(n))
		}
		return nil
	}
	return p.errorf("expected '=', '(' or ':' after %q, got %s", name.Value, p.peek(0))
}

func (c *Container) clone(name string) *Container {
	out := &Container{Name: name, Line: c.Line, Children: append([]*Container(nil), c.Children...)}
	out.Attrs.Merge(&c.Attrs)
	return out
}

// function parses `(params): block` after the function name.
func (p *parser) function(name Token) (*Function, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	fn := &Function{Name: name.Value, Line: name.Line}
	for !p.at(TokRParen) {
		param, err := p.expect(TokIdent)
		if err != nil {
			return nil, p.errorf("function %q expects parameter names, got %s", name.Value, p.peek(0))
		}
		fn.Params = append(fn.Params, param.Value)
		if p.at(TokComma) {
			p.next()
		}
	}
	p.next()
	if _, err := p.expect(TokColon); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

// containerBody parses the indented attribute block after `name:`.
// Unrecognised lines are skipped.
func (p *parser) containerBody(name string, line int) (*Container, error) {
	c := &Container{Name: name, Line: line}
	p.skipNewlines()
	if !p.at(TokIndent) {
		return c, nil
	}
	p.next()

	for !p.at(TokDedent) && !p.at(TokEOF) {
		if p.at(TokNewline) {
			p.next()
			continue
		}
		if !p.at(TokIdent) {
			p.skipLine()
			continue
		}
		attr := p.next()
		switch {
		case p.at(TokAssign):
			p.next()
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			c.Attrs.Set(attr.Value, v)
			if err := p.endLine(); err != nil {
				return nil, err
			}

		case p.at(TokColon):
			p.next()
			if p.at(TokNewline) {
				p.skipNewlines()
				if p.at(TokIndent) {
					child, err := p.containerBody(attr.Value, attr.Line)
					if err != nil {
						return nil, err
					}
					c.Children = append(c.Children, child)
				}
				continue
			}
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			c.Attrs.Set(attr.Value, v)
			if err := p.endLine(); err != nil {
				return nil, err
			}

		default:
			p.skipLine()
		}
	}
	if p.at(TokDedent) {
		p.next()
	}
	return c, nil
}

// value parses the right-hand side of `=`: an expression, an `X to Y`
// range, or a bare comma list that becomes an array.
func (p *parser) value() (Expr, error) {
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.atKw("to") {
		p.next()
		last, err := p.expression()
		if err != nil {
			return nil, err
		}
		return Array{Elems: []Expr{first, last}}, nil
	}
	if !p.at(TokComma) {
		return first, nil
	}
	elems := []Expr{first}
	for p.at(TokComma) {
		p.next()
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return Array{Elems: elems}, nil
}

// block parses the statements after a ':'. A statement on the same line
// forms a single-statement block.
func (p *parser) block() ([]Stmt, error) {
	if !p.at(TokNewline) && !p.at(TokEOF) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	}
	p.skipNewlines()
	if !p.at(TokIndent) {
		return nil, nil
	}
	p.next()
	var body []Stmt
	for !p.at(TokDedent) && !p.at(TokEOF) {
		if p.at(TokNewline) {
			p.next()
			continue
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, s)
	}
	if p.at(TokDedent) {
		p.next()
	}
	return body, nil
}

func (p *parser) statement() (Stmt, error) {
	tok := p.peek(0)
	switch {
	case tok.Is("return"):
		p.next()
		if p.at(TokNewline) || p.at(TokDedent) || p.at(TokEOF) {
			return Return{}, p.endLine()
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		return Return{Value: v}, p.endLine()

	case tok.Is("if"):
		return p.ifStmt()

	case tok.Is("for"):
		p.next()
		name, err := p.expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("in"); err != nil {
			return nil, err
		}
		iter, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return For{Var: name.Value, Iter: iter, Body: body}, nil

	case tok.Is("while"):
		p.next()
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return While{Cond: cond, Body: body}, nil

	case tok.Kind == TokIdent && p.isFuncDef():
		p.next()
		fn, err := p.function(tok)
		if err != nil {
			return nil, err
		}
		return FuncDef{Func: fn}, nil

	case tok.Kind == TokIdent && p.isMutation():
		return p.mutation()
	}

	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.at(TokAssign) {
		return ExprStmt{X: x}, p.endLine()
	}
	switch x.(type) {
	case Var, Member, Index:
	default:
		return nil, p.errorf("cannot assign to %s expression", nodeName(x))
	}
	p.next()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	return Assign{Target: x, Value: v}, p.endLine()
}

func (p *parser) ifStmt() (Stmt, error) {
	p.next()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokColon); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := If{Cond: cond, Then: then}
	if !p.atKw("else") {
		return stmt, nil
	}
	p.next()
	if p.atKw("if") {
		nested, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		stmt.Else = []Stmt{nested}
		return stmt, nil
	}
	if _, err := p.expect(TokColon); err != nil {
		return nil, err
	}
	if stmt.Else, err = p.block(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// isFuncDef reports whether the tokens at the current position read
// `name(...)` followed by ':'. The parser position is not moved.
func (p *parser) isFuncDef() bool {
	if p.peek(1).Kind != TokLParen {
		return false
	}
	depth := 0
	for off := 1; off < funcDefLookahead; off++ {
		switch p.peek(off).Kind {
		case TokLParen:
			depth++
		case TokRParen:
			depth--
			if depth == 0 {
				return p.peek(off+1).Kind == TokColon
			}
		case TokNewline, TokEOF:
			return false
		}
	}
	return false
}

// isMutation reports whether the tokens at the current position read
// `name(.field)*:`.
func (p *parser) isMutation() bool {
	off := 1
	for p.peek(off).Kind == TokDot && p.peek(off+1).Kind == TokIdent {
		off += 2
	}
	return p.peek(off).Kind == TokColon
}

func (p *parser) mutation() (Stmt, error) {
	first := p.next()
	var target Expr = Var{Name: first.Value}
	for p.at(TokDot) {
		p.next()
		field := p.next()
		target = Member{Object: target, Field: field.Value}
	}
	p.next() // ':'

	m := Mutate{Target: target}
	if !p.at(TokNewline) {
		pair, err := p.attrAssign()
		if err != nil {
			return nil, err
		}
		m.Attrs = append(m.Attrs, pair)
		return m, p.endLine()
	}

	p.skipNewlines()
	if _, err := p.expect(TokIndent); err != nil {
		return nil, err
	}
	for !p.at(TokDedent) && !p.at(TokEOF) {
		if p.at(TokNewline) {
			p.next()
			continue
		}
		pair, err := p.attrAssign()
		if err != nil {
			return nil, err
		}
		m.Attrs = setPair(m.Attrs, pair)
		if err := p.endLine(); err != nil {
			return nil, err
		}
	}
	if p.at(TokDedent) {
		p.next()
	}
	return m, nil
}

func (p *parser) attrAssign() (Pair, error) {
	name, err := p.expect(TokIdent)
	if err != nil {
		return Pair{}, err
	}
	if _, err := p.expect(TokAssign); err != nil {
		return Pair{}, err
	}
	v, err := p.value()
	if err != nil {
		return Pair{}, err
	}
	return Pair{Key: name.Value, Value: v}, nil
}

// setPair replaces an existing key in place or appends.
func setPair(pairs []Pair, pair Pair) []Pair {
	for i := range pairs {
		if pairs[i].Key == pair.Key {
			pairs[i] = pair
			return pairs
		}
	}
	return append(pairs, pair)
}

func (p *parser) expression() (Expr, error) { return p.ternary() }

// ternary parses `then if cond else other`.
func (p *parser) ternary() (Expr, error) {
	then, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.atKw("if") {
		return then, nil
	}
	p.next()
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("else"); err != nil {
		return nil, err
	}
	other, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return Ternary{Cond: cond, Then: then, Else: other}, nil
}

func (p *parser) or() (Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.atKw("or") {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (Expr, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.atKw("and") {
		p.next()
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) comparison() (Expr, error) {
	return p.binaryLevel(p.additive, TokGT, TokLT, TokGE, TokLE, TokEQ, TokNE)
}

func (p *parser) additive() (Expr, error) {
	return p.binaryLevel(p.multiplicative, TokPlus, TokMinus)
}

func (p *parser) multiplicative() (Expr, error) {
	return p.binaryLevel(p.unary, TokStar, TokSlash)
}

// binaryLevel parses a left-associative chain of operand separated by ops.
func (p *parser) binaryLevel(operand func() (Expr, error), ops ...TokenKind) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek(0)
		matched := false
		for _, k := range ops {
			if op.Kind == k {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op.Value, Left: left, Right: right}
	}
}

func (p *parser) unary() (Expr, error) {
	tok := p.peek(0)
	if tok.Is("not") || tok.Kind == TokBang || tok.Kind == TokMinus {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		op := "-"
		if tok.Kind != TokMinus {
			op = "not"
		}
		return Unary{Op: op, Operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek(0).Kind {
		case TokDot:
			p.next()
			field, err := p.expect(TokIdent)
			if err != nil {
				return nil, err
			}
			x = Member{Object: x, Field: field.Value}
		case TokLBracket:
			p.next()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRBracket); err != nil {
				return nil, err
			}
			x = Index{Object: x, Index: idx}
		case TokLParen:
			p.next()
			args, err := p.args()
			if err != nil {
				return nil, err
			}
			if m, ok := x.(Member); ok {
				x = MethodCall{Object: m.Object, Method: m.Field, Args: args}
			} else {
				x = Call{Callee: x, Args: args}
			}
		default:
			return x, nil
		}
	}
}

func (p *parser) args() ([]Expr, error) {
	var args []Expr
	for !p.at(TokRParen) {
		if p.at(TokEOF) {
			return nil, p.errorf("unterminated argument list")
		}
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.at(TokComma) {
			p.next()
		} else if !p.at(TokRParen) {
			return nil, p.errorf("expected ',' or ')', got %s", p.peek(0))
		}
	}
	p.next()
	return args, nil
}

func (p *parser) primary() (Expr, error) {
	tok := p.peek(0)
	switch {
	case tok.Kind == TokNumber:
		p.next()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", tok.Value)
		}
		return Num(f, !strings.Contains(tok.Value, ".")), nil

	case tok.Kind == TokString:
		p.next()
		return Str(tok.Value), nil

	case tok.Is("true"), tok.Is("false"):
		p.next()
		return Bool(tok.Value == "true"), nil

	case tok.Is("if"):
		return p.leadingTernary()

	case tok.Kind == TokIdent:
		p.next()
		return Var{Name: tok.Value}, nil

	case tok.Kind == TokLParen:
		p.next()
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return x, nil

	case tok.Kind == TokLBracket:
		return p.array()

	case tok.Kind == TokLBrace:
		return p.object()
	}
	return nil, p.errorf("unexpected %s", tok)
}

// leadingTernary parses `if (cond) then else other`.
func (p *parser) leadingTernary() (Expr, error) {
	p.next()
	var cond Expr
	var err error
	if p.at(TokLParen) {
		p.next()
		if cond, err = p.expression(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
	} else if cond, err = p.or(); err != nil {
		return nil, err
	}
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("else"); err != nil {
		return nil, err
	}
	other, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return Ternary{Cond: cond, Then: then, Else: other}, nil
}

func (p *parser) array() (Expr, error) {
	p.next()
	arr := Array{}
	for !p.at(TokRBracket) {
		if p.at(TokEOF) {
			return nil, p.errorf("unterminated array literal")
		}
		var elem Expr
		if p.at(TokIdent) && p.peek(1).Kind == TokColon {
			key := p.next()
			p.next()
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			elem = Pair{Key: key.Value, Value: v}
		} else {
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			elem = e
		}
		arr.Elems = append(arr.Elems, elem)
		if p.at(TokComma) {
			p.next()
		} else if !p.at(TokRBracket) {
			return nil, p.errorf("expected ',' or ']', got %s", p.peek(0))
		}
	}
	p.next()
	return arr, nil
}

func (p *parser) object() (Expr, error) {
	p.next()
	obj := Object{}
	for !p.at(TokRBrace) {
		key := p.peek(0)
		if key.Kind != TokIdent && key.Kind != TokString {
			return nil, p.errorf("expected object key, got %s", key)
		}
		p.next()
		if _, err := p.expect(TokColon); err != nil {
			return nil, err
		}
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		obj.Props = setPair(obj.Props, Pair{Key: key.Value, Value: v})
		if p.at(TokComma) {
			p.next()
		} else if !p.at(TokRBrace) {
			return nil, p.errorf("expected ',' or '}', got %s", p.peek(0))
		}
	}
	p.next()
	return obj, nil
}

func nodeName(n Node) string {
	switch n.Type() {
	case NodeLiteral:
		return "literal"
	case NodeVar:
		return "variable"
	case NodeBinary:
		return "binary"
	case NodeUnary:
		return "unary"
	case NodeMember:
		return "member"
	case NodeIndex:
		return "index"
	case NodeCall:
		return "call"
	case NodeMethodCall:
		return "method call"
	case NodeTernary:
		return "ternary"
	case NodeArray:
		return "array"
	case NodeObject:
		return "object"
	case NodePair:
		return "pair"
	}
	return "statement"
}
