package compiler

import (
	"fmt"
	"strings"
)

// ============================================================
// EXPRESSION MODEL
// ============================================================
//
// Conditions and value expressions are parsed into a small tree.
// Expressions are pure: only steps cause effects.
//
// Quoting rule: any single-quoted token is a literal, never a field or
// variable, even if it matches a field name, at any nesting depth.

type ExprKind int

const (
	ExprLiteral ExprKind = iota
	// ExprIdent is an identifier as parsed; resolution classifies it
	// into ExprFieldRef or ExprVarRef, or rejects it.
	ExprIdent
	ExprFieldRef
	ExprVarRef
	ExprPath
	ExprBinary
	ExprUnary
	ExprCall
	ExprList
	ExprExists
)

// Type is the logical type an expression evaluates to.
type Type int

const (
	TypeUnknown Type = iota
	TypeText
	TypeInt
	TypeNumeric
	TypeBool
	TypeTimestamp
	TypeDate
	TypeUUID
	TypeJSON
	TypeList
)

var typeNames = map[Type]string{
	TypeUnknown:   "unknown",
	TypeText:      "text",
	TypeInt:       "int",
	TypeNumeric:   "numeric",
	TypeBool:      "bool",
	TypeTimestamp: "timestamp",
	TypeDate:      "date",
	TypeUUID:      "uuid",
	TypeJSON:      "json",
	TypeList:      "list",
}

func (t Type) String() string { return typeNames[t] }

// Expr is one node of an expression tree. Kind selects which fields
// are meaningful.
type Expr struct {
	Kind ExprKind

	// ExprLiteral: SQL-ready literal text and its type.
	// ExprIdent/ExprFieldRef/ExprVarRef: the identifier name.
	// ExprCall: the function name.
	Text string
	Type Type

	// ExprBinary / ExprUnary
	Op      string
	Left    *Expr
	Right   *Expr
	Operand *Expr

	// ExprPath
	Base   *Expr
	Member string

	// ExprCall / ExprList
	Args []*Expr

	// ExprExists
	Entity string
	Where  *Expr
}

// ============================================================
// LEXER
// ============================================================

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tokDot, text: ".", pos: start}, nil

	case c == '\'':
		// Single-quoted literal; '' escapes a quote.
		l.pos++
		var sb strings.Builder
		for {
			if l.pos >= len(l.input) {
				return token{}, &ParseError{Input: l.input, Pos: start, Message: "unterminated string literal"}
			}
			if l.input[l.pos] == '\'' {
				if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
					sb.WriteByte('\'')
					l.pos += 2
					continue
				}
				l.pos++
				break
			}
			sb.WriteByte(l.input[l.pos])
			l.pos++
		}
		return token{kind: tokString, text: sb.String(), pos: start}, nil

	case isDigit(c):
		for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil

	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.input[start:l.pos], pos: start}, nil

	case strings.ContainsRune("=!<>+-*/", rune(c)):
		// Two-character operators first.
		if l.pos+1 < len(l.input) {
			two := l.input[l.pos : l.pos+2]
			if two == "!=" || two == "<=" || two == ">=" || two == "<>" {
				l.pos += 2
				if two == "<>" {
					two = "!="
				}
				return token{kind: tokOp, text: two, pos: start}, nil
			}
		}
		if c == '!' {
			return token{}, &ParseError{Input: l.input, Pos: start, Message: "unexpected '!'"}
		}
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	}

	return token{}, &ParseError{Input: l.input, Pos: start, Message: fmt.Sprintf("unexpected character %q", c)}
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// ============================================================
// PARSER
// ============================================================

type parser struct {
	lex *lexer
	tok token
}

// ParseExpression parses a raw condition or value expression.
// Identifiers come back unclassified (ExprIdent); resolution against a
// scope and field map happens during lowering.
func ParseExpression(raw string) (*Expr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ParseError{Input: raw, Pos: 0, Message: "empty expression"}
	}
	p := &parser{lex: &lexer{input: raw}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &ParseError{Input: raw, Pos: p.tok.pos, Message: fmt.Sprintf("unexpected %q", p.tok.text)}
	}
	return expr, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// isKeyword matches an identifier token case-insensitively.
func (p *parser) isKeyword(word string) bool {
	return p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, word)
}

func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (*Expr, error) {
	if p.isKeyword("not") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprUnary, Op: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (*Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch {
	case p.tok.kind == tokOp && isComparisonOp(p.tok.text):
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprBinary, Op: op, Left: left, Right: right}, nil

	case p.isKeyword("like"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprBinary, Op: "like", Left: left, Right: right}, nil

	case p.isKeyword("is"):
		// is null / is not null
		if err := p.advance(); err != nil {
			return nil, err
		}
		negated := false
		if p.isKeyword("not") {
			negated = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if !p.isKeyword("null") {
			return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "expected 'null' after 'is'"}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		op := "is null"
		if negated {
			op = "is not null"
		}
		return &Expr{Kind: ExprUnary, Op: op, Operand: left}, nil

	case p.isKeyword("in"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprBinary, Op: "in", Left: left, Right: list}, nil
	}

	return left, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "=", "!=", "<", ">", "<=", ">=":
		return true
	}
	return false
}

func (p *parser) parseList() (*Expr, error) {
	if p.tok.kind != tokLParen {
		return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "expected '(' after 'in'"}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	list := &Expr{Kind: ExprList, Type: TypeList}
	for {
		item, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		list.Args = append(list.Args, item)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.tok.kind != tokRParen {
		return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "expected ')' to close list"}
	}
	return list, p.advance()
}

func (p *parser) parseAdditive() (*Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*Expr, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprUnary, Op: "-", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Expr, error) {
	switch p.tok.kind {
	case tokString:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprLiteral, Text: quoteLiteral(text), Type: TypeText}, nil

	case tokNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		typ := TypeInt
		if strings.Contains(text, ".") {
			typ = TypeNumeric
		}
		return &Expr{Kind: ExprLiteral, Text: text, Type: typ}, nil

	case tokIdent:
		name := p.tok.text
		switch strings.ToLower(name) {
		case "true", "false":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &Expr{Kind: ExprLiteral, Text: strings.ToLower(name), Type: TypeBool}, nil
		case "null":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &Expr{Kind: ExprLiteral, Text: "NULL", Type: TypeUnknown}, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokLParen {
			return p.parseCall(name)
		}
		return p.parsePathSuffix(&Expr{Kind: ExprIdent, Text: name})

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "expected ')'"}
		}
		return inner, p.advance()
	}

	return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: fmt.Sprintf("unexpected %q", p.tok.text)}
}

// parsePathSuffix consumes ".member" chains: item.company.name.
func (p *parser) parsePathSuffix(base *Expr) (*Expr, error) {
	for p.tok.kind == tokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "expected member name after '.'"}
		}
		base = &Expr{Kind: ExprPath, Base: base, Member: p.tok.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func (p *parser) parseCall(name string) (*Expr, error) {
	// consume '('
	if err := p.advance(); err != nil {
		return nil, err
	}

	if strings.EqualFold(name, "exists") {
		return p.parseExists()
	}

	call := &Expr{Kind: ExprCall, Text: strings.ToLower(name)}
	if p.tok.kind == tokRParen {
		return call, p.advance()
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.tok.kind != tokRParen {
		return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "expected ')' to close call"}
	}
	return call, p.advance()
}

// parseExists handles the subquery marker: exists(Entity, <condition>).
func (p *parser) parseExists() (*Expr, error) {
	if p.tok.kind != tokIdent {
		return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "exists() needs an entity name"}
	}
	entity := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokComma {
		return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "exists() needs a condition after the entity"}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	where, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokRParen {
		return nil, &ParseError{Input: p.lex.input, Pos: p.tok.pos, Message: "expected ')' to close exists"}
	}
	return &Expr{Kind: ExprExists, Entity: entity, Where: where, Type: TypeBool}, p.advance()
}

// quoteLiteral renders a string value as a SQL literal with quotes
// doubled.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
