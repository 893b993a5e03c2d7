package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/spirit-labs/streamjoin/errors"
)

var lex = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "BinaryOp", Pattern: `(?:==|!=|<=|>=|&&|\|\||[-+\*/%<>])`},
	{Name: "UnaryOp", Pattern: `!`},
	{Name: "BoolLiteral", Pattern: `(?:true|false)\b`},
	{Name: "NullLiteral", Pattern: `null\b`},
	{Name: "Ident", Pattern: `(?:\$[0-9]+|[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)?)`},
	{Name: "ListSeparator", Pattern: `,`},
	{Name: "LParens", Pattern: `\(`},
	{Name: "RParens", Pattern: `\)`},
	{Name: "Float", Pattern: `(\d+(\.\d*)?|\.\d+)(e[-+]?\d+)?f`},
	{Name: "Integer", Pattern: `[0-9]+`},
	{Name: "InvalidFloat", Pattern: `(\d+(\.\d*)?|\.\d+)(e[-+]?\d+)?`},
	{Name: "StringLiteral", Pattern: `"(?:\\"|[^"])*"`},
	{Name: "Whitespace", Pattern: `[ \t\n\r]+`},
})

var (
	BinaryOpTokenType      = lex.Symbols()["BinaryOp"]
	UnaryOpTokenType       = lex.Symbols()["UnaryOp"]
	BoolLiteralTokenType   = lex.Symbols()["BoolLiteral"]
	NullLiteralTokenType   = lex.Symbols()["NullLiteral"]
	IdentTokenType         = lex.Symbols()["Ident"]
	ListSeparatorTokenType = lex.Symbols()["ListSeparator"]
	LParensTokenType       = lex.Symbols()["LParens"]
	RParensTokenType       = lex.Symbols()["RParens"]
	FloatTokenType         = lex.Symbols()["Float"]
	IntegerTokenType       = lex.Symbols()["Integer"]
	InvalidFloatTokenType  = lex.Symbols()["InvalidFloat"]
	StringLiteralTokenType = lex.Symbols()["StringLiteral"]
	WhitespaceTokenType    = lex.Symbols()["Whitespace"]
)

// Operators maps each binary operator to its precedence, higher binds tighter.
var Operators = map[string]int{
	"/":  5,
	"%":  5,
	"*":  5,
	"+":  4,
	"-":  4,
	"==": 3,
	"!=": 3,
	"<=": 3,
	">=": 3,
	"<":  3,
	">":  3,
	"&&": 2,
	"||": 1,
}

func Lex(input string) ([]lexer.Token, error) {
	l, err := lex.Lex("", strings.NewReader(input))
	if err != nil {
		return nil, err
	}
	var tokens []lexer.Token
	for {
		token, err := l.Next()
		if err != nil {
			var le *lexer.Error
			if errors.As(err, &le) {
				return nil, errorAtPosition("invalid expression", le.Pos, input)
			}
			return nil, err
		}
		if token.Type == lexer.EOF {
			break
		}
		if token.Type == InvalidFloatTokenType {
			return nil, errorAtPosition("invalid float. please suffix float literals with 'f'", token.Pos, input)
		}
		if token.Type != WhitespaceTokenType {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

// ParseExpression parses a single expression such as `l.v < r.v && !is_null($2)`.
func ParseExpression(input string) (ExprDesc, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.NewStreamError(errors.ParseError, "expression is empty")
	}
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &exprParser{input: input, tokens: tokens}
	desc, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, errorAtPosition(fmt.Sprintf("unexpected token '%s'", tok.Value), tok.Pos, input)
	}
	return desc, nil
}

type exprParser struct {
	input  string
	tokens []lexer.Token
	pos    int
}

func (p *exprParser) peek() (lexer.Token, bool) {
	if p.pos == len(p.tokens) {
		return lexer.Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) next() (lexer.Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *exprParser) incomplete() error {
	var pos lexer.Position
	if len(p.tokens) > 0 {
		pos = p.tokens[len(p.tokens)-1].Pos
	}
	return errorAtPosition("incomplete expression", pos, p.input)
}

func (p *exprParser) base(tok lexer.Token) BaseExprDesc {
	return BaseExprDesc{token: tok, input: p.input}
}

// parseBinary is precedence climbing over Operators; all binary operators are left associative.
func (p *exprParser) parseBinary(minPrec int) (ExprDesc, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.Type != BinaryOpTokenType {
			return left, nil
		}
		prec := Operators[tok.Value]
		if prec < minPrec {
			return left, nil
		}
		p.pos++
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryOperatorExprDesc{BaseExprDesc: p.base(tok), Left: left, Right: right, Op: tok.Value}
	}
}

func (p *exprParser) parseUnary() (ExprDesc, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, p.incomplete()
	}
	if tok.Type == UnaryOpTokenType || (tok.Type == BinaryOpTokenType && (tok.Value == "-" || tok.Value == "+")) {
		p.pos++
		if tok.Value != "!" {
			// a sign directly before a number literal is part of the literal
			if next, ok := p.peek(); ok && (next.Type == IntegerTokenType || next.Type == FloatTokenType) {
				p.pos++
				return p.numberConst(next, tok.Value == "-", tok)
			}
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if tok.Value == "+" {
			return operand, nil
		}
		return &UnaryOperatorExprDesc{BaseExprDesc: p.base(tok), Operand: operand, Op: tok.Value}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) numberConst(tok lexer.Token, negate bool, posTok lexer.Token) (ExprDesc, error) {
	s := tok.Value
	if negate {
		s = "-" + s
	}
	if tok.Type == IntegerTokenType {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errorAtPosition("integer literal out of range", posTok.Pos, p.input)
		}
		return &IntegerConstExprDesc{BaseExprDesc: p.base(posTok), Value: i}, nil
	}
	f, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return nil, errorAtPosition("invalid float literal", posTok.Pos, p.input)
	}
	return &FloatConstExprDesc{BaseExprDesc: p.base(posTok), Value: f}, nil
}

func (p *exprParser) parsePrimary() (ExprDesc, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.incomplete()
	}
	switch tok.Type {
	case IntegerTokenType, FloatTokenType:
		return p.numberConst(tok, false, tok)
	case StringLiteralTokenType:
		unquoted, err := strconv.Unquote(tok.Value)
		if err != nil {
			return nil, errorAtPosition("invalid quoted string literal", tok.Pos, p.input)
		}
		return &StringConstExprDesc{BaseExprDesc: p.base(tok), Value: unquoted}, nil
	case BoolLiteralTokenType:
		return &BoolConstExprDesc{BaseExprDesc: p.base(tok), Value: tok.Value == "true"}, nil
	case NullLiteralTokenType:
		return &NullConstExprDesc{BaseExprDesc: p.base(tok)}, nil
	case IdentTokenType:
		if next, ok := p.peek(); ok && next.Type == LParensTokenType {
			return p.parseFunction(tok)
		}
		return &IdentifierExprDesc{BaseExprDesc: p.base(tok), IdentifierName: tok.Value}, nil
	case LParensTokenType:
		inner, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		closing, ok := p.next()
		if !ok {
			return nil, errorAtPosition("unmatched '('", tok.Pos, p.input)
		}
		if closing.Type != RParensTokenType {
			return nil, errorAtPosition(fmt.Sprintf("expected ')' but found '%s'", closing.Value), closing.Pos, p.input)
		}
		return inner, nil
	default:
		return nil, errorAtPosition(fmt.Sprintf("unexpected token '%s'", tok.Value), tok.Pos, p.input)
	}
}

func (p *exprParser) parseFunction(nameTok lexer.Token) (ExprDesc, error) {
	if _, ok := BuiltinFunctions[nameTok.Value]; !ok {
		return nil, errorAtPosition(fmt.Sprintf("'%s' is not a known function", nameTok.Value), nameTok.Pos, p.input)
	}
	p.pos++ // (
	fe := &FunctionExprDesc{BaseExprDesc: p.base(nameTok), FunctionName: nameTok.Value}
	if tok, ok := p.peek(); ok && tok.Type == RParensTokenType {
		p.pos++
		return fe, nil
	}
	for {
		arg, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		fe.ArgExprs = append(fe.ArgExprs, arg)
		tok, ok := p.next()
		if !ok {
			return nil, errorAtPosition("missing parentheses", nameTok.Pos, p.input)
		}
		if tok.Type == RParensTokenType {
			return fe, nil
		}
		if tok.Type != ListSeparatorTokenType {
			return nil, errorAtPosition(fmt.Sprintf("expected ',' or ')' but found '%s'", tok.Value), tok.Pos, p.input)
		}
	}
}
