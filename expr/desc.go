package expr

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/spirit-labs/streamjoin/errors"
)

// ExprDesc is the parsed, untyped form of an expression. It is bound to a schema by Factory.CreateExpression.
type ExprDesc interface {
	ErrorAtPosition(msg string, args ...interface{}) error
}

type BaseExprDesc struct {
	token lexer.Token
	input string
}

func (b *BaseExprDesc) ErrorAtPosition(msg string, args ...interface{}) error {
	msg = fmt.Sprintf(msg, args...)
	return errors.NewStreamError(errors.ParseError, MessageWithPosition(msg, b.token.Pos, b.input))
}

type BinaryOperatorExprDesc struct {
	BaseExprDesc
	Left  ExprDesc
	Right ExprDesc
	Op    string
}

type UnaryOperatorExprDesc struct {
	BaseExprDesc
	Operand ExprDesc
	Op      string
}

type IntegerConstExprDesc struct {
	BaseExprDesc
	Value int64
}

type FloatConstExprDesc struct {
	BaseExprDesc
	Value float64
}

type BoolConstExprDesc struct {
	BaseExprDesc
	Value bool
}

type StringConstExprDesc struct {
	BaseExprDesc
	Value string
}

type NullConstExprDesc struct {
	BaseExprDesc
}

// IdentifierExprDesc names a column, either by name or positionally as $n.
type IdentifierExprDesc struct {
	BaseExprDesc
	IdentifierName string
}

type FunctionExprDesc struct {
	BaseExprDesc
	FunctionName string
	ArgExprs     []ExprDesc
}

func errorAtPosition(msg string, pos lexer.Position, input string) error {
	return errors.NewStreamError(errors.ParseError, MessageWithPosition(msg, pos, input))
}

func MessageWithPosition(msg string, pos lexer.Position, input string) string {
	return fmt.Sprintf("%s (line %d column %d):\n%s", msg, pos.Line, pos.Column, lineWithPosHighlight(input, pos))
}

func lineWithPosHighlight(input string, pos lexer.Position) string {
	if input == "" || pos.Line < 1 {
		return ""
	}
	lines := strings.Split(input, "\n")
	if pos.Line > len(lines) {
		return ""
	}
	line := lines[pos.Line-1]
	line = strings.ReplaceAll(line, "\t", " ")
	line = strings.ReplaceAll(line, "\r", " ")
	sb := strings.Builder{}
	for i := 0; i < pos.Column-1; i++ {
		sb.WriteRune(' ')
	}
	sb.WriteRune('^')
	return fmt.Sprintf("%s\n%s", line, sb.String())
}
