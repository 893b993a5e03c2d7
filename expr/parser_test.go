package expr

import (
	"testing"

	"github.com/spirit-labs/streamjoin/errors"
	"github.com/stretchr/testify/require"
)

func TestParsePrecedence(t *testing.T) {
	desc, err := ParseExpression("a + b * 3 < c || d")
	require.NoError(t, err)
	or, ok := desc.(*BinaryOperatorExprDesc)
	require.True(t, ok)
	require.Equal(t, "||", or.Op)
	lt := or.Left.(*BinaryOperatorExprDesc)
	require.Equal(t, "<", lt.Op)
	add := lt.Left.(*BinaryOperatorExprDesc)
	require.Equal(t, "+", add.Op)
	require.Equal(t, "a", add.Left.(*IdentifierExprDesc).IdentifierName)
	mul := add.Right.(*BinaryOperatorExprDesc)
	require.Equal(t, "*", mul.Op)
	require.Equal(t, int64(3), mul.Right.(*IntegerConstExprDesc).Value)
	require.Equal(t, "d", or.Right.(*IdentifierExprDesc).IdentifierName)
}

func TestParseLeftAssociative(t *testing.T) {
	desc, err := ParseExpression("10 - 3 - 2")
	require.NoError(t, err)
	outer := desc.(*BinaryOperatorExprDesc)
	inner := outer.Left.(*BinaryOperatorExprDesc)
	require.Equal(t, int64(10), inner.Left.(*IntegerConstExprDesc).Value)
	require.Equal(t, int64(2), outer.Right.(*IntegerConstExprDesc).Value)
}

func TestParseParensAndUnary(t *testing.T) {
	desc, err := ParseExpression("!(l.v == -3) && -x > 1.5f")
	require.NoError(t, err)
	and := desc.(*BinaryOperatorExprDesc)
	not := and.Left.(*UnaryOperatorExprDesc)
	require.Equal(t, "!", not.Op)
	eq := not.Operand.(*BinaryOperatorExprDesc)
	require.Equal(t, "l.v", eq.Left.(*IdentifierExprDesc).IdentifierName)
	require.Equal(t, int64(-3), eq.Right.(*IntegerConstExprDesc).Value)
	gt := and.Right.(*BinaryOperatorExprDesc)
	neg := gt.Left.(*UnaryOperatorExprDesc)
	require.Equal(t, "-", neg.Op)
	require.Equal(t, 1.5, gt.Right.(*FloatConstExprDesc).Value)
}

func TestParseFunctionsAndLiterals(t *testing.T) {
	desc, err := ParseExpression(`coalesce($1, "foo", null) != "bar" && is_null(x) == true`)
	require.NoError(t, err)
	and := desc.(*BinaryOperatorExprDesc)
	neq := and.Left.(*BinaryOperatorExprDesc)
	fn := neq.Left.(*FunctionExprDesc)
	require.Equal(t, "coalesce", fn.FunctionName)
	require.Len(t, fn.ArgExprs, 3)
	require.Equal(t, "$1", fn.ArgExprs[0].(*IdentifierExprDesc).IdentifierName)
	require.Equal(t, "foo", fn.ArgExprs[1].(*StringConstExprDesc).Value)
	_, isNull := fn.ArgExprs[2].(*NullConstExprDesc)
	require.True(t, isNull)
	eq := and.Right.(*BinaryOperatorExprDesc)
	require.True(t, eq.Right.(*BoolConstExprDesc).Value)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		input string
		msg   string
	}{
		{"", "expression is empty"},
		{"a +", "incomplete expression"},
		{"(a + b", "unmatched '('"},
		{"a + b)", "unexpected token ')'"},
		{"1.5 > a", "invalid float. please suffix float literals with 'f'"},
		{"foo(a)", "'foo' is not a known function"},
		{"abs(a b)", "expected ',' or ')' but found 'b'"},
		{"a # b", "invalid expression"},
		{"99999999999999999999 > a", "integer literal out of range"},
	}
	for _, c := range cases {
		_, err := ParseExpression(c.input)
		require.Error(t, err, c.input)
		require.True(t, errors.IsStreamErrorWithCode(err, errors.ParseError), c.input)
		require.Contains(t, err.Error(), c.msg, c.input)
	}
}

func TestErrorPositionHighlight(t *testing.T) {
	_, err := ParseExpression("a + foo(1)")
	require.Error(t, err)
	require.Equal(t, "'foo' is not a known function (line 1 column 5):\na + foo(1)\n    ^", err.Error())
}
