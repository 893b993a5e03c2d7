package expr

import (
	"math"
	"testing"

	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/types"
	"github.com/stretchr/testify/require"
)

var joinedSchema = evbatch.NewEventSchema(
	[]string{"l.k", "l.v", "r.k", "r.v", "r.name", "r.price"},
	[]types.ColumnType{types.ColumnTypeInt, types.ColumnTypeInt, types.ColumnTypeInt, types.ColumnTypeInt,
		types.ColumnTypeString, &types.DecimalType{Precision: 10, Scale: 2}})

func create(t *testing.T, input string) Expression {
	t.Helper()
	f := &Factory{}
	e, err := f.ParseAndCreate(input, joinedSchema)
	require.NoError(t, err)
	return e
}

func eval(t *testing.T, input string, row []any) any {
	t.Helper()
	res, err := create(t, input).Eval(row)
	require.NoError(t, err)
	return res
}

func dec(t *testing.T, s string) types.Decimal {
	d, err := types.NewDecimalFromString(s, 10, 2)
	require.NoError(t, err)
	return d
}

func TestColumnResolution(t *testing.T) {
	row := []any{int64(1), int64(2), int64(3), int64(4), "x", nil}
	require.Equal(t, int64(2), eval(t, "l.v", row))
	require.Equal(t, int64(4), eval(t, "$3", row))
	require.Equal(t, "x", eval(t, "name", row))

	f := &Factory{}
	_, err := f.ParseAndCreate("v", joinedSchema)
	require.True(t, errors.IsStreamErrorWithCode(err, errors.ParseError))
	require.Contains(t, err.Error(), "column 'v' is ambiguous")
	_, err = f.ParseAndCreate("l.zz", joinedSchema)
	require.Contains(t, err.Error(), "unknown column 'l.zz'")
	_, err = f.ParseAndCreate("$6", joinedSchema)
	require.Contains(t, err.Error(), "column index $6 out of range")
}

func TestComparisons(t *testing.T) {
	row := []any{int64(1), int64(4), int64(1), int64(6), "x", nil}
	require.Equal(t, true, eval(t, "l.v < r.v", row))
	require.Equal(t, false, eval(t, "l.v >= r.v", row))
	require.Equal(t, true, eval(t, "l.k == r.k", row))
	require.Equal(t, true, eval(t, "l.v != r.v", row))
	require.Equal(t, true, eval(t, `name == "x"`, row))
	require.Equal(t, true, eval(t, `name <= "y"`, row))
	require.Nil(t, eval(t, "l.v < r.v", []any{int64(1), nil, int64(1), int64(6), "x", nil}))
	require.Equal(t, true, eval(t, "price > price - price", []any{nil, nil, nil, nil, nil, dec(t, "2.00")}))
}

func TestArithmetic(t *testing.T) {
	row := []any{int64(7), int64(2), int64(-3), nil, "x", dec(t, "1.25")}
	require.Equal(t, int64(9), eval(t, "l.k + l.v", row))
	require.Equal(t, int64(5), eval(t, "l.k - l.v", row))
	require.Equal(t, int64(-21), eval(t, "l.k * r.k", row))
	require.Equal(t, int64(3), eval(t, "l.k / l.v", row))
	require.Equal(t, int64(1), eval(t, "l.k % l.v", row))
	require.Equal(t, int64(3), eval(t, "-r.k", row))
	require.Equal(t, int64(3), eval(t, "abs(r.k)", row))
	require.Nil(t, eval(t, "l.k + r.v", row))
	require.Equal(t, 3.5, eval(t, "1.5f + 2.0f", row))
	sum := eval(t, "price + price", row).(types.Decimal)
	require.Equal(t, "2.50", sum.String())
}

func TestEvalErrors(t *testing.T) {
	cases := []struct {
		input string
		row   []any
		msg   string
	}{
		{"l.k + l.v > 0", []any{int64(math.MaxInt64), int64(1), nil, nil, nil, nil}, "integer overflow"},
		{"l.k - l.v > 0", []any{int64(math.MinInt64), int64(1), nil, nil, nil, nil}, "integer overflow"},
		{"l.k * l.v > 0", []any{int64(math.MaxInt64), int64(2), nil, nil, nil, nil}, "integer overflow"},
		{"l.k / l.v > 0", []any{int64(1), int64(0), nil, nil, nil, nil}, "division by zero"},
		{"l.k % l.v > 0", []any{int64(1), int64(0), nil, nil, nil, nil}, "division by zero"},
		{"-l.k > 0", []any{int64(math.MinInt64), nil, nil, nil, nil, nil}, "integer overflow"},
	}
	for _, c := range cases {
		_, err := create(t, c.input).Eval(c.row)
		require.Error(t, err, c.input)
		require.True(t, errors.IsStreamErrorWithCode(err, errors.ExprEvalError), c.input)
		require.Contains(t, err.Error(), c.msg, c.input)
	}
}

func TestThreeValuedLogic(t *testing.T) {
	// l.k is NULL, so l.k > 0 is NULL
	row := []any{nil, int64(1), nil, nil, nil, nil}
	require.Equal(t, false, eval(t, "l.k > 0 && l.v > 1", row))
	require.Nil(t, eval(t, "l.k > 0 && l.v > 0", row))
	require.Equal(t, true, eval(t, "l.k > 0 || l.v > 0", row))
	require.Nil(t, eval(t, "l.k > 0 || l.v > 1", row))
	require.Nil(t, eval(t, "!(l.k > 0)", row))
	require.Equal(t, true, eval(t, "is_null(l.k)", row))
	require.Equal(t, false, eval(t, "is_not_null(l.k)", row))
	require.Equal(t, int64(1), eval(t, "coalesce(l.k, l.v)", row))
	require.Nil(t, eval(t, "l.k == null", row))
}

func TestShortCircuitSkipsErrors(t *testing.T) {
	row := []any{int64(1), int64(0), nil, nil, nil, nil}
	require.Equal(t, false, eval(t, "l.v != 0 && l.k / l.v > 1", row))
	require.Equal(t, true, eval(t, "l.v == 0 || l.k / l.v > 1", row))
}

func TestEvalPredicate(t *testing.T) {
	e := create(t, "l.v < r.v")
	ok, err := EvalPredicate(e, []any{int64(1), int64(2), int64(1), int64(3), nil, nil})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = EvalPredicate(e, []any{int64(1), nil, int64(1), int64(3), nil, nil})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTypeChecking(t *testing.T) {
	f := &Factory{}
	cases := []struct {
		input string
		msg   string
	}{
		{`l.v + 1.5f`, "are not the same"},
		{`name + name`, "unsupported type 'string'"},
		{`l.v && l.k`, "requires operands to be bool"},
		{`!l.v`, "operand must be of type bool"},
		{`abs(name)`, "unsupported type 'string'"},
		{`is_null(l.v, l.k)`, "requires 1 argument"},
		{`coalesce(l.v, name)`, "argument 1 has type 'string'"},
		{`price / price`, "unsupported type 'decimal(10,2)'"},
	}
	for _, c := range cases {
		_, err := f.ParseAndCreate(c.input, joinedSchema)
		require.Error(t, err, c.input)
		require.True(t, errors.IsStreamErrorWithCode(err, errors.ParseError), c.input)
		require.Contains(t, err.Error(), c.msg, c.input)
	}
}
