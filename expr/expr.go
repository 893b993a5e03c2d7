package expr

import (
	"strconv"
	"strings"

	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/types"
)

// Expression is evaluated against a single row. A nil result is NULL.
type Expression interface {
	Eval(row []any) (any, error)
	ResultType() types.ColumnType
}

// Factory binds parsed expressions to a schema, resolving column references and checking operand types.
type Factory struct {
}

// ParseAndCreate parses input and binds it to schema.
func (f *Factory) ParseAndCreate(input string, schema *evbatch.EventSchema) (Expression, error) {
	desc, err := ParseExpression(input)
	if err != nil {
		return nil, err
	}
	return f.CreateExpression(desc, schema)
}

func (f *Factory) CreateExpression(desc ExprDesc, schema *evbatch.EventSchema) (Expression, error) {
	switch op := desc.(type) {
	case *IntegerConstExprDesc:
		return NewConstantExpr(op.Value, types.ColumnTypeInt), nil
	case *FloatConstExprDesc:
		return NewConstantExpr(op.Value, types.ColumnTypeFloat), nil
	case *BoolConstExprDesc:
		return NewConstantExpr(op.Value, types.ColumnTypeBool), nil
	case *StringConstExprDesc:
		return NewConstantExpr(op.Value, types.ColumnTypeString), nil
	case *NullConstExprDesc:
		return &NullConstantExpr{exprType: types.ColumnTypeBool}, nil
	case *IdentifierExprDesc:
		return createColumnExpr(op, schema)
	case *BinaryOperatorExprDesc:
		return f.createBinaryOperator(op, schema)
	case *UnaryOperatorExprDesc:
		return f.createUnaryOperator(op, schema)
	case *FunctionExprDesc:
		return f.createFunction(op, schema)
	default:
		return nil, errors.NewInternalError("unsupported expression")
	}
}

func createColumnExpr(desc *IdentifierExprDesc, schema *evbatch.EventSchema) (Expression, error) {
	name := desc.IdentifierName
	if strings.HasPrefix(name, "$") {
		index, err := strconv.Atoi(name[1:])
		if err != nil || index >= schema.NumColumns() {
			return nil, desc.ErrorAtPosition("column index %s out of range. (available columns: %s)", name, schema.String())
		}
		return NewColumnExpr(index, schema.ColumnTypes()[index]), nil
	}
	if index := schema.ColumnIndex(name); index != -1 {
		return NewColumnExpr(index, schema.ColumnTypes()[index]), nil
	}
	// an unqualified name may refer to a qualified column, as long as only one matches
	if !strings.Contains(name, ".") {
		found := -1
		for i, colName := range schema.ColumnNames() {
			if strings.HasSuffix(colName, "."+name) {
				if found != -1 {
					return nil, desc.ErrorAtPosition("column '%s' is ambiguous. (available columns: %s)", name, schema.String())
				}
				found = i
			}
		}
		if found != -1 {
			return NewColumnExpr(found, schema.ColumnTypes()[found]), nil
		}
	}
	return nil, desc.ErrorAtPosition("unknown column '%s'. (available columns: %s)", name, schema.String())
}

type ColumnExpr struct {
	colIndex int
	exprType types.ColumnType
}

func NewColumnExpr(colIndex int, exprType types.ColumnType) *ColumnExpr {
	return &ColumnExpr{colIndex: colIndex, exprType: exprType}
}

func (c *ColumnExpr) Eval(row []any) (any, error) {
	return row[c.colIndex], nil
}

func (c *ColumnExpr) ResultType() types.ColumnType {
	return c.exprType
}

type ConstantExpr struct {
	val      any
	exprType types.ColumnType
}

func NewConstantExpr(val any, exprType types.ColumnType) *ConstantExpr {
	return &ConstantExpr{val: val, exprType: exprType}
}

func (c *ConstantExpr) Eval([]any) (any, error) {
	return c.val, nil
}

func (c *ConstantExpr) ResultType() types.ColumnType {
	return c.exprType
}

// NullConstantExpr takes the type of whatever it is combined with.
type NullConstantExpr struct {
	exprType types.ColumnType
}

func (n *NullConstantExpr) Eval([]any) (any, error) {
	return nil, nil
}

func (n *NullConstantExpr) ResultType() types.ColumnType {
	return n.exprType
}

// unifyNull gives an untyped NULL operand the type of the other operand.
func unifyNull(left Expression, right Expression) {
	if ln, ok := left.(*NullConstantExpr); ok {
		ln.exprType = right.ResultType()
	}
	if rn, ok := right.(*NullConstantExpr); ok {
		rn.exprType = left.ResultType()
	}
}

// EvalPredicate evaluates a boolean expression as a filter: NULL counts as false.
func EvalPredicate(e Expression, row []any) (bool, error) {
	res, err := e.Eval(row)
	if err != nil || res == nil {
		return false, err
	}
	return res.(bool), nil //nolint:forcetypeassert
}

func evalError(msg string, args ...interface{}) error {
	return errors.NewStreamErrorf(errors.ExprEvalError, msg, args...)
}
