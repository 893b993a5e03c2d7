package expr

import (
	"math"

	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/types"
)

type arithmeticFunc func(left any, right any) (any, error)

// ArithmeticOperator is one of + - * / % over two operands of the same numeric type.
type ArithmeticOperator struct {
	leftExpr  Expression
	rightExpr Expression
	exprType  types.ColumnType
	apply     arithmeticFunc
}

var arithmeticSupportedTypes = map[string]map[types.ColumnTypeID]struct{}{
	"+": {types.ColumnTypeIDInt: {}, types.ColumnTypeIDFloat: {}, types.ColumnTypeIDDecimal: {}, types.ColumnTypeIDTimestamp: {}},
	"-": {types.ColumnTypeIDInt: {}, types.ColumnTypeIDFloat: {}, types.ColumnTypeIDDecimal: {}, types.ColumnTypeIDTimestamp: {}},
	"*": {types.ColumnTypeIDInt: {}, types.ColumnTypeIDFloat: {}, types.ColumnTypeIDDecimal: {}},
	"/": {types.ColumnTypeIDInt: {}, types.ColumnTypeIDFloat: {}},
	"%": {types.ColumnTypeIDInt: {}},
}

func NewArithmeticOperator(left Expression, right Expression, desc *BinaryOperatorExprDesc) (*ArithmeticOperator, error) {
	unifyNull(left, right)
	supportedTypes := arithmeticSupportedTypes[desc.Op]
	if _, ok := supportedTypes[left.ResultType().ID()]; !ok {
		return nil, desc.ErrorAtPosition("operator '%s' has left operand with unsupported type '%s'", desc.Op,
			left.ResultType().String())
	}
	if _, ok := supportedTypes[right.ResultType().ID()]; !ok {
		return nil, desc.ErrorAtPosition("operator '%s' has right operand with unsupported type '%s'", desc.Op,
			right.ResultType().String())
	}
	if left.ResultType().ID() != right.ResultType().ID() {
		return nil, desc.ErrorAtPosition("operator '%s' left operand type '%s' and right operand type '%s' are not the same.",
			desc.Op, left.ResultType().String(), right.ResultType().String())
	}
	oper := &ArithmeticOperator{
		leftExpr:  left,
		rightExpr: right,
		exprType:  left.ResultType(),
	}
	switch desc.Op {
	case "+":
		oper.apply = addDatums
	case "-":
		oper.apply = subtractDatums
	case "*":
		oper.apply = multiplyDatums
	case "/":
		oper.apply = divideDatums
	case "%":
		oper.apply = modulusDatums
	}
	if dt, ok := left.ResultType().(*types.DecimalType); ok && desc.Op == "*" {
		rt := right.ResultType().(*types.DecimalType) //nolint:forcetypeassert
		oper.exprType = &types.DecimalType{Precision: dt.Precision, Scale: dt.Scale + rt.Scale}
	}
	return oper, nil
}

func (a *ArithmeticOperator) Eval(row []any) (any, error) {
	left, err := a.leftExpr.Eval(row)
	if err != nil || left == nil {
		return nil, err
	}
	right, err := a.rightExpr.Eval(row)
	if err != nil || right == nil {
		return nil, err
	}
	return a.apply(left, right)
}

func (a *ArithmeticOperator) ResultType() types.ColumnType {
	return a.exprType
}

func addInts(l int64, r int64) (int64, error) {
	res := l + r
	if (l > 0 && r > 0 && res < 0) || (l < 0 && r < 0 && res >= 0) {
		return 0, evalError("integer overflow evaluating %d + %d", l, r)
	}
	return res, nil
}

func subtractInts(l int64, r int64) (int64, error) {
	if (r > 0 && l < math.MinInt64+r) || (r < 0 && l > math.MaxInt64+r) {
		return 0, evalError("integer overflow evaluating %d - %d", l, r)
	}
	return l - r, nil
}

func addDatums(left any, right any) (any, error) {
	switch l := left.(type) {
	case int64:
		return addInts(l, right.(int64)) //nolint:forcetypeassert
	case float64:
		return l + right.(float64), nil //nolint:forcetypeassert
	case types.Decimal:
		r := right.(types.Decimal) //nolint:forcetypeassert
		res, err := l.Add(&r)
		if err != nil {
			return nil, evalError("%v", err)
		}
		return res, nil
	case types.Timestamp:
		res, err := addInts(l.Val, right.(types.Timestamp).Val) //nolint:forcetypeassert
		if err != nil {
			return nil, err
		}
		return types.NewTimestamp(res), nil
	}
	return nil, evalError("cannot add %T", left)
}

func subtractDatums(left any, right any) (any, error) {
	switch l := left.(type) {
	case int64:
		return subtractInts(l, right.(int64)) //nolint:forcetypeassert
	case float64:
		return l - right.(float64), nil //nolint:forcetypeassert
	case types.Decimal:
		r := right.(types.Decimal) //nolint:forcetypeassert
		res, err := l.Subtract(&r)
		if err != nil {
			return nil, evalError("%v", err)
		}
		return res, nil
	case types.Timestamp:
		res, err := subtractInts(l.Val, right.(types.Timestamp).Val) //nolint:forcetypeassert
		if err != nil {
			return nil, err
		}
		return types.NewTimestamp(res), nil
	}
	return nil, evalError("cannot subtract %T", left)
}

func multiplyDatums(left any, right any) (any, error) {
	switch l := left.(type) {
	case int64:
		r := right.(int64) //nolint:forcetypeassert
		if l == 0 || r == 0 {
			return int64(0), nil
		}
		res := l * r
		if res/r != l || (l == -1 && r == math.MinInt64) || (r == -1 && l == math.MinInt64) {
			return nil, evalError("integer overflow evaluating %d * %d", l, r)
		}
		return res, nil
	case float64:
		return l * right.(float64), nil //nolint:forcetypeassert
	case types.Decimal:
		r := right.(types.Decimal) //nolint:forcetypeassert
		res, err := l.Multiply(&r)
		if err != nil {
			return nil, evalError("%v", err)
		}
		return res, nil
	}
	return nil, evalError("cannot multiply %T", left)
}

func divideDatums(left any, right any) (any, error) {
	switch l := left.(type) {
	case int64:
		r := right.(int64) //nolint:forcetypeassert
		if r == 0 {
			return nil, evalError("division by zero")
		}
		if l == math.MinInt64 && r == -1 {
			return nil, evalError("integer overflow evaluating %d / %d", l, r)
		}
		return l / r, nil
	case float64:
		r := right.(float64) //nolint:forcetypeassert
		if r == 0 {
			return nil, evalError("division by zero")
		}
		return l / r, nil
	}
	return nil, evalError("cannot divide %T", left)
}

func modulusDatums(left any, right any) (any, error) {
	l := left.(int64)  //nolint:forcetypeassert
	r := right.(int64) //nolint:forcetypeassert
	if r == 0 {
		return nil, evalError("division by zero")
	}
	if r == -1 {
		return int64(0), nil
	}
	return l % r, nil
}

// ComparisonOperator compares two operands of the same type. The result is NULL if either is NULL.
type ComparisonOperator struct {
	op        string
	leftExpr  Expression
	rightExpr Expression
}

func NewComparisonOperator(left Expression, right Expression, desc *BinaryOperatorExprDesc) (*ComparisonOperator, error) {
	unifyNull(left, right)
	if left.ResultType().ID() != right.ResultType().ID() {
		return nil, desc.ErrorAtPosition("operator '%s' left operand type '%s' and right operand type '%s' are not the same.",
			desc.Op, left.ResultType().String(), right.ResultType().String())
	}
	return &ComparisonOperator{op: desc.Op, leftExpr: left, rightExpr: right}, nil
}

func (c *ComparisonOperator) Eval(row []any) (any, error) {
	left, err := c.leftExpr.Eval(row)
	if err != nil || left == nil {
		return nil, err
	}
	right, err := c.rightExpr.Eval(row)
	if err != nil || right == nil {
		return nil, err
	}
	diff := types.CompareDatums(left, right)
	switch c.op {
	case "==":
		return diff == 0, nil
	case "!=":
		return diff != 0, nil
	case "<":
		return diff < 0, nil
	case "<=":
		return diff <= 0, nil
	case ">":
		return diff > 0, nil
	default:
		return diff >= 0, nil
	}
}

func (c *ComparisonOperator) ResultType() types.ColumnType {
	return types.ColumnTypeBool
}

// LogicalOperator is && or || with three valued logic: false && NULL is false, true || NULL is true.
type LogicalOperator struct {
	and       bool
	leftExpr  Expression
	rightExpr Expression
}

func NewLogicalOperator(left Expression, right Expression, desc *BinaryOperatorExprDesc) (*LogicalOperator, error) {
	unifyNull(left, right)
	if left.ResultType().ID() != types.ColumnTypeIDBool {
		return nil, desc.ErrorAtPosition("operator '%s' requires operands to be bool - left operand has type '%s'",
			desc.Op, left.ResultType().String())
	}
	if right.ResultType().ID() != types.ColumnTypeIDBool {
		return nil, desc.ErrorAtPosition("operator '%s' requires operands to be bool - right operand has type '%s'",
			desc.Op, right.ResultType().String())
	}
	return &LogicalOperator{and: desc.Op == "&&", leftExpr: left, rightExpr: right}, nil
}

func (l *LogicalOperator) Eval(row []any) (any, error) {
	left, err := l.leftExpr.Eval(row)
	if err != nil {
		return nil, err
	}
	// short circuit
	if left != nil && left.(bool) != l.and { //nolint:forcetypeassert
		return left, nil
	}
	right, err := l.rightExpr.Eval(row)
	if err != nil {
		return nil, err
	}
	if right != nil && right.(bool) != l.and { //nolint:forcetypeassert
		return right, nil
	}
	if left == nil || right == nil {
		return nil, nil
	}
	return l.and, nil
}

func (l *LogicalOperator) ResultType() types.ColumnType {
	return types.ColumnTypeBool
}

type NotOperator struct {
	operand Expression
}

func (n *NotOperator) Eval(row []any) (any, error) {
	v, err := n.operand.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	return !v.(bool), nil //nolint:forcetypeassert
}

func (n *NotOperator) ResultType() types.ColumnType {
	return types.ColumnTypeBool
}

type NegateOperator struct {
	operand Expression
}

func (n *NegateOperator) Eval(row []any) (any, error) {
	v, err := n.operand.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		if x == math.MinInt64 {
			return nil, evalError("integer overflow negating %d", x)
		}
		return -x, nil
	case float64:
		return -x, nil
	case types.Decimal:
		return types.Decimal{Num: x.Num.Negate(), Precision: x.Precision, Scale: x.Scale}, nil
	}
	return nil, evalError("cannot negate %T", v)
}

func (n *NegateOperator) ResultType() types.ColumnType {
	return n.operand.ResultType()
}

func (f *Factory) createBinaryOperator(desc *BinaryOperatorExprDesc, schema *evbatch.EventSchema) (Expression, error) {
	left, err := f.CreateExpression(desc.Left, schema)
	if err != nil {
		return nil, err
	}
	right, err := f.CreateExpression(desc.Right, schema)
	if err != nil {
		return nil, err
	}
	switch desc.Op {
	case "+", "-", "*", "/", "%":
		return NewArithmeticOperator(left, right, desc)
	case "==", "!=", "<", "<=", ">", ">=":
		return NewComparisonOperator(left, right, desc)
	case "&&", "||":
		return NewLogicalOperator(left, right, desc)
	default:
		return nil, desc.ErrorAtPosition("unknown operator '%s'", desc.Op)
	}
}

func (f *Factory) createUnaryOperator(desc *UnaryOperatorExprDesc, schema *evbatch.EventSchema) (Expression, error) {
	operand, err := f.CreateExpression(desc.Operand, schema)
	if err != nil {
		return nil, err
	}
	switch desc.Op {
	case "!":
		if operand.ResultType().ID() != types.ColumnTypeIDBool {
			return nil, desc.ErrorAtPosition("operator '!' operand must be of type bool - it has type '%s'",
				operand.ResultType().String())
		}
		return &NotOperator{operand: operand}, nil
	case "-":
		switch operand.ResultType().ID() {
		case types.ColumnTypeIDInt, types.ColumnTypeIDFloat, types.ColumnTypeIDDecimal:
			return &NegateOperator{operand: operand}, nil
		}
		return nil, desc.ErrorAtPosition("operator '-' has operand with unsupported type '%s'",
			operand.ResultType().String())
	default:
		return nil, desc.ErrorAtPosition("unknown operator '%s'", desc.Op)
	}
}
