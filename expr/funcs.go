package expr

import (
	"math"

	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/types"
)

var BuiltinFunctions = map[string]struct{}{
	"is_null":     {},
	"is_not_null": {},
	"abs":         {},
	"coalesce":    {},
}

func (f *Factory) createFunction(desc *FunctionExprDesc, schema *evbatch.EventSchema) (Expression, error) {
	args := make([]Expression, len(desc.ArgExprs))
	for i, argDesc := range desc.ArgExprs {
		arg, err := f.CreateExpression(argDesc, schema)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	switch desc.FunctionName {
	case "is_null", "is_not_null":
		if len(args) != 1 {
			return nil, desc.ErrorAtPosition("'%s' requires 1 argument", desc.FunctionName)
		}
		return &IsNullFunction{operand: args[0], not: desc.FunctionName == "is_not_null"}, nil
	case "abs":
		if len(args) != 1 {
			return nil, desc.ErrorAtPosition("'abs' requires 1 argument")
		}
		switch args[0].ResultType().ID() {
		case types.ColumnTypeIDInt, types.ColumnTypeIDFloat, types.ColumnTypeIDDecimal:
			return &AbsFunction{operand: args[0]}, nil
		}
		return nil, desc.ErrorAtPosition("'abs' has argument with unsupported type '%s'", args[0].ResultType().String())
	case "coalesce":
		if len(args) == 0 {
			return nil, desc.ErrorAtPosition("'coalesce' requires at least 1 argument")
		}
		var argType types.ColumnType
		for _, arg := range args {
			if _, isNull := arg.(*NullConstantExpr); !isNull {
				argType = arg.ResultType()
				break
			}
		}
		if argType == nil {
			argType = types.ColumnTypeBool
		}
		for i, arg := range args {
			if n, isNull := arg.(*NullConstantExpr); isNull {
				n.exprType = argType
			} else if arg.ResultType().ID() != argType.ID() {
				return nil, desc.ErrorAtPosition("'coalesce' argument %d has type '%s', expected '%s'", i,
					arg.ResultType().String(), argType.String())
			}
		}
		return &CoalesceFunction{args: args, exprType: argType}, nil
	default:
		return nil, desc.ErrorAtPosition("unknown function '%s'", desc.FunctionName)
	}
}

type IsNullFunction struct {
	operand Expression
	not     bool
}

func (i *IsNullFunction) Eval(row []any) (any, error) {
	v, err := i.operand.Eval(row)
	if err != nil {
		return nil, err
	}
	return (v == nil) != i.not, nil
}

func (i *IsNullFunction) ResultType() types.ColumnType {
	return types.ColumnTypeBool
}

type AbsFunction struct {
	operand Expression
}

func (a *AbsFunction) Eval(row []any) (any, error) {
	v, err := a.operand.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		if x == math.MinInt64 {
			return nil, evalError("integer overflow evaluating abs(%d)", x)
		}
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case float64:
		return math.Abs(x), nil
	case types.Decimal:
		return types.Decimal{Num: x.Num.Abs(), Precision: x.Precision, Scale: x.Scale}, nil
	}
	return nil, evalError("cannot evaluate abs of %T", v)
}

func (a *AbsFunction) ResultType() types.ColumnType {
	return a.operand.ResultType()
}

type CoalesceFunction struct {
	args     []Expression
	exprType types.ColumnType
}

func (c *CoalesceFunction) Eval(row []any) (any, error) {
	for _, arg := range c.args {
		v, err := arg.Eval(row)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

func (c *CoalesceFunction) ResultType() types.ColumnType {
	return c.exprType
}
