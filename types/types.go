package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type ColumnTypeID int

type Timestamp struct {
	Val int64
}

func NewTimestamp(val int64) Timestamp {
	return Timestamp{Val: val}
}

const (
	ColumnTypeIDInt ColumnTypeID = iota + 1
	ColumnTypeIDFloat
	ColumnTypeIDBool
	ColumnTypeIDDecimal
	ColumnTypeIDString
	ColumnTypeIDBytes
	ColumnTypeIDTimestamp
)

var ColumnTypeInt = &nonParameterizedType{id: ColumnTypeIDInt}
var ColumnTypeFloat = &nonParameterizedType{id: ColumnTypeIDFloat}
var ColumnTypeBool = &nonParameterizedType{id: ColumnTypeIDBool}
var ColumnTypeString = &nonParameterizedType{id: ColumnTypeIDString}
var ColumnTypeBytes = &nonParameterizedType{id: ColumnTypeIDBytes}
var ColumnTypeTimestamp = &nonParameterizedType{id: ColumnTypeIDTimestamp}

type ColumnType interface {
	ID() ColumnTypeID
	String() string
}

type nonParameterizedType struct {
	id ColumnTypeID
}

func (n *nonParameterizedType) ID() ColumnTypeID {
	return n.id
}

func (n *nonParameterizedType) String() string {
	switch n.id {
	case ColumnTypeIDInt:
		return "int"
	case ColumnTypeIDFloat:
		return "float"
	case ColumnTypeIDBool:
		return "bool"
	case ColumnTypeIDString:
		return "string"
	case ColumnTypeIDBytes:
		return "bytes"
	case ColumnTypeIDTimestamp:
		return "timestamp"
	default:
		panic("unexpected type")
	}
}

type DecimalType struct {
	Precision int
	Scale     int
}

func (d *DecimalType) ID() ColumnTypeID {
	return ColumnTypeIDDecimal
}

func (d *DecimalType) String() string {
	return fmt.Sprintf("decimal(%d,%d)", d.Precision, d.Scale)
}

func StringToColumnType(sColumnType string) (ColumnType, error) {
	switch strings.TrimSpace(sColumnType) {
	case "int":
		return ColumnTypeInt, nil
	case "float":
		return ColumnTypeFloat, nil
	case "bool":
		return ColumnTypeBool, nil
	case "string":
		return ColumnTypeString, nil
	case "bytes":
		return ColumnTypeBytes, nil
	case "timestamp":
		return ColumnTypeTimestamp, nil
	}
	if strings.HasPrefix(sColumnType, "decimal(") && strings.HasSuffix(sColumnType, ")") {
		return parseDecimalType(sColumnType)
	}
	return nil, errors.Errorf("invalid type '%s'", sColumnType)
}

func parseDecimalType(s string) (ColumnType, error) {
	args := strings.Split(s[len("decimal("):len(s)-1], ",")
	if len(args) != 2 {
		return nil, errors.Errorf("invalid decimal type: %s", s)
	}
	prec, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return nil, errors.Errorf("invalid decimal precision, not a valid integer %s", args[0])
	}
	if prec < 1 || prec > 38 {
		return nil, errors.Errorf("invalid decimal precision, must be >= 1 and <= 38 %s", s)
	}
	scale, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return nil, errors.Errorf("invalid decimal scale, not a valid integer %s", args[1])
	}
	if scale < 0 || scale > prec {
		return nil, errors.Errorf("invalid decimal scale, must be >= 0 and <= precision %s", s)
	}
	return &DecimalType{Precision: prec, Scale: scale}, nil
}

func ColumnTypesToString(columnTypes []ColumnType) string {
	var sb strings.Builder
	for i, ct := range columnTypes {
		sb.WriteString(ct.String())
		if i != len(columnTypes)-1 {
			sb.WriteString(",")
		}
	}
	return sb.String()
}

func ColumnTypesEqual(ct1 ColumnType, ct2 ColumnType) bool {
	if ct1.ID() != ct2.ID() {
		return false
	}
	d1, ok1 := ct1.(*DecimalType)
	d2, ok2 := ct2.(*DecimalType)
	if !ok1 && !ok2 {
		return true
	}
	if !ok1 || !ok2 {
		return false
	}
	return d1.Scale == d2.Scale && d1.Precision == d2.Precision
}

func AddressOf[T any](x T) *T {
	return &x
}
