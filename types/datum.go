package types

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A datum is one of int64, float64, bool, Decimal, string, []byte, Timestamp, or nil for NULL.

// CompareDatums orders two non-null datums of the same column type.
func CompareDatums(a any, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		if av < bv {
			return -1
		} else if av > bv {
			return 1
		}
		return 0
	case float64:
		bv := b.(float64)
		if av < bv {
			return -1
		} else if av > bv {
			return 1
		}
		return 0
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case Decimal:
		bv := b.(Decimal)
		return av.Compare(&bv)
	case string:
		return strings.Compare(av, b.(string))
	case []byte:
		return bytes.Compare(av, b.([]byte))
	case Timestamp:
		bv := b.(Timestamp)
		if av.Val < bv.Val {
			return -1
		} else if av.Val > bv.Val {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("unexpected datum type %T", a))
	}
}

// DatumsEqual treats two NULLs as equal.
func DatumsEqual(a any, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return CompareDatums(a, b) == 0
}

func RowsEqual(r1 []any, r2 []any) bool {
	if len(r1) != len(r2) {
		return false
	}
	for i := range r1 {
		if !DatumsEqual(r1[i], r2[i]) {
			return false
		}
	}
	return true
}

// DatumToString renders NULL as "."
func DatumToString(d any) string {
	switch v := d.(type) {
	case nil:
		return "."
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case Decimal:
		return v.String()
	case string:
		return v
	case []byte:
		return string(v)
	case Timestamp:
		return strconv.FormatInt(v.Val, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseDatum is the inverse of DatumToString for a known column type.
func ParseDatum(s string, columnType ColumnType) (any, error) {
	if s == "." {
		return nil, nil
	}
	switch columnType.ID() {
	case ColumnTypeIDInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid int '%s'", s)
		}
		return v, nil
	case ColumnTypeIDFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Errorf("invalid float '%s'", s)
		}
		return v, nil
	case ColumnTypeIDBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Errorf("invalid bool '%s'", s)
		}
		return v, nil
	case ColumnTypeIDDecimal:
		dt := columnType.(*DecimalType)
		return NewDecimalFromString(s, dt.Precision, dt.Scale)
	case ColumnTypeIDString:
		return s, nil
	case ColumnTypeIDBytes:
		return []byte(s), nil
	case ColumnTypeIDTimestamp:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid timestamp '%s'", s)
		}
		return NewTimestamp(v), nil
	default:
		return nil, errors.Errorf("unexpected column type %s", columnType)
	}
}

// DatumSize is an estimate of the heap footprint of a datum, used for cache accounting.
func DatumSize(d any) int {
	switch v := d.(type) {
	case nil:
		return 1
	case int64, float64, Timestamp:
		return 8
	case bool:
		return 1
	case Decimal:
		return 32
	case string:
		return 16 + len(v)
	case []byte:
		return 24 + len(v)
	default:
		return 16
	}
}
