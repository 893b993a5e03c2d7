package types

import (
	"github.com/apache/arrow/go/v11/arrow/decimal128"
	"github.com/pkg/errors"
)

const (
	DefaultDecimalPrecision = 38
	DefaultDecimalScale     = 6
)

type Decimal struct {
	Num       decimal128.Num
	Precision int
	Scale     int
}

func NewDecimalFromString(val string, precision int, scale int) (Decimal, error) {
	decNum, err := decimal128.FromString(val, int32(precision), int32(scale))
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Num: decNum, Precision: precision, Scale: scale}, nil
}

// align returns both numbers rescaled to the larger of the two scales.
func (d *Decimal) align(d2 *Decimal) (decimal128.Num, decimal128.Num, int) {
	if d.Scale == d2.Scale {
		return d.Num, d2.Num, d.Scale
	}
	if d.Scale > d2.Scale {
		return d.Num, d2.Num.IncreaseScaleBy(int32(d.Scale - d2.Scale)), d.Scale
	}
	return d.Num.IncreaseScaleBy(int32(d2.Scale - d.Scale)), d2.Num, d2.Scale
}

func (d *Decimal) Compare(d2 *Decimal) int {
	n1, n2, _ := d.align(d2)
	if n1.Less(n2) {
		return -1
	}
	if n1.Greater(n2) {
		return 1
	}
	return 0
}

func (d *Decimal) Add(d2 *Decimal) (Decimal, error) {
	n1, n2, scale := d.align(d2)
	return fitDecimal(n1.Add(n2), maxInt(d.Precision, d2.Precision), scale)
}

func (d *Decimal) Subtract(d2 *Decimal) (Decimal, error) {
	n1, n2, scale := d.align(d2)
	return fitDecimal(n1.Sub(n2), maxInt(d.Precision, d2.Precision), scale)
}

func (d *Decimal) Multiply(d2 *Decimal) (Decimal, error) {
	return fitDecimal(d.Num.Mul(d2.Num), maxInt(d.Precision, d2.Precision), d.Scale+d2.Scale)
}

func (d *Decimal) ToFloat64() float64 {
	return d.Num.ToFloat64(int32(d.Scale))
}

func (d *Decimal) String() string {
	return d.Num.ToString(int32(d.Scale))
}

func fitDecimal(n decimal128.Num, prec int, scale int) (Decimal, error) {
	if !n.FitsInPrecision(int32(prec)) {
		return Decimal{}, errors.Errorf("result of decimal arithmetic does not fit in precision %d", prec)
	}
	return Decimal{Num: n, Precision: prec, Scale: scale}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
