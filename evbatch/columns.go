package evbatch

import (
	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/spirit-labs/streamjoin/types"
)

type Column interface {
	IsNull(row int) bool
	Len() int
	// Datum returns nil for NULL.
	Datum(row int) any
	Release()
}

type ColumnBuilder interface {
	AppendNull()
	AppendDatum(d any)
	Len() int
	Build() Column
}

func NewIntColBuilder() *IntColBuilder {
	return &IntColBuilder{builder: array.NewInt64Builder(memory.NewGoAllocator())}
}

type IntColBuilder struct {
	builder *array.Int64Builder
}

func (ib *IntColBuilder) AppendNull() {
	ib.builder.AppendNull()
}

func (ib *IntColBuilder) Append(val int64) {
	ib.builder.Append(val)
}

func (ib *IntColBuilder) AppendDatum(d any) {
	if d == nil {
		ib.builder.AppendNull()
		return
	}
	ib.builder.Append(d.(int64))
}

func (ib *IntColBuilder) Len() int {
	return ib.builder.Len()
}

func (ib *IntColBuilder) Build() Column {
	return &IntColumn{array: ib.builder.NewInt64Array()}
}

type IntColumn struct {
	array *array.Int64
}

func (ic *IntColumn) Get(row int) int64 {
	return ic.array.Value(row)
}

func (ic *IntColumn) Datum(row int) any {
	if ic.array.IsNull(row) {
		return nil
	}
	return ic.array.Value(row)
}

func (ic *IntColumn) IsNull(row int) bool {
	return ic.array.IsNull(row)
}

func (ic *IntColumn) Len() int {
	return ic.array.Len()
}

func (ic *IntColumn) Release() {
	ic.array.Release()
}

func NewFloatColBuilder() *FloatColBuilder {
	return &FloatColBuilder{builder: array.NewFloat64Builder(memory.NewGoAllocator())}
}

type FloatColBuilder struct {
	builder *array.Float64Builder
}

func (fb *FloatColBuilder) AppendNull() {
	fb.builder.AppendNull()
}

func (fb *FloatColBuilder) AppendDatum(d any) {
	if d == nil {
		fb.builder.AppendNull()
		return
	}
	fb.builder.Append(d.(float64))
}

func (fb *FloatColBuilder) Len() int {
	return fb.builder.Len()
}

func (fb *FloatColBuilder) Build() Column {
	return &FloatColumn{array: fb.builder.NewFloat64Array()}
}

type FloatColumn struct {
	array *array.Float64
}

func (fc *FloatColumn) Datum(row int) any {
	if fc.array.IsNull(row) {
		return nil
	}
	return fc.array.Value(row)
}

func (fc *FloatColumn) IsNull(row int) bool {
	return fc.array.IsNull(row)
}

func (fc *FloatColumn) Len() int {
	return fc.array.Len()
}

func (fc *FloatColumn) Release() {
	fc.array.Release()
}

func NewBoolColBuilder() *BoolColBuilder {
	return &BoolColBuilder{builder: array.NewBooleanBuilder(memory.NewGoAllocator())}
}

type BoolColBuilder struct {
	builder *array.BooleanBuilder
}

func (bb *BoolColBuilder) AppendNull() {
	bb.builder.AppendNull()
}

func (bb *BoolColBuilder) AppendDatum(d any) {
	if d == nil {
		bb.builder.AppendNull()
		return
	}
	bb.builder.Append(d.(bool))
}

func (bb *BoolColBuilder) Len() int {
	return bb.builder.Len()
}

func (bb *BoolColBuilder) Build() Column {
	return &BoolColumn{array: bb.builder.NewBooleanArray()}
}

type BoolColumn struct {
	array *array.Boolean
}

func (bc *BoolColumn) Datum(row int) any {
	if bc.array.IsNull(row) {
		return nil
	}
	return bc.array.Value(row)
}

func (bc *BoolColumn) IsNull(row int) bool {
	return bc.array.IsNull(row)
}

func (bc *BoolColumn) Len() int {
	return bc.array.Len()
}

func (bc *BoolColumn) Release() {
	bc.array.Release()
}

func NewDecimalColBuilder(decimalType *types.DecimalType) *DecimalColBuilder {
	dt := &arrow.Decimal128Type{
		Precision: int32(decimalType.Precision),
		Scale:     int32(decimalType.Scale),
	}
	return &DecimalColBuilder{
		builder:     array.NewDecimal128Builder(memory.NewGoAllocator(), dt),
		decimalType: decimalType,
	}
}

type DecimalColBuilder struct {
	builder     *array.Decimal128Builder
	decimalType *types.DecimalType
}

func (db *DecimalColBuilder) AppendNull() {
	db.builder.AppendNull()
}

func (db *DecimalColBuilder) AppendDatum(d any) {
	if d == nil {
		db.builder.AppendNull()
		return
	}
	db.builder.Append(d.(types.Decimal).Num)
}

func (db *DecimalColBuilder) Len() int {
	return db.builder.Len()
}

func (db *DecimalColBuilder) Build() Column {
	return &DecimalColumn{
		array:     db.builder.NewDecimal128Array(),
		precision: db.decimalType.Precision,
		scale:     db.decimalType.Scale,
	}
}

type DecimalColumn struct {
	array     *array.Decimal128
	precision int
	scale     int
}

func (dc *DecimalColumn) Datum(row int) any {
	if dc.array.IsNull(row) {
		return nil
	}
	return types.Decimal{Num: dc.array.Value(row), Precision: dc.precision, Scale: dc.scale}
}

func (dc *DecimalColumn) IsNull(row int) bool {
	return dc.array.IsNull(row)
}

func (dc *DecimalColumn) Len() int {
	return dc.array.Len()
}

func (dc *DecimalColumn) Release() {
	dc.array.Release()
}

func NewStringColBuilder() *StringColBuilder {
	return &StringColBuilder{builder: array.NewStringBuilder(memory.NewGoAllocator())}
}

type StringColBuilder struct {
	builder *array.StringBuilder
}

func (sb *StringColBuilder) AppendNull() {
	sb.builder.AppendNull()
}

func (sb *StringColBuilder) AppendDatum(d any) {
	if d == nil {
		sb.builder.AppendNull()
		return
	}
	sb.builder.Append(d.(string))
}

func (sb *StringColBuilder) Len() int {
	return sb.builder.Len()
}

func (sb *StringColBuilder) Build() Column {
	return &StringColumn{array: sb.builder.NewStringArray()}
}

type StringColumn struct {
	array *array.String
}

func (sc *StringColumn) Datum(row int) any {
	if sc.array.IsNull(row) {
		return nil
	}
	// Copy, rows are retained in join state after the batch is released.
	return string([]byte(sc.array.Value(row)))
}

func (sc *StringColumn) IsNull(row int) bool {
	return sc.array.IsNull(row)
}

func (sc *StringColumn) Len() int {
	return sc.array.Len()
}

func (sc *StringColumn) Release() {
	sc.array.Release()
}

func NewBytesColBuilder() *BytesColBuilder {
	return &BytesColBuilder{builder: array.NewBinaryBuilder(memory.NewGoAllocator(), arrow.BinaryTypes.Binary)}
}

type BytesColBuilder struct {
	builder *array.BinaryBuilder
}

func (bb *BytesColBuilder) AppendNull() {
	bb.builder.AppendNull()
}

func (bb *BytesColBuilder) AppendDatum(d any) {
	if d == nil {
		bb.builder.AppendNull()
		return
	}
	bb.builder.Append(d.([]byte))
}

func (bb *BytesColBuilder) Len() int {
	return bb.builder.Len()
}

func (bb *BytesColBuilder) Build() Column {
	return &BytesColumn{array: bb.builder.NewBinaryArray()}
}

type BytesColumn struct {
	array *array.Binary
}

func (bc *BytesColumn) Datum(row int) any {
	if bc.array.IsNull(row) {
		return nil
	}
	v := bc.array.Value(row)
	res := make([]byte, len(v))
	copy(res, v)
	return res
}

func (bc *BytesColumn) IsNull(row int) bool {
	return bc.array.IsNull(row)
}

func (bc *BytesColumn) Len() int {
	return bc.array.Len()
}

func (bc *BytesColumn) Release() {
	bc.array.Release()
}

func NewTimestampColBuilder() *TimestampColBuilder {
	dt := &arrow.TimestampType{Unit: arrow.Millisecond}
	return &TimestampColBuilder{builder: array.NewTimestampBuilder(memory.NewGoAllocator(), dt)}
}

type TimestampColBuilder struct {
	builder *array.TimestampBuilder
}

func (tb *TimestampColBuilder) AppendNull() {
	tb.builder.AppendNull()
}

func (tb *TimestampColBuilder) AppendDatum(d any) {
	if d == nil {
		tb.builder.AppendNull()
		return
	}
	tb.builder.Append(arrow.Timestamp(d.(types.Timestamp).Val))
}

func (tb *TimestampColBuilder) Len() int {
	return tb.builder.Len()
}

func (tb *TimestampColBuilder) Build() Column {
	return &TimestampColumn{array: tb.builder.NewTimestampArray()}
}

type TimestampColumn struct {
	array *array.Timestamp
}

func (tc *TimestampColumn) Datum(row int) any {
	if tc.array.IsNull(row) {
		return nil
	}
	return types.NewTimestamp(int64(tc.array.Value(row)))
}

func (tc *TimestampColumn) IsNull(row int) bool {
	return tc.array.IsNull(row)
}

func (tc *TimestampColumn) Len() int {
	return tc.array.Len()
}

func (tc *TimestampColumn) Release() {
	tc.array.Release()
}
