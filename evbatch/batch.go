package evbatch

import (
	"fmt"

	"github.com/spirit-labs/streamjoin/types"
)

// Batch is a columnar set of rows sharing a schema.
type Batch struct {
	Schema   *EventSchema
	Columns  []Column
	RowCount int
}

func NewBatch(schema *EventSchema, columns ...Column) *Batch {
	rc := 0
	for i, col := range columns {
		cl := col.Len()
		if i > 0 && cl != rc {
			panic(fmt.Sprintf("column %s not same length (%d) as others (%d)", schema.ColumnNames()[i], cl, rc))
		}
		rc = cl
	}
	return &Batch{
		Schema:   schema,
		Columns:  columns,
		RowCount: rc,
	}
}

func NewBatchFromBuilders(schema *EventSchema, builders ...ColumnBuilder) *Batch {
	cols := make([]Column, len(builders))
	for i, colBuilder := range builders {
		cols[i] = colBuilder.Build()
	}
	return NewBatch(schema, cols...)
}

func NewBatchFromRows(schema *EventSchema, rows [][]any) *Batch {
	builders := CreateColBuilders(schema.ColumnTypes())
	for _, row := range rows {
		for i, d := range row {
			builders[i].AppendDatum(d)
		}
	}
	return NewBatchFromBuilders(schema, builders...)
}

// Row materializes the row at rowIndex as a slice of datums.
func (b *Batch) Row(rowIndex int) []any {
	row := make([]any, len(b.Columns))
	for i, col := range b.Columns {
		row[i] = col.Datum(rowIndex)
	}
	return row
}

func (b *Batch) Release() {
	for _, col := range b.Columns {
		col.Release()
	}
}

func CreateColBuilders(columnTypes []types.ColumnType) []ColumnBuilder {
	colBuilders := make([]ColumnBuilder, len(columnTypes))
	for i, colType := range columnTypes {
		switch colType.ID() {
		case types.ColumnTypeIDInt:
			colBuilders[i] = NewIntColBuilder()
		case types.ColumnTypeIDFloat:
			colBuilders[i] = NewFloatColBuilder()
		case types.ColumnTypeIDBool:
			colBuilders[i] = NewBoolColBuilder()
		case types.ColumnTypeIDDecimal:
			colBuilders[i] = NewDecimalColBuilder(colType.(*types.DecimalType))
		case types.ColumnTypeIDString:
			colBuilders[i] = NewStringColBuilder()
		case types.ColumnTypeIDBytes:
			colBuilders[i] = NewBytesColBuilder()
		case types.ColumnTypeIDTimestamp:
			colBuilders[i] = NewTimestampColBuilder()
		default:
			panic(fmt.Sprintf("unexpected column type %s", colType))
		}
	}
	return colBuilders
}
