package evbatch

import (
	"testing"

	"github.com/spirit-labs/streamjoin/types"
	"github.com/stretchr/testify/require"
)

func TestBatchFromRows(t *testing.T) {
	decType := &types.DecimalType{Precision: 10, Scale: 2}
	schema := NewEventSchema(
		[]string{"i", "f", "b", "d", "s", "by", "ts"},
		[]types.ColumnType{types.ColumnTypeInt, types.ColumnTypeFloat, types.ColumnTypeBool, decType,
			types.ColumnTypeString, types.ColumnTypeBytes, types.ColumnTypeTimestamp})
	dec, err := types.NewDecimalFromString("12.34", 10, 2)
	require.NoError(t, err)
	small, err := types.NewDecimalFromString("7", 10, 2)
	require.NoError(t, err)
	rows := [][]any{
		{int64(1), 1.5, true, dec, "foo", []byte("bar"), types.NewTimestamp(1000)},
		{nil, nil, nil, nil, nil, nil, nil},
		{int64(-3), -0.25, false, small, "", []byte{}, types.NewTimestamp(0)},
	}
	batch := NewBatchFromRows(schema, rows)
	require.Equal(t, 3, batch.RowCount)
	for i, row := range rows {
		require.True(t, types.RowsEqual(row, batch.Row(i)), "row %d", i)
	}
	require.True(t, batch.Columns[0].IsNull(1))
	require.Equal(t, int64(-3), batch.Columns[0].(*IntColumn).Get(2))
	batch.Release()
}

func TestBatchMismatchedColumnsPanics(t *testing.T) {
	schema := NewEventSchema([]string{"a", "b"}, []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeInt})
	b1 := NewIntColBuilder()
	b1.Append(1)
	b2 := NewIntColBuilder()
	require.Panics(t, func() {
		NewBatchFromBuilders(schema, b1, b2)
	})
}

func TestEmptyBatch(t *testing.T) {
	schema := NewEventSchema([]string{"a"}, []types.ColumnType{types.ColumnTypeString})
	batch := NewBatchFromRows(schema, nil)
	require.Equal(t, 0, batch.RowCount)
}

func TestSchemaConcatAndProject(t *testing.T) {
	left := NewEventSchema([]string{"k", "v"}, []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString})
	right := NewEventSchema([]string{"k2"}, []types.ColumnType{types.ColumnTypeFloat})
	joined := left.Concat(right)
	require.Equal(t, []string{"k", "v", "k2"}, joined.ColumnNames())
	require.Equal(t, "k: int, v: string, k2: float", joined.String())
	projected := joined.Project([]int{2, 0})
	require.Equal(t, []string{"k2", "k"}, projected.ColumnNames())
	require.Equal(t, 1, joined.ColumnIndex("v"))
	require.Equal(t, -1, joined.ColumnIndex("x"))
}
