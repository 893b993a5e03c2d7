package join

import (
	"testing"

	"github.com/spirit-labs/streamjoin/types"
	"github.com/stretchr/testify/require"
)

func TestHashKeyEncodesEqualKeysEqually(t *testing.T) {
	leftTypes := []types.ColumnType{types.ColumnTypeString, types.ColumnTypeInt, types.ColumnTypeInt}
	rightTypes := []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString}
	left := NewHashKeyEncoder([]int{0, 2}, leftTypes, nil)
	right := NewHashKeyEncoder([]int{1, 0}, rightTypes, nil)

	lk := left.Encode([]any{"foo", int64(100), int64(7)})
	rk := right.Encode([]any{int64(7), "foo"})
	require.Equal(t, lk.Encoded, rk.Encoded)
	require.Equal(t, []any{"foo", int64(7)}, lk.Datums)
	require.False(t, lk.HasNonNullSafeNull())

	other := right.Encode([]any{int64(8), "foo"})
	require.NotEqual(t, lk.Encoded, other.Encoded)
	require.Equal(t, []types.ColumnType{types.ColumnTypeString, types.ColumnTypeInt}, left.KeyTypes())
}

func TestHashKeyNulls(t *testing.T) {
	colTypes := []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeInt}
	strict := NewHashKeyEncoder([]int{0, 1}, colTypes, nil)
	partlySafe := NewHashKeyEncoder([]int{0, 1}, colTypes, []bool{true, false})
	allSafe := NewHashKeyEncoder([]int{0, 1}, colTypes, []bool{true, true})

	row := []any{nil, int64(1)}
	k := strict.Encode(row)
	require.True(t, k.HasNonNullSafeNull())
	require.True(t, k.Nulls.Test(0))
	require.False(t, k.Nulls.Test(1))
	require.False(t, partlySafe.Encode(row).HasNonNullSafeNull())

	allNull := []any{nil, nil}
	require.True(t, strict.Encode(allNull).HasNonNullSafeNull())
	require.True(t, partlySafe.Encode(allNull).HasNonNullSafeNull())
	require.False(t, allSafe.Encode(allNull).HasNonNullSafeNull())

	// NULL encodes differently to every value, and equal to NULL
	require.NotEqual(t, strict.Encode([]any{int64(0), int64(1)}).Encoded, k.Encoded)
	require.Equal(t, allSafe.Encode(row).Encoded, k.Encoded)
}
