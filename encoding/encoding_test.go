package encoding

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/spirit-labs/streamjoin/types"
	"github.com/stretchr/testify/require"
)

func TestKeyEncodeIntOrdering(t *testing.T) {
	vals := []int64{math.MinInt64, math.MinInt64 + 1, -1000, -1, 0, 1, 1000, math.MaxInt64 - 1, math.MaxInt64}
	for i := 0; i < len(vals)-1; i++ {
		checkLessThan(t, KeyEncodeInt(nil, vals[i]), KeyEncodeInt(nil, vals[i+1]))
	}
	for _, v := range vals {
		require.Equal(t, 8, len(KeyEncodeInt(nil, v)))
	}
}

func TestKeyEncodeFloatOrdering(t *testing.T) {
	vals := []float64{-math.MaxFloat64, -1e3, -1.1, -0.5, 0.0, 0.5, 1.1, 1e3, math.MaxFloat64}
	for i := 0; i < len(vals)-1; i++ {
		checkLessThan(t, KeyEncodeFloat(nil, vals[i]), KeyEncodeFloat(nil, vals[i+1]))
	}
}

func TestKeyEncodeStringOrdering(t *testing.T) {
	vals := []string{"", "a", "aa", "aaaaaaaa", "aaaaaaaaa", "ab", "b", "zzzzzzzzzzzzzzzzzz"}
	sorted := make([]string, len(vals))
	copy(sorted, vals)
	sort.Strings(sorted)
	require.Equal(t, sorted, vals)
	for i := 0; i < len(vals)-1; i++ {
		checkLessThan(t, KeyEncodeString(nil, vals[i]), KeyEncodeString(nil, vals[i+1]))
	}
	for _, v := range vals {
		// whole groups of 8 bytes plus a marker each, with a group always left for the marker of the end
		require.Equal(t, (len(v)/8+1)*9, len(KeyEncodeString(nil, v)))
	}
}

func TestKeyEncodeDatumsNullsFirst(t *testing.T) {
	colTypes := []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeString}
	k1 := KeyEncodeDatums(nil, []any{nil, "x"}, colTypes)
	k2 := KeyEncodeDatums(nil, []any{int64(math.MinInt64), "x"}, colTypes)
	k3 := KeyEncodeDatums(nil, []any{int64(1), nil}, colTypes)
	k4 := KeyEncodeDatums(nil, []any{int64(1), ""}, colTypes)
	checkLessThan(t, k1, k2)
	checkLessThan(t, k2, k3)
	checkLessThan(t, k3, k4)
}

func TestKeyEncodeDatumsMarksNulls(t *testing.T) {
	decType := &types.DecimalType{Precision: 10, Scale: 2}
	colTypes := []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeFloat, types.ColumnTypeBool,
		decType, types.ColumnTypeString, types.ColumnTypeBytes, types.ColumnTypeTimestamp}
	dec, err := types.NewDecimalFromString("-123.45", 10, 2)
	require.NoError(t, err)
	datums := []any{int64(-7), 2.25, true, dec, "hello world", []byte("bytes"), types.NewTimestamp(1000)}
	buff := KeyEncodeDatums([]byte("prefix"), datums, colTypes)

	var expected []byte
	expected = append(expected, "prefix"...)
	expected = KeyEncodeInt(append(expected, KeyNotNullMarker), -7)
	expected = KeyEncodeFloat(append(expected, KeyNotNullMarker), 2.25)
	expected = AppendBoolToBuffer(append(expected, KeyNotNullMarker), true)
	expected = KeyEncodeDecimal(append(expected, KeyNotNullMarker), dec)
	expected = KeyEncodeString(append(expected, KeyNotNullMarker), "hello world")
	expected = KeyEncodeBytes(append(expected, KeyNotNullMarker), []byte("bytes"))
	expected = KeyEncodeInt(append(expected, KeyNotNullMarker), 1000)
	require.Equal(t, expected, buff)

	withNulls := []any{nil, nil, nil, nil, nil, nil, nil}
	require.Equal(t, bytes.Repeat([]byte{KeyNullMarker}, 7), KeyEncodeDatums(nil, withNulls, colTypes))
}

func TestKeyEncodeDecimalOrdering(t *testing.T) {
	strs := []string{"-1000.01", "-1.5", "0", "0.01", "99.99"}
	var prev []byte
	for _, s := range strs {
		d, err := types.NewDecimalFromString(s, 10, 2)
		require.NoError(t, err)
		enc := KeyEncodeDecimal(nil, d)
		if prev != nil {
			checkLessThan(t, prev, enc)
		}
		prev = enc
	}
}

func TestRowRoundTrip(t *testing.T) {
	decType := &types.DecimalType{Precision: 12, Scale: 3}
	colTypes := []types.ColumnType{types.ColumnTypeInt, types.ColumnTypeFloat, types.ColumnTypeBool,
		decType, types.ColumnTypeString, types.ColumnTypeBytes, types.ColumnTypeTimestamp}
	dec, err := types.NewDecimalFromString("42", 12, 3)
	require.NoError(t, err)
	rows := [][]any{
		{int64(1), 1.5, false, dec, "s", []byte{0, 1}, types.NewTimestamp(-5)},
		{nil, nil, nil, nil, nil, nil, nil},
		{int64(math.MaxInt64), nil, true, nil, "", []byte{}, nil},
	}
	for _, row := range rows {
		buff := EncodeRow(nil, row, colTypes)
		decoded, off := DecodeRow(buff, 0, colTypes)
		require.Equal(t, len(buff), off)
		require.True(t, types.RowsEqual(row, decoded))
	}
}

func TestEncodeVersionOrdering(t *testing.T) {
	key := []byte("key")
	v10 := EncodeVersion(append([]byte{}, key...), 10)
	v11 := EncodeVersion(append([]byte{}, key...), 11)
	checkLessThan(t, v11, v10)
	k, ver := DecodeVersion(v10)
	require.Equal(t, key, k)
	require.Equal(t, uint64(10), ver)
}

func checkLessThan(t *testing.T, b1 []byte, b2 []byte) {
	t.Helper()
	require.Equal(t, -1, bytes.Compare(b1, b2), "%v should be < %v", b1, b2)
}
