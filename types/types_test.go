package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringToColumnType(t *testing.T) {
	ct, err := StringToColumnType("int")
	require.NoError(t, err)
	require.Equal(t, ColumnTypeIDInt, ct.ID())

	ct, err = StringToColumnType("decimal(10,2)")
	require.NoError(t, err)
	require.Equal(t, &DecimalType{Precision: 10, Scale: 2}, ct)
	require.Equal(t, "decimal(10,2)", ct.String())

	_, err = StringToColumnType("decimal(10,12)")
	require.Error(t, err)
	_, err = StringToColumnType("varchar")
	require.Error(t, err)
}

func TestCompareDatums(t *testing.T) {
	require.Equal(t, -1, CompareDatums(int64(-3), int64(2)))
	require.Equal(t, 0, CompareDatums("abc", "abc"))
	require.Equal(t, 1, CompareDatums([]byte("b"), []byte("a")))
	require.Equal(t, -1, CompareDatums(false, true))
	require.Equal(t, 1, CompareDatums(NewTimestamp(10), NewTimestamp(9)))

	d1, err := NewDecimalFromString("12", 10, 2)
	require.NoError(t, err)
	d2, err := NewDecimalFromString("12.5", 10, 1)
	require.NoError(t, err)
	require.Equal(t, -1, CompareDatums(d1, d2))
}

func TestDatumsEqualNulls(t *testing.T) {
	require.True(t, DatumsEqual(nil, nil))
	require.False(t, DatumsEqual(nil, int64(1)))
	require.True(t, RowsEqual([]any{int64(1), nil}, []any{int64(1), nil}))
	require.False(t, RowsEqual([]any{int64(1)}, []any{int64(1), nil}))
}

func TestParseDatumRoundTrip(t *testing.T) {
	cases := []struct {
		s  string
		ct ColumnType
	}{
		{"-17", ColumnTypeInt},
		{"2.5", ColumnTypeFloat},
		{"true", ColumnTypeBool},
		{"hello", ColumnTypeString},
		{"1700000000", ColumnTypeTimestamp},
		{".", ColumnTypeInt},
		{"12.34", &DecimalType{Precision: 10, Scale: 2}},
	}
	for _, c := range cases {
		d, err := ParseDatum(c.s, c.ct)
		require.NoError(t, err)
		require.Equal(t, c.s, DatumToString(d))
	}
	_, err := ParseDatum("x", ColumnTypeInt)
	require.Error(t, err)
}

func TestDecimalArithmetic(t *testing.T) {
	d1, err := NewDecimalFromString("1.25", 10, 2)
	require.NoError(t, err)
	d2, err := NewDecimalFromString("2.5", 10, 1)
	require.NoError(t, err)
	sum, err := d1.Add(&d2)
	require.NoError(t, err)
	require.Equal(t, "3.75", sum.String())
	diff, err := d1.Subtract(&d2)
	require.NoError(t, err)
	require.Equal(t, "-1.25", diff.String())
	prod, err := d1.Multiply(&d2)
	require.NoError(t, err)
	require.Equal(t, "3.125", prod.String())

	big1, err := NewDecimalFromString("99", 2, 0)
	require.NoError(t, err)
	_, err = big1.Add(&big1)
	require.Error(t, err)
}
