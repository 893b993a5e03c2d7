package join

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/spirit-labs/streamjoin/encoding"
	"github.com/spirit-labs/streamjoin/types"
)

// JoinKey is the projected join key of a row. Encoded is the memcomparable encoding of Datums, which carries a
// null marker per component, so two keys encode equally iff they are equal with NULL == NULL.
type JoinKey struct {
	Datums  []any
	Encoded string
	Nulls   *bitset.BitSet
	// matchable is false when some NULL component sits at a position that is not null-safe.
	matchable bool
}

// HasNonNullSafeNull reports whether the key can never match anything, including itself.
func (k JoinKey) HasNonNullSafeNull() bool {
	return !k.matchable
}

type HashKeyEncoder struct {
	keyIndices []int
	keyTypes   []types.ColumnType
	nullSafe   *bitset.BitSet
}

func NewHashKeyEncoder(keyIndices []int, columnTypes []types.ColumnType, nullSafe []bool) *HashKeyEncoder {
	keyTypes := make([]types.ColumnType, len(keyIndices))
	for i, index := range keyIndices {
		keyTypes[i] = columnTypes[index]
	}
	ns := bitset.New(uint(len(keyIndices)))
	for i, safe := range nullSafe {
		if safe {
			ns.Set(uint(i))
		}
	}
	return &HashKeyEncoder{keyIndices: keyIndices, keyTypes: keyTypes, nullSafe: ns}
}

func (h *HashKeyEncoder) KeyTypes() []types.ColumnType {
	return h.keyTypes
}

func (h *HashKeyEncoder) Encode(row []any) JoinKey {
	datums := make([]any, len(h.keyIndices))
	nulls := bitset.New(uint(len(h.keyIndices)))
	for i, index := range h.keyIndices {
		datums[i] = row[index]
		if row[index] == nil {
			nulls.Set(uint(i))
		}
	}
	encoded := encoding.KeyEncodeDatums(make([]byte, 0, 16*len(datums)), datums, h.keyTypes)
	return JoinKey{
		Datums:    datums,
		Encoded:   string(encoded),
		Nulls:     nulls,
		matchable: h.nullSafe.IsSuperSet(nulls),
	}
}
