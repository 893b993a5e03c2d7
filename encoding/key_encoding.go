package encoding

import (
	"fmt"
	"math"

	"github.com/spirit-labs/streamjoin/common"
	"github.com/spirit-labs/streamjoin/types"
)

const (
	SignBitMask  uint64 = 1 << 63
	encGroupSize        = 8
	encMarker    byte   = 255

	KeyNullMarker    byte = 0
	KeyNotNullMarker byte = 1
)

var stringKeyEncodingPads = make([]byte, encGroupSize)

// KeyEncodeDatums appends a memcomparable encoding of the datums. Each datum is preceded by a null marker so
// NULL sorts before every value and the encoding of a tuple never prefixes the encoding of a different tuple
// of the same types.
func KeyEncodeDatums(buffer []byte, datums []any, columnTypes []types.ColumnType) []byte {
	for i, d := range datums {
		buffer = KeyEncodeDatum(buffer, d, columnTypes[i])
	}
	return buffer
}

func KeyEncodeDatum(buffer []byte, d any, columnType types.ColumnType) []byte {
	if d == nil {
		return append(buffer, KeyNullMarker)
	}
	buffer = append(buffer, KeyNotNullMarker)
	switch columnType.ID() {
	case types.ColumnTypeIDInt:
		return KeyEncodeInt(buffer, d.(int64))
	case types.ColumnTypeIDFloat:
		return KeyEncodeFloat(buffer, d.(float64))
	case types.ColumnTypeIDBool:
		return AppendBoolToBuffer(buffer, d.(bool))
	case types.ColumnTypeIDDecimal:
		return KeyEncodeDecimal(buffer, d.(types.Decimal))
	case types.ColumnTypeIDString:
		return KeyEncodeString(buffer, d.(string))
	case types.ColumnTypeIDBytes:
		return KeyEncodeBytes(buffer, d.([]byte))
	case types.ColumnTypeIDTimestamp:
		return KeyEncodeInt(buffer, d.(types.Timestamp).Val)
	default:
		panic(fmt.Sprintf("unexpected column type %s", columnType))
	}
}

func KeyEncodeInt(buffer []byte, val int64) []byte {
	return AppendUint64ToBufferBE(buffer, uint64(val)^SignBitMask)
}

func KeyEncodeFloat(buffer []byte, val float64) []byte {
	uVal := math.Float64bits(val)
	if val >= 0 {
		uVal |= SignBitMask
	} else {
		uVal = ^uVal
	}
	return AppendUint64ToBufferBE(buffer, uVal)
}

func KeyEncodeDecimal(buffer []byte, val types.Decimal) []byte {
	buffer = KeyEncodeInt(buffer, val.Num.HighBits())
	return AppendUint64ToBufferBE(buffer, val.Num.LowBits())
}

func KeyEncodeBytes(buffer []byte, val []byte) []byte {
	return KeyEncodeString(buffer, common.ByteSliceToStringZeroCopy(val))
}

/*
KeyEncodeString splits the value into groups of 8 bytes. Each group is followed by a marker byte of 255 minus
the number of pad bytes in that group, the final group is right padded with zeros. A full final group is
followed by an empty group so the encoding is self-delimiting.
*/
func KeyEncodeString(buff []byte, val string) []byte {
	data := common.StringToByteSliceZeroCopy(val)
	dLen := len(data)
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			buff = append(buff, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			buff = append(buff, data[idx:]...)
			buff = append(buff, stringKeyEncodingPads[:padCount]...)
		}
		buff = append(buff, encMarker-byte(padCount))
	}
	return buff
}
