package encoding

import (
	"fmt"

	"github.com/spirit-labs/streamjoin/types"
)

// EncodeRow appends a value encoding of the row. Unlike the key encoding this is not order preserving.
func EncodeRow(buffer []byte, row []any, columnTypes []types.ColumnType) []byte {
	for i, colType := range columnTypes {
		d := row[i]
		if d == nil {
			buffer = append(buffer, 0)
			continue
		}
		buffer = append(buffer, 1)
		switch colType.ID() {
		case types.ColumnTypeIDInt:
			buffer = AppendUint64ToBufferLE(buffer, uint64(d.(int64)))
		case types.ColumnTypeIDFloat:
			buffer = AppendFloat64ToBufferLE(buffer, d.(float64))
		case types.ColumnTypeIDBool:
			buffer = AppendBoolToBuffer(buffer, d.(bool))
		case types.ColumnTypeIDDecimal:
			buffer = AppendDecimalToBuffer(buffer, d.(types.Decimal))
		case types.ColumnTypeIDString:
			buffer = AppendStringToBufferLE(buffer, d.(string))
		case types.ColumnTypeIDBytes:
			buffer = AppendBytesToBufferLE(buffer, d.([]byte))
		case types.ColumnTypeIDTimestamp:
			buffer = AppendUint64ToBufferLE(buffer, uint64(d.(types.Timestamp).Val))
		default:
			panic(fmt.Sprintf("unexpected column type %s", colType))
		}
	}
	return buffer
}

func DecodeRow(buffer []byte, offset int, columnTypes []types.ColumnType) ([]any, int) {
	row := make([]any, len(columnTypes))
	for i, colType := range columnTypes {
		isNull := buffer[offset] == 0
		offset++
		if isNull {
			continue
		}
		switch colType.ID() {
		case types.ColumnTypeIDInt:
			var u uint64
			u, offset = ReadUint64FromBufferLE(buffer, offset)
			row[i] = int64(u)
		case types.ColumnTypeIDFloat:
			row[i], offset = ReadFloat64FromBufferLE(buffer, offset)
		case types.ColumnTypeIDBool:
			row[i], offset = ReadBoolFromBuffer(buffer, offset)
		case types.ColumnTypeIDDecimal:
			decType := colType.(*types.DecimalType)
			var dec types.Decimal
			dec, offset = ReadDecimalFromBuffer(buffer, offset)
			dec.Precision = decType.Precision
			dec.Scale = decType.Scale
			row[i] = dec
		case types.ColumnTypeIDString:
			row[i], offset = ReadStringFromBufferLE(buffer, offset)
		case types.ColumnTypeIDBytes:
			row[i], offset = ReadBytesFromBufferLE(buffer, offset)
		case types.ColumnTypeIDTimestamp:
			var u uint64
			u, offset = ReadUint64FromBufferLE(buffer, offset)
			row[i] = types.NewTimestamp(int64(u))
		default:
			panic(fmt.Sprintf("unexpected column type %s", colType))
		}
	}
	return row, offset
}
