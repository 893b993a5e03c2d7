package common

import "unsafe"

func ByteSliceCopy(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// IncBigEndianBytes returns the smallest key greater than every key prefixed by b.
func IncBigEndianBytes(b []byte) []byte {
	b = ByteSliceCopy(b)
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return b
		}
	}
	panic("cannot increment bytes as it would cause overflow")
}

func ByteSliceToStringZeroCopy(bs []byte) string {
	lbs := len(bs)
	if lbs == 0 {
		return ""
	}
	return unsafe.String(&bs[0], lbs)
}

func StringToByteSliceZeroCopy(str string) []byte {
	if str == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(str), len(str))
}
