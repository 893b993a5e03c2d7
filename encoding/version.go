package encoding

import (
	"math"
)

// EncodeVersion appends the version inverted so that, for the same key, higher versions sort first.
func EncodeVersion(key []byte, version uint64) []byte {
	return AppendUint64ToBufferBE(key, math.MaxUint64-version)
}

// DecodeVersion splits a versioned key into the user key and its version.
func DecodeVersion(versionedKey []byte) ([]byte, uint64) {
	l := len(versionedKey) - 8
	inv, _ := ReadUint64FromBufferBE(versionedKey, l)
	return versionedKey[:l], math.MaxUint64 - inv
}
