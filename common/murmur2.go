package common

/*
Murmur2 as implemented by the Kafka default partitioner, adapted from https://github.com/movio/go-kafka
(MIT License, Copyright (c) 2016 Movio) which was in turn adapted from https://github.com/aviddiviner/go-murmur
(MIT License, Copyright (c) 2015 David Irvine).
*/

func Murmur2Hash(data []byte) uint32 {
	const (
		m    = 0x5bd1e995
		r    = 24
		seed = int32(-1756908916)
	)
	h := seed ^ int32(len(data))
	for l := len(data); l >= 4; l -= 4 {
		k := int32(data[0]) | int32(data[1])<<8 | int32(data[2])<<16 | int32(data[3])<<24
		k *= m
		k ^= int32(uint32(k) >> r)
		k *= m
		h *= m
		h ^= k
		data = data[4:]
	}
	switch len(data) {
	case 3:
		h ^= int32(data[2]) << 16
		fallthrough
	case 2:
		h ^= int32(data[1]) << 8
		fallthrough
	case 1:
		h ^= int32(data[0])
		h *= m
	}
	h ^= int32(uint32(h) >> 13)
	h *= m
	h ^= int32(uint32(h) >> 15)
	return uint32(h & 0x7fffffff)
}
