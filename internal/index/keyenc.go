package index

import (
	"encoding/binary"
	"math"
)

// EncodeI64Key encodes a signed 64-bit integer into an order-preserving
// 8-byte big-endian key: flipping the sign bit turns two's-complement
// ordering into the unsigned ordering big-endian bytes already preserve.
func EncodeI64Key(i int64) []byte {
	u := uint64(i) ^ (1 << 63)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	return buf
}

// DecodeI64Key reverses EncodeI64Key.
func DecodeI64Key(buf []byte) int64 {
	u := binary.BigEndian.Uint64(buf) ^ (1 << 63)
	return int64(u)
}

// EncodeF64Key encodes a float64 into an order-preserving 8-byte
// big-endian key: non-negative values get their sign bit set (pushing
// them above every negative encoding), negative values are bitwise
// inverted (reversing their naturally-descending bit pattern).
func EncodeF64Key(f float64) []byte {
	bits := math.Float64bits(f)
	if math.Signbit(f) {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// DecodeF64Key reverses EncodeF64Key.
func DecodeF64Key(buf []byte) float64 {
	bits := binary.BigEndian.Uint64(buf)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}
