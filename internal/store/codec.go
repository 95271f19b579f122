package store

import (
	"encoding/binary"
	"math"
)

// encodeAmount serializes a payment amount as a fixed 8-byte
// big-endian IEEE-754 double — the on-disk value format spec §3/§6
// requires.
func encodeAmount(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

// decodeAmount is the exact inverse of encodeAmount.
func decodeAmount(b []byte) (float64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), true
}
