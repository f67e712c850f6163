package quiz

import (
	"crypto/sha256"
	"encoding/binary"
)

// SeededRNG is a 32-bit linear congruential generator seeded from a string.
// The hash and constants are fixed so a seed string yields the same stream
// everywhere.
type SeededRNG struct {
	state uint32
}

// NewSeededRNG seeds from the first four bytes (big endian) of the SHA-256 of
// seed, using 1 when those bytes are all zero.
func NewSeededRNG(seed string) *SeededRNG {
	sum := sha256.Sum256([]byte(seed))
	state := binary.BigEndian.Uint32(sum[:4])
	if state == 0 {
		state = 1
	}
	return &SeededRNG{state: state}
}

// Next advances the generator and returns a value in [0,1).
func (r *SeededRNG) Next() float64 {
	r.state = r.state*1664525 + 1013904223
	return float64(r.state) / (1 << 32)
}

// Intn returns floor(Next()*n).
func (r *SeededRNG) Intn(n int) int {
	return int(r.Next() * float64(n))
}
