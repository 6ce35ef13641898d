// Package sizing provides safe size arithmetic, conversions that prevent
// overflow, and decoding of variable-width integer fields.
package sizing

import (
	"math"
	"math/bits"
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// UintBE zero-extends a big-endian field of 0 to 8 bytes into a uint64.
// It panics if b is longer than 8 bytes.
func UintBE(b []byte) uint64 {
	if len(b) > 8 {
		panic("sizing: integer field wider than 8 bytes")
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// UintLE zero-extends a little-endian field of 0 to 8 bytes into a uint64.
// It panics if b is longer than 8 bytes.
func UintLE(b []byte) uint64 {
	if len(b) > 8 {
		panic("sizing: integer field wider than 8 bytes")
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// ByteWidth returns the minimal number of bytes, at least 1, able to
// represent v.
func ByteWidth(v uint32) int {
	return max(1, 4-bits.LeadingZeros32(v)/8)
}
