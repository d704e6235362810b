package bitkey

import "math/bits"

// uint128 holds the key bits, most significant bit first.
type uint128 struct {
	hi uint64
	lo uint64
}

// and returns the bitwise AND of u and m (u&m).
func (u uint128) and(m uint128) uint128 {
	return uint128{u.hi & m.hi, u.lo & m.lo}
}

// xor returns the bitwise XOR of u and m (u^m).
func (u uint128) xor(m uint128) uint128 {
	return uint128{u.hi ^ m.hi, u.lo ^ m.lo}
}

// or returns the bitwise OR of u and m (u|m).
func (u uint128) or(m uint128) uint128 {
	return uint128{u.hi | m.hi, u.lo | m.lo}
}

// shiftLeft returns u << n, n in [0, 128].
func (u uint128) shiftLeft(n uint8) uint128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return uint128{}
	case n >= 64:
		return uint128{u.lo << (n - 64), 0}
	}
	return uint128{u.hi<<n | u.lo>>(64-n), u.lo << n}
}

// shiftRight returns u >> n, n in [0, 128].
func (u uint128) shiftRight(n uint8) uint128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return uint128{}
	case n >= 64:
		return uint128{0, u.hi >> (n - 64)}
	}
	return uint128{u.hi >> n, u.lo>>n | u.hi<<(64-n)}
}

// leadingZeros returns the number of leading zero bits, 128 for zero.
func (u uint128) leadingZeros() uint8 {
	if u.hi != 0 {
		return uint8(bits.LeadingZeros64(u.hi))
	}
	return uint8(64 + bits.LeadingZeros64(u.lo))
}

// compare orders u and m as unsigned integers.
func (u uint128) compare(m uint128) int {
	switch {
	case u.hi < m.hi:
		return -1
	case u.hi > m.hi:
		return 1
	case u.lo < m.lo:
		return -1
	case u.lo > m.lo:
		return 1
	}
	return 0
}

// leftMasks[n] has the n most significant bits set.
var leftMasks [MaxBits + 1]uint128

func init() {
	initBuildLeftMasks()
}

func initBuildLeftMasks() {
	top := uint128{hi: 1 << 63}
	for i := uint8(1); i <= MaxBits; i++ {
		leftMasks[i] = leftMasks[i-1].or(top.shiftRight(i - 1))
	}
}
