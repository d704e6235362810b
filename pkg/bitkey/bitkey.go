// Package bitkey implements BitKey, an immutable sequence of up to 128 bits
// used as the key of the radix tree. Bits are numbered from the most
// significant end, so bit 0 is the first bit of an address.
package bitkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// MaxBits is the capacity of a BitKey.
const MaxBits = 128

// ErrOutOfRange is returned, or panicked with, when a bit index or length
// exceeds the key it is applied to.
var ErrOutOfRange = errors.New("bit index out of range")

// BitKey is a value type: a fixed 128 bit buffer plus the number of leading
// bits that are meaningful. Bits at or beyond length are always zero, which
// makes == a valid equality test.
type BitKey struct {
	u      uint128
	length uint8
}

// New returns the key made of the first length bits of hi:lo.
func New(hi, lo uint64, length uint8) BitKey {
	if length > MaxBits {
		panic(fmt.Errorf("%w: length %d exceeds %d", ErrOutOfRange, length, MaxBits))
	}
	return BitKey{
		u:      uint128{hi, lo}.and(leftMasks[length]),
		length: length,
	}
}

// FromBytes builds a key from a 4 byte (IPv4) or 16 byte (IPv6) big endian
// address, keeping the first length bits.
func FromBytes(b []byte, length uint8) (BitKey, error) {
	switch len(b) {
	case 4:
		if length > 32 {
			return BitKey{}, fmt.Errorf("%w: length %d exceeds 32 bit address", ErrOutOfRange, length)
		}
		return New(uint64(binary.BigEndian.Uint32(b))<<32, 0, length), nil
	case 16:
		if length > MaxBits {
			return BitKey{}, fmt.Errorf("%w: length %d exceeds 128 bit address", ErrOutOfRange, length)
		}
		return New(binary.BigEndian.Uint64(b[:8]), binary.BigEndian.Uint64(b[8:]), length), nil
	}
	return BitKey{}, fmt.Errorf("unsupported address size %d bytes, want 4 or 16", len(b))
}

// ParseBits builds a key from a string of '0' and '1' characters. Any '_'
// or ' ' is ignored so long keys can be grouped.
func ParseBits(s string) (BitKey, error) {
	var u uint128
	var length uint8
	for _, c := range s {
		switch c {
		case '_', ' ':
			continue
		case '0', '1':
		default:
			return BitKey{}, fmt.Errorf("invalid bit %q in %q", c, s)
		}
		if length == MaxBits {
			return BitKey{}, fmt.Errorf("%w: %q is longer than %d bits", ErrOutOfRange, s, MaxBits)
		}
		if c == '1' {
			u = u.or(uint128{hi: 1 << 63}.shiftRight(length))
		}
		length++
	}
	return BitKey{u: u, length: length}, nil
}

// MustParseBits is ParseBits that panics on error.
func MustParseBits(s string) BitKey {
	k, err := ParseBits(s)
	if err != nil {
		panic(err)
	}
	return k
}

func (r BitKey) Length() uint8 {
	return r.length
}

// IsZero reports whether r is the empty key.
func (r BitKey) IsZero() bool {
	return r.length == 0
}

// Bit returns bit i (0 or 1).
func (r BitKey) Bit(i uint8) (uint8, error) {
	if i >= r.length {
		return 0, fmt.Errorf("%w: bit %d of %d bit key", ErrOutOfRange, i, r.length)
	}
	return uint8(r.u.shiftLeft(i).hi >> 63), nil
}

// MustBit is Bit for callers that already checked the index. An out of range
// index is a broken traversal and panics.
func (r BitKey) MustBit(i uint8) uint8 {
	b, err := r.Bit(i)
	if err != nil {
		panic(err)
	}
	return b
}

// IsLeftBitSet returns whether the leftmost bit is set
func (r BitKey) IsLeftBitSet() bool {
	return r.length > 0 && r.u.hi>>63 == 1
}

// SuffixFrom returns the bits from index i to the end. SuffixFrom(Length())
// is the empty key.
func (r BitKey) SuffixFrom(i uint8) BitKey {
	if i > r.length {
		panic(fmt.Errorf("%w: suffix from %d of %d bit key", ErrOutOfRange, i, r.length))
	}
	return BitKey{u: r.u.shiftLeft(i), length: r.length - i}
}

// Truncate returns the first n bits.
func (r BitKey) Truncate(n uint8) BitKey {
	if n > r.length {
		panic(fmt.Errorf("%w: truncate to %d of %d bit key", ErrOutOfRange, n, r.length))
	}
	return BitKey{u: r.u.and(leftMasks[n]), length: n}
}

// Pad returns r extended with zero bits up to n bits.
func (r BitKey) Pad(n uint8) BitKey {
	if n < r.length || n > MaxBits {
		panic(fmt.Errorf("%w: pad %d bit key to %d", ErrOutOfRange, r.length, n))
	}
	return BitKey{u: r.u, length: n}
}

// Concat returns r followed by other.
func (r BitKey) Concat(other BitKey) BitKey {
	if int(r.length)+int(other.length) > MaxBits {
		panic(fmt.Errorf("%w: concat of %d and %d bits", ErrOutOfRange, r.length, other.length))
	}
	return BitKey{
		u:      r.u.or(other.u.shiftRight(r.length)),
		length: r.length + other.length,
	}
}

// CommonPrefixLength returns the number of leading bits r and other share.
func (r BitKey) CommonPrefixLength(other BitKey) uint8 {
	n := min(r.length, other.length)
	if n == 0 {
		return 0
	}
	return min(r.u.xor(other.u).leadingZeros(), n)
}

// Contains reports whether r is a prefix of other, which for network
// prefixes means other lies inside r.
func (r BitKey) Contains(other BitKey) bool {
	return r.length <= other.length && r.CommonPrefixLength(other) == r.length
}

func (r BitKey) Equal(other BitKey) bool {
	return r == other
}

// Compare orders keys by their bits, then by length, so a prefix sorts
// before the longer keys it contains.
func (r BitKey) Compare(other BitKey) int {
	if c := r.u.compare(other.u); c != 0 {
		return c
	}
	switch {
	case r.length < other.length:
		return -1
	case r.length > other.length:
		return 1
	}
	return 0
}

func (r BitKey) Less(other BitKey) bool { return r.Compare(other) == -1 }

// SameBits reports whether r and other carry the same bits, ignoring length.
func (r BitKey) SameBits(other BitKey) bool {
	return r.u == other.u
}

// Bytes16 returns the 128 bit buffer, big endian.
func (r BitKey) Bytes16() [16]byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], r.u.hi)
	binary.BigEndian.PutUint64(b[8:], r.u.lo)
	return b
}

// Bits returns the key as a '0'/'1' string.
func (r BitKey) Bits() string {
	var sb strings.Builder
	sb.Grow(int(r.length))
	for i := uint8(0); i < r.length; i++ {
		sb.WriteByte('0' + r.MustBit(i))
	}
	return sb.String()
}

// String returns a string version of this key.
func (r BitKey) String() string {
	return fmt.Sprintf("%016x%016x/%d", r.u.hi, r.u.lo, r.length)
}
