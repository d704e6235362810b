// Package cidr turns CIDR and address strings into a family tag plus a
// bitkey.BitKey, and back.
package cidr

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/henderiw/cidrtrie/pkg/bitkey"
	"go4.org/netipx"
)

// ErrParse is matched by every error returned for malformed input.
var ErrParse = errors.New("parse error")

type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid cidr %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

func parseError(input, format string, args ...any) error {
	return &ParseError{Input: input, Reason: fmt.Sprintf(format, args...)}
}

type Family uint8

const (
	IPv4 Family = iota + 1
	IPv6
)

// Bits returns the address length of the family.
func (f Family) Bits() uint8 {
	switch f {
	case IPv4:
		return 32
	case IPv6:
		return 128
	}
	return 0
}

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	}
	return "unknown"
}

// Prefix is a parsed network: the family and the network bits. Host bits
// are never part of the key.
type Prefix struct {
	Family Family
	Key    bitkey.BitKey
}

// Parse parses "addr/len" or a bare address, which stands for the full
// length prefix (/32 or /128). The family is taken from the syntax: any
// ':' means IPv6, so IPv4-mapped IPv6 addresses stay IPv6. Host bits
// beyond the prefix length are cleared.
func Parse(s string) (Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Prefix{}, parseError(s, "empty input")
	}
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return Prefix{}, parseError(s, "%v", err)
		}
		return ParsePrefix(p)
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Prefix{}, parseError(s, "%v", err)
	}
	return FromAddr(a)
}

// MustParse is Parse that panics on error, for tests and literals.
func MustParse(s string) Prefix {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePrefix converts a netip.Prefix.
func ParsePrefix(p netip.Prefix) (Prefix, error) {
	if !p.IsValid() {
		return Prefix{}, parseError(p.String(), "invalid prefix")
	}
	p = p.Masked()
	family := IPv4
	if p.Addr().Is6() {
		family = IPv6
	}
	key, err := bitkey.FromBytes(p.Addr().AsSlice(), uint8(p.Bits()))
	if err != nil {
		return Prefix{}, parseError(p.String(), "%v", err)
	}
	return Prefix{Family: family, Key: key}, nil
}

// FromAddr returns the full length prefix of a.
func FromAddr(a netip.Addr) (Prefix, error) {
	if !a.IsValid() {
		return Prefix{}, parseError(a.String(), "invalid address")
	}
	if a.Zone() != "" {
		return Prefix{}, parseError(a.String(), "zoned addresses are not supported")
	}
	return ParsePrefix(netip.PrefixFrom(a, a.BitLen()))
}

// ParseRange parses "from-to" and returns the minimal list of prefixes
// covering the range, in address order.
func ParseRange(s string) ([]Prefix, error) {
	r, err := netipx.ParseIPRange(strings.TrimSpace(s))
	if err != nil {
		return nil, parseError(s, "%v", err)
	}
	var errs error
	prefixes := make([]Prefix, 0, 1)
	for _, p := range r.Prefixes() {
		prefix, err := ParsePrefix(p)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, errs
}

// Bits returns the prefix length.
func (p Prefix) Bits() uint8 { return p.Key.Length() }

// IsValid reports whether p came out of a successful parse.
func (p Prefix) IsValid() bool { return p.Family.Bits() != 0 }

// Addr returns the network address.
func (p Prefix) Addr() netip.Addr {
	b := p.Key.Bytes16()
	if p.Family == IPv4 {
		return netip.AddrFrom4([4]byte(b[:4]))
	}
	return netip.AddrFrom16(b)
}

func (p Prefix) NetipPrefix() netip.Prefix {
	return netip.PrefixFrom(p.Addr(), int(p.Key.Length()))
}

// Range returns the addresses covered by p.
func (p Prefix) Range() netipx.IPRange {
	return netipx.RangeOfPrefix(p.NetipPrefix())
}

// HostKey returns the full length key of the network address, the key
// of the first address inside p.
func (p Prefix) HostKey() bitkey.BitKey {
	return p.Key.Pad(p.Family.Bits())
}

func (p Prefix) String() string {
	if !p.IsValid() {
		return "invalid Prefix"
	}
	return p.NetipPrefix().String()
}
