// Package ipaddr provides lexical IPv6 validation and normalization,
// link-local detection, broadcast detection, and extraction of a printable
// address from a generic socket-address storage blob.
//
// Every function here is purely lexical: none perform name resolution.
package ipaddr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"syscall"
)

// ErrAddress is returned by GetIPFromStorage when the storage blob's
// address family is neither AF_INET nor AF_INET6 — the AddressError kind
// from spec.md §7.
var ErrAddress = errors.New("ipaddr: unknown address family")

// ErrTruncated is returned by GetIPFromStorage when the storage blob is too
// short to hold the address family it claims to have.
var ErrTruncated = errors.New("ipaddr: storage blob truncated")

// IsIPv6ValidAddress reports whether s is a syntactically valid textual
// IPv6 address, including an optional zone-id suffix ("%iface").
// Implementation is purely lexical; it performs no name resolution.
func IsIPv6ValidAddress(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is6() || addr.Is4In6()
}

// NormalizeAddress canonicalizes an IPv6 string: lowercase hex, the
// longest run of zero groups collapsed into "::", and no leading zeros
// within a group. Non-IPv6 input (including malformed input) is returned
// unchanged.
func NormalizeAddress(s string) string {
	addr, err := netip.ParseAddr(s)
	if err != nil || !(addr.Is6() || addr.Is4In6()) {
		return s
	}
	if addr.Is4In6() {
		// netip would print the low 32 bits as a dotted quad; keep them as
		// hex groups. The five leading zero groups are always the longest
		// zero run, so they collapse to "::".
		b := addr.As16()
		out := fmt.Sprintf("::ffff:%x:%x", uint16(b[12])<<8|uint16(b[13]), uint16(b[14])<<8|uint16(b[15]))
		if zone := addr.Zone(); zone != "" {
			out += "%" + zone
		}
		return out
	}
	// For every other IPv6 address netip.Addr.String() already yields
	// lowercase hex, longest-zero-run collapse, and the zone preserved.
	return addr.String()
}

// IsLinkLocal reports whether s falls within fe80::/10.
func IsLinkLocal(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is6() && addr.IsLinkLocalUnicast()
}

// IsBroadcast reports whether s is an IPv4 broadcast-style address:
// 255.255.255.255, 0.0.0.0, or an address whose final octet is 255.
// IPv6 addresses are never broadcast and always return false.
func IsBroadcast(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return false
	}
	b := addr.As4()
	if addr == netip.IPv4Unspecified() {
		return true
	}
	return b == [4]byte{255, 255, 255, 255} || b[3] == 255
}

// StripZone removes the zone-id suffix from an IPv6 literal, returning the
// bare address and the zone separately. If s has no zone, zone is empty.
// Used by the line package to strip a link-local zone before resolution
// while preserving it for later scope-id-aware binding.
func StripZone(s string) (addr string, zone string) {
	parsed, err := netip.ParseAddr(s)
	if err != nil {
		return s, ""
	}
	zone = parsed.Zone()
	if zone == "" {
		return s, ""
	}
	return parsed.WithZone("").String(), zone
}

// GetIPFromStorage extracts the printable IP address from a generic
// socket-address storage blob (the bytes of a sockaddr_storage / sockaddr
// as delivered by the platform's address-resolution or accept() APIs).
//
// storage must begin with the platform sa_family_t field (2 bytes, native
// endian) as laid out in sockaddr_in/sockaddr_in6. The family is read from
// the blob itself, not taken on faith from the caller, so a storage blob
// carrying a family this package does not recognize fails with ErrAddress
// regardless of what the caller expected to find there.
func GetIPFromStorage(storage []byte) (string, error) {
	if len(storage) < 2 {
		return "", fmt.Errorf("family header: %w", ErrTruncated)
	}
	family := binary.NativeEndian.Uint16(storage[:2])

	switch family {
	case syscall.AF_INET:
		// sockaddr_in: family(2) + port(2) + addr(4) at offset 4.
		const addrOff = 4
		if len(storage) < addrOff+4 {
			return "", fmt.Errorf("ipv4 storage: %w", ErrTruncated)
		}
		addr := netip.AddrFrom4([4]byte(storage[addrOff : addrOff+4]))
		return addr.String(), nil
	case syscall.AF_INET6:
		// sockaddr_in6: family(2) + port(2) + flowinfo(4) + addr(16) at offset 8.
		const addrOff = 8
		if len(storage) < addrOff+16 {
			return "", fmt.Errorf("ipv6 storage: %w", ErrTruncated)
		}
		addr := netip.AddrFrom16([16]byte(storage[addrOff : addrOff+16]))
		return addr.String(), nil
	default:
		return "", fmt.Errorf("family %d: %w", family, ErrAddress)
	}
}
