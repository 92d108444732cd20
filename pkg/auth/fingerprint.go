package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownOrigin is used when no network origin header is present.
const UnknownOrigin = "unknown"

// Fingerprint coarseness: fixed bit-length prefixes rather than a textual
// octet/group split, so compressed IPv6 forms ("2001:db8::1") land on the
// same prefix as their expanded spelling.
const (
	ipv4PrefixBits = 24
	ipv6PrefixBits = 64
)

// DeriveFingerprint computes a stable, low-cardinality device identifier
// from a network origin and a client signature (typically the user agent).
//
// The origin is reduced to a coarse network prefix (/24 for IPv4, /64 for
// IPv6) so the fingerprint survives minor address churn such as carrier NAT
// reassignment while still partitioning distinct networks. The client
// signature is hashed on its own first, then combined with the prefix and
// hashed again. Identical inputs always produce the identical output, and
// only the final hash is ever persisted; raw origins and signatures are not.
func DeriveFingerprint(networkOrigin, clientSignature string) string {
	sigHash := sha256.Sum256([]byte(clientSignature))
	combined := coarsePrefix(networkOrigin) + "|" + hex.EncodeToString(sigHash[:])
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// RequestFingerprint derives the fingerprint of the device behind an
// incoming request.
func RequestFingerprint(r *http.Request) string {
	return DeriveFingerprint(RequestOrigin(r), r.UserAgent())
}

// RequestOrigin extracts the network origin of a request: the first value of
// the X-Forwarded-For chain, then X-Real-IP, then "unknown". The chain is
// fixed so fingerprints stay stable across proxy layers.
func RequestOrigin(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return UnknownOrigin
}

// coarsePrefix masks an IP origin to its canonical coarse prefix. Origins
// that do not parse as IP addresses are used verbatim.
func coarsePrefix(origin string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(origin))
	if err != nil {
		return origin
	}
	addr = addr.Unmap()
	bits := ipv6PrefixBits
	if addr.Is4() {
		bits = ipv4PrefixBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return origin
	}
	return prefix.String()
}
