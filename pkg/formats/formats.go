// Package formats implements the well-known string formats used by string
// and bytes rules. Each checker is a hand-written scanner rather than a
// regular expression so that hot validation paths stay allocation-light.
package formats

import (
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IPVersion selects which address families an IP checker accepts
type IPVersion int

const (
	AnyIP IPVersion = 0
	IPv4  IPVersion = 4
	IPv6  IPVersion = 6
)

// IsEmail reports whether s is an addr-spec of the form local@host
func IsEmail(s string) bool {
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if len(local) > 64 || strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	for i := 0; i < len(local); i++ {
		if !isAtext(local[i]) && local[i] != '.' {
			return false
		}
	}
	return IsHostname(domain)
}

func isAtext(c byte) bool {
	if isAlnum(c) {
		return true
	}
	return strings.IndexByte("!#$%&'*+-/=?^_`{|}~", c) >= 0
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// IsHostname reports whether s is an RFC 1123 host name. A single trailing
// dot is accepted.
func IsHostname(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}
	allDigits := true
	for _, label := range strings.Split(s, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		allDigits = true
		for i := 0; i < len(label); i++ {
			c := label[i]
			if !isAlnum(c) && c != '-' {
				return false
			}
			if c < '0' || c > '9' {
				allDigits = false
			}
		}
	}
	// The top-level label may not be purely numeric.
	return !allDigits
}

// IsIP reports whether s is an IP address of the requested version
func IsIP(s string, version IPVersion) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return matchesVersion(addr, version)
}

func matchesVersion(addr netip.Addr, version IPVersion) bool {
	switch version {
	case IPv4:
		return addr.Is4()
	case IPv6:
		return addr.Is6()
	default:
		return true
	}
}

// IsIPWithPrefixLen reports whether s is an address with a prefix length,
// host bits allowed, e.g. 192.168.1.5/24
func IsIPWithPrefixLen(s string, version IPVersion) bool {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return false
	}
	return matchesVersion(prefix.Addr(), version)
}

// IsIPPrefix reports whether s is a network prefix. When strict, host bits
// must be zero, e.g. 192.168.1.0/24
func IsIPPrefix(s string, version IPVersion, strict bool) bool {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return false
	}
	if !matchesVersion(prefix.Addr(), version) {
		return false
	}
	return !strict || prefix.Masked() == prefix
}

// IsIPBytes reports whether b is a raw 4 or 16 byte address of the version
func IsIPBytes(b []byte, version IPVersion) bool {
	switch version {
	case IPv4:
		return len(b) == net.IPv4len
	case IPv6:
		return len(b) == net.IPv6len
	default:
		return len(b) == net.IPv4len || len(b) == net.IPv6len
	}
}

// IsAddress reports whether s is a host name or an IP address
func IsAddress(s string) bool {
	return IsHostname(s) || IsIP(s, AnyIP)
}

// IsURI reports whether s is an absolute URI
func IsURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != ""
}

// IsURIRef reports whether s is a URI or a relative reference
func IsURIRef(s string) bool {
	_, err := url.Parse(s)
	return err == nil
}

// IsHostAndPort reports whether s is host:port where host is a host name,
// IPv4 address, or bracketed IPv6 address. The port may be omitted unless
// portRequired is set.
func IsHostAndPort(s string, portRequired bool) bool {
	if s == "" {
		return false
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		if portRequired {
			return false
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			return IsIP(s[1:len(s)-1], IPv6)
		}
		return IsHostname(s) || IsIP(s, IPv4)
	}
	if !isPort(port) {
		return false
	}
	if strings.HasPrefix(s, "[") {
		return IsIP(host, IPv6)
	}
	return IsHostname(host) || IsIP(host, IPv4)
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	return err == nil && n <= 65535
}

// IsUUID reports whether s is a hyphenated RFC 4122 UUID
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsTUUID reports whether s is a trimmed UUID: 32 hex digits, no hyphens
func IsTUUID(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsHTTPHeaderName reports whether s is a valid header name. In strict mode
// only RFC 7230 token characters (and a leading ':' for pseudo headers) are
// allowed; otherwise only NUL, CR and LF are rejected.
func IsHTTPHeaderName(s string, strict bool) bool {
	if s == "" {
		return false
	}
	if !strict {
		return !strings.ContainsAny(s, "\x00\r\n")
	}
	if s[0] == ':' {
		s = s[1:]
		if s == "" {
			return false
		}
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	return isAlnum(c) || strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}

// IsHTTPHeaderValue reports whether s is a valid header value. In strict
// mode control characters other than horizontal tab are rejected; otherwise
// only NUL, CR and LF are.
func IsHTTPHeaderValue(s string, strict bool) bool {
	if !strict {
		return !strings.ContainsAny(s, "\x00\r\n")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return false
		}
	}
	return true
}
