package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmail(t *testing.T) {
	valid := []string{"a@example.com", "first.last+tag@sub.example.org", "x@localhost"}
	invalid := []string{"", "@example.com", "a@", "a..b@example.com", ".a@example.com", "a b@example.com", "a@-bad.com", "Name <a@example.com>"}

	for _, s := range valid {
		assert.True(t, IsEmail(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsEmail(s), s)
	}
}

func TestIsHostname(t *testing.T) {
	valid := []string{"example.com", "a-b.c", "localhost", "example.com.", "xn--bcher-kva.example"}
	invalid := []string{"", "-a.com", "a-.com", "a..com", "exa_mple.com", "123.456", "1.2.3.4"}

	for _, s := range valid {
		assert.True(t, IsHostname(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsHostname(s), s)
	}
}

func TestIsIP(t *testing.T) {
	tests := []struct {
		in      string
		version IPVersion
		want    bool
	}{
		{"192.168.0.1", AnyIP, true},
		{"192.168.0.1", IPv4, true},
		{"192.168.0.1", IPv6, false},
		{"::1", IPv6, true},
		{"::1", IPv4, false},
		{"256.0.0.1", AnyIP, false},
		{"not-an-ip", AnyIP, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsIP(tt.in, tt.version), "%s v%d", tt.in, tt.version)
	}
}

func TestIsIPPrefix(t *testing.T) {
	assert.True(t, IsIPPrefix("10.0.0.0/8", IPv4, true))
	assert.False(t, IsIPPrefix("10.0.0.1/8", IPv4, true))
	assert.True(t, IsIPPrefix("10.0.0.1/8", IPv4, false))
	assert.True(t, IsIPPrefix("2001:db8::/32", IPv6, true))
	assert.False(t, IsIPPrefix("2001:db8::/32", IPv4, true))
	assert.True(t, IsIPWithPrefixLen("10.0.0.1/8", AnyIP))
	assert.False(t, IsIPWithPrefixLen("10.0.0.1", AnyIP))
}

func TestIsIPBytes(t *testing.T) {
	assert.True(t, IsIPBytes([]byte{127, 0, 0, 1}, IPv4))
	assert.False(t, IsIPBytes([]byte{127, 0, 0, 1}, IPv6))
	assert.True(t, IsIPBytes(make([]byte, 16), AnyIP))
	assert.False(t, IsIPBytes([]byte{1, 2, 3}, AnyIP))
}

func TestIsURI(t *testing.T) {
	assert.True(t, IsURI("https://example.com/path?q=1"))
	assert.False(t, IsURI("/relative/path"))
	assert.True(t, IsURIRef("/relative/path"))
	assert.False(t, IsURIRef("http://[::1"))
}

func TestIsHostAndPort(t *testing.T) {
	tests := []struct {
		in           string
		portRequired bool
		want         bool
	}{
		{"example.com:8080", true, true},
		{"127.0.0.1:80", true, true},
		{"[::1]:443", true, true},
		{"example.com", true, false},
		{"example.com", false, true},
		{"[::1]", false, true},
		{"example.com:99999", true, false},
		{"example.com:080", true, false},
		{"::1:80", true, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHostAndPort(tt.in, tt.portRequired), tt.in)
	}
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.False(t, IsUUID("6ba7b8109dad11d180b400c04fd430c8"))
	assert.False(t, IsUUID("urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.True(t, IsTUUID("6ba7b8109dad11d180b400c04fd430c8"))
	assert.False(t, IsTUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
}

func TestHTTPHeaders(t *testing.T) {
	assert.True(t, IsHTTPHeaderName("Content-Type", true))
	assert.True(t, IsHTTPHeaderName(":authority", true))
	assert.False(t, IsHTTPHeaderName("Bad Header", true))
	assert.True(t, IsHTTPHeaderName("Bad Header", false))
	assert.False(t, IsHTTPHeaderName("", false))

	assert.True(t, IsHTTPHeaderValue("text/html; charset=utf-8\tx", true))
	assert.False(t, IsHTTPHeaderValue("a\x01b", true))
	assert.True(t, IsHTTPHeaderValue("a\x01b", false))
	assert.False(t, IsHTTPHeaderValue("a\r\nb", false))
}
