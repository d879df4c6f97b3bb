// Copyright 2023 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package socksaddr converts between host strings and the address forms the
// SOCKS wire protocols use: 4-byte IPv4, 16-byte IPv6, and length-implicit
// domain-name byte strings. It is shared by [socks4] and [socks5], neither
// of which performs any network I/O of its own.
package socksaddr

import (
	"net"
	"net/netip"

	"github.com/outline-sdk/socks-core/socks"
)

// Kind identifies which of the three address forms a SOCKS message carries.
type Kind byte

const (
	// IPv4 is a 4-byte encoded IPv4 address.
	IPv4 Kind = iota
	// IPv6 is a 16-byte encoded IPv6 address.
	IPv6
	// Domain is a UTF-8 domain name, 1 to 255 bytes, with no length prefix
	// or terminator of its own (framing is the caller's responsibility).
	Domain
)

func (k Kind) String() string {
	switch k {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	case Domain:
		return "domain name"
	default:
		return "unknown address kind"
	}
}

// Encode determines the form of s and returns its SOCKS wire-format bytes.
// Any IP literal written with a colon is IPv6 (including IPv4-mapped forms
// such as "::ffff:127.0.0.1", which stay 16 bytes); otherwise a dotted IPv4
// literal is IPv4; anything else is treated as a domain name, so an IPv4
// literal is never misclassified as a domain name. Encode never fails: the
// domain-name fallback always succeeds.
func Encode(s string) (Kind, []byte) {
	if ip := net.ParseIP(s); ip != nil {
		if indexByte(s, ':') >= 0 {
			return IPv6, ip.To16()
		}
		return IPv4, ip.To4()
	}
	return Domain, []byte(s)
}

// Decode renders the wire-format bytes of the given kind back to a host
// string. IPv4 and IPv6 use standard, canonical (compressed) presentation
// form; Domain decodes the bytes as UTF-8.
func Decode(kind Kind, b []byte) (string, error) {
	switch kind {
	case IPv4:
		if len(b) != 4 {
			return "", socks.NewProtocolError("IPv4 address must be 4 bytes")
		}
		return netip.AddrFrom4([4]byte(b)).String(), nil
	case IPv6:
		if len(b) != 16 {
			return "", socks.NewProtocolError("IPv6 address must be 16 bytes")
		}
		return netip.AddrFrom16([16]byte(b)).String(), nil
	case Domain:
		return string(b), nil
	default:
		return "", socks.NewProtocolError("unrecognized address kind")
	}
}

// SplitHostPort splits s into a host and a port number, accepting either a
// bracketed IPv6 form "[<ipv6>]:<port>" or a "host:port" form for everything
// else. The non-bracketed form is split on the first colon, not the last
// one — net.SplitHostPort splits on the last colon and so is not reused
// here, since that would silently misparse any non-bracketed host string
// that itself contains a colon.
func SplitHostPort(s string) (host string, port uint16, err error) {
	if len(s) > 0 && s[0] == '[' {
		if h, p, ok := splitBracketedIPv6(s); ok {
			portNum, perr := parsePort(p)
			if perr != nil {
				return "", 0, perr
			}
			return h, portNum, nil
		}
		return "", 0, socks.NewProtocolError("invalid bracketed address: " + s)
	}

	idx := indexByte(s, ':')
	if idx < 0 {
		return "", 0, socks.NewProtocolError("address has no port: " + s)
	}
	host = s[:idx]
	portNum, perr := parsePort(s[idx+1:])
	if perr != nil {
		return "", 0, perr
	}
	return host, portNum, nil
}

// splitBracketedIPv6 matches the documented `^\[(?P<address>[^\]]+)\]:(?P<port>\d+)$` shape.
func splitBracketedIPv6(s string) (host, port string, ok bool) {
	close := indexByte(s, ']')
	if close < 0 || close == 1 {
		return "", "", false
	}
	rest := s[close+1:]
	if len(rest) < 2 || rest[0] != ':' {
		return "", "", false
	}
	digits := rest[1:]
	if digits == "" {
		return "", "", false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", "", false
		}
	}
	return s[1:close], digits, true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func parsePort(s string) (uint16, error) {
	if s == "" {
		return 0, socks.NewProtocolError("empty port")
	}
	var n int
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, socks.NewProtocolError("invalid port: " + s)
		}
		n = n*10 + int(c-'0')
		if n > 65535 {
			return 0, socks.NewProtocolError("port out of range: " + s)
		}
	}
	return uint16(n), nil
}
