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

// Package socks4 implements the SOCKS4 and SOCKS4A client wire protocol and
// a sans-I/O connection state machine. Like [socks5], it never performs
// network I/O: the caller owns the transport and drives the engine with
// [Conn.Send], [Conn.DataToSend] and [Conn.ReceiveData].
package socks4

import (
	"encoding/binary"

	"github.com/outline-sdk/socks-core/socks"
	"github.com/outline-sdk/socks-core/socksaddr"
)

// Command is the SOCKS4 request command.
type Command byte

// SOCKS4 commands.
const (
	CmdConnect Command = 0x01
	CmdBind    Command = 0x02
)

// ReplyCode is the single status byte of a SOCKS4 reply.
type ReplyCode byte

// SOCKS4 reply codes.
const (
	RequestGranted         ReplyCode = 0x5A
	RequestRejectedFailed  ReplyCode = 0x5B
	ConnectionFailed       ReplyCode = 0x5C
	AuthenticationFailed   ReplyCode = 0x5D
)

func (c ReplyCode) String() string {
	switch c {
	case RequestGranted:
		return "request granted"
	case RequestRejectedFailed:
		return "request rejected or failed"
	case ConnectionFailed:
		return "connection failed"
	case AuthenticationFailed:
		return "authentication failed"
	default:
		return "unknown SOCKS4 reply code"
	}
}

// socks4ASentinel is the fixed, non-zero-terminated "invalid" IPv4 address
// SOCKS4A uses to signal that the domain name follows the user ID.
var socks4ASentinel = [4]byte{0x00, 0x00, 0x00, 0xFF}

// Request is a plain SOCKS4 CONNECT/BIND request, carrying an IPv4 address.
type Request struct {
	Command Command
	Port    uint16
	Addr    [4]byte
	UserID  []byte
}

// FromAddress builds a Request from a host and a port (for a "host:port"
// string, see [FromHostPort]), and an optional user ID (nil defers to the
// connection's configured user ID at Send time). It fails if
// the host does not encode as IPv4: plain SOCKS4 requests only ever carry
// an IPv4 address.
func FromAddress(cmd Command, host string, port uint16, userID []byte) (Request, error) {
	kind, encoded := socksaddr.Encode(host)
	if kind != socksaddr.IPv4 {
		return Request{}, socks.NewProtocolMisuseError(
			"SOCKS4 requests only support IPv4 addresses; use socks4.RequestA for domain names")
	}
	var addr [4]byte
	copy(addr[:], encoded)
	return Request{Command: cmd, Port: port, Addr: addr, UserID: userID}, nil
}

// FromHostPort is a convenience over FromAddress that splits a "host:port"
// string with [socksaddr.SplitHostPort] first.
func FromHostPort(cmd Command, hostPort string, userID []byte) (Request, error) {
	host, port, err := socksaddr.SplitHostPort(hostPort)
	if err != nil {
		return Request{}, err
	}
	return FromAddress(cmd, host, port, userID)
}

// Bytes serializes the request. userID overrides r.UserID when non-nil;
// resolving the effective user ID (and failing if none is available) is the
// caller's job — see [Conn.Send].
func (r Request) Bytes(userID []byte) []byte {
	if userID == nil {
		userID = r.UserID
	}
	b := make([]byte, 0, 9+len(userID))
	b = append(b, 0x04, byte(r.Command))
	b = binary.BigEndian.AppendUint16(b, r.Port)
	b = append(b, r.Addr[:]...)
	b = append(b, userID...)
	b = append(b, 0x00)
	return b
}

// RequestA is the SOCKS4A variant of Request, carrying a domain name
// instead of an IPv4 address.
type RequestA struct {
	Command Command
	Port    uint16
	Domain  []byte
	UserID  []byte
}

// FromAddressA builds a RequestA, accepting any address form (the domain
// name is carried verbatim; no family probing is required since SOCKS4A
// always carries a name).
func FromAddressA(cmd Command, host string, port uint16, userID []byte) RequestA {
	return RequestA{Command: cmd, Port: port, Domain: []byte(host), UserID: userID}
}

// FromHostPortA splits a "host:port" string first.
func FromHostPortA(cmd Command, hostPort string, userID []byte) (RequestA, error) {
	host, port, err := socksaddr.SplitHostPort(hostPort)
	if err != nil {
		return RequestA{}, err
	}
	return FromAddressA(cmd, host, port, userID), nil
}

// Bytes serializes the SOCKS4A request. userID overrides r.UserID when
// non-nil. Fails with a [*socks.ProtocolMisuseError] if no user ID is
// available: SOCKS4A, like SOCKS4, requires one.
func (r RequestA) Bytes(userID []byte) ([]byte, error) {
	if userID == nil {
		userID = r.UserID
	}
	if userID == nil {
		return nil, socks.NewProtocolMisuseError("SOCKS4 requires a user ID, none was specified")
	}
	b := make([]byte, 0, 9+len(userID)+len(r.Domain)+1)
	b = append(b, 0x04, byte(r.Command))
	b = binary.BigEndian.AppendUint16(b, r.Port)
	b = append(b, socks4ASentinel[:]...)
	b = append(b, userID...)
	b = append(b, 0x00)
	b = append(b, r.Domain...)
	b = append(b, 0x00)
	return b, nil
}

// Reply is a parsed SOCKS4 reply.
type Reply struct {
	ReplyCode ReplyCode
	Port      uint16
	Addr      string
}

// ParseReply parses an 8-byte SOCKS4 reply. Any deviation from the exact
// 8-byte, 0x00-prefixed shape, or an unrecognized reply code, is a
// [*socks.ProtocolError].
func ParseReply(data []byte) (Reply, error) {
	if len(data) != 8 {
		return Reply{}, socks.NewProtocolError("SOCKS4 reply must be exactly 8 bytes")
	}
	if data[0] != 0x00 {
		return Reply{}, socks.NewProtocolError("malformed SOCKS4 reply: expected 0x00 prefix")
	}
	code := ReplyCode(data[1])
	switch code {
	case RequestGranted, RequestRejectedFailed, ConnectionFailed, AuthenticationFailed:
	default:
		return Reply{}, socks.NewProtocolError("unrecognized SOCKS4 reply code")
	}
	port := binary.BigEndian.Uint16(data[2:4])
	addr, err := socksaddr.Decode(socksaddr.IPv4, data[4:8])
	if err != nil {
		return Reply{}, socks.NewProtocolError("malformed SOCKS4 reply address: " + err.Error())
	}
	return Reply{ReplyCode: code, Port: port, Addr: addr}, nil
}
