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

// Package socks5 implements the SOCKS5 client wire protocol (RFC 1928 and
// the RFC 1929 username/password sub-negotiation) as a sans-I/O connection
// state machine. The engine never touches a socket: the caller owns the
// transport and drives [Conn] with Send, DataToSend and ReceiveData.
package socks5

import (
	"encoding/binary"
	"errors"

	"github.com/outline-sdk/socks-core/socks"
	"github.com/outline-sdk/socks-core/socksaddr"
)

// Method is a SOCKS5 authentication method identifier, as specified in
// https://datatracker.ietf.org/doc/html/rfc1928#section-3.
type Method byte

// Recognized authentication methods. GSSAPI is recognized only as an
// identifier; this module implements no GSSAPI sub-protocol.
const (
	MethodNoAuthRequired     Method = 0x00
	MethodGSSAPI             Method = 0x01
	MethodUsernamePassword   Method = 0x02
	MethodNoAcceptableMethod Method = 0xFF
)

func (m Method) String() string {
	switch m {
	case MethodNoAuthRequired:
		return "no authentication required"
	case MethodGSSAPI:
		return "GSSAPI"
	case MethodUsernamePassword:
		return "username/password"
	case MethodNoAcceptableMethod:
		return "no acceptable methods"
	default:
		return "unrecognized method"
	}
}

// Command is a SOCKS5 request command, as specified in
// https://datatracker.ietf.org/doc/html/rfc1928#section-4.
type Command byte

const (
	CmdConnect      Command = 0x01
	CmdBind         Command = 0x02
	CmdUDPAssociate Command = 0x03
)

// ATyp is the SOCKS5 address-type discriminator, as specified in
// https://datatracker.ietf.org/doc/html/rfc1928#section-5.
type ATyp byte

const (
	ATypIPv4   ATyp = 0x01
	ATypDomain ATyp = 0x03
	ATypIPv6   ATyp = 0x04
)

// atypFromKind is the canonical, single-direction conversion between the
// address codec's Kind and this package's ATyp; the reverse conversion
// (kindFromATyp, below) also lives here so neither package needs to import
// the other's address/ATYP type back, avoiding the circular reference the
// specification warns about.
func atypFromKind(kind socksaddr.Kind) (ATyp, error) {
	switch kind {
	case socksaddr.IPv4:
		return ATypIPv4, nil
	case socksaddr.IPv6:
		return ATypIPv6, nil
	case socksaddr.Domain:
		return ATypDomain, nil
	default:
		return 0, socks.NewProtocolMisuseError("unrecognized address kind")
	}
}

func kindFromATyp(atyp ATyp) (socksaddr.Kind, error) {
	switch atyp {
	case ATypIPv4:
		return socksaddr.IPv4, nil
	case ATypIPv6:
		return socksaddr.IPv6, nil
	case ATypDomain:
		return socksaddr.Domain, nil
	default:
		return 0, socks.NewProtocolError("unrecognized address type")
	}
}

// ReplyCode is the status byte of a SOCKS5 command reply, as specified in
// https://datatracker.ietf.org/doc/html/rfc1928#section-6.
type ReplyCode byte

const (
	Succeeded                     ReplyCode = 0x00
	GeneralServerFailure          ReplyCode = 0x01
	ConnectionNotAllowedByRuleset ReplyCode = 0x02
	NetworkUnreachable            ReplyCode = 0x03
	HostUnreachable               ReplyCode = 0x04
	ConnectionRefused             ReplyCode = 0x05
	TTLExpired                    ReplyCode = 0x06
	CommandNotSupported           ReplyCode = 0x07
	AddressTypeNotSupported       ReplyCode = 0x08
)

func (c ReplyCode) String() string {
	switch c {
	case Succeeded:
		return "succeeded"
	case GeneralServerFailure:
		return "general SOCKS server failure"
	case ConnectionNotAllowedByRuleset:
		return "connection not allowed by ruleset"
	case NetworkUnreachable:
		return "network unreachable"
	case HostUnreachable:
		return "host unreachable"
	case ConnectionRefused:
		return "connection refused"
	case TTLExpired:
		return "TTL expired"
	case CommandNotSupported:
		return "command not supported"
	case AddressTypeNotSupported:
		return "address type not supported"
	default:
		return "unrecognized reply code"
	}
}

// Request is the closed set of messages a caller may pass to [Conn.Send].
// It is a marker interface rather than an exported method set so that the
// exhaustive switch in Conn.Send is the only place that needs to know its
// members — the Go analogue of the specification's tagged union.
type Request interface {
	isRequest()
}

// MethodsRequest is the opening method-negotiation request.
type MethodsRequest struct {
	Methods []Method
}

func (MethodsRequest) isRequest() {}

// Bytes serializes the request. Methods must have length 1..255; Conn.Send
// enforces this before calling Bytes.
func (r MethodsRequest) Bytes() []byte {
	b := make([]byte, 0, 2+len(r.Methods))
	b = append(b, 0x05, byte(len(r.Methods)))
	for _, m := range r.Methods {
		b = append(b, byte(m))
	}
	return b
}

// MethodsReply is the server's chosen authentication method.
type MethodsReply struct {
	Method Method
}

// UserPassRequest is the RFC 1929 username/password sub-negotiation request.
type UserPassRequest struct {
	Username []byte
	Password []byte
}

func (UserPassRequest) isRequest() {}

// Bytes serializes the request. Username and Password must each have
// length 1..255; Conn.Send enforces this before calling Bytes.
func (r UserPassRequest) Bytes() []byte {
	b := make([]byte, 0, 3+len(r.Username)+len(r.Password))
	b = append(b, 0x01, byte(len(r.Username)))
	b = append(b, r.Username...)
	b = append(b, byte(len(r.Password)))
	b = append(b, r.Password...)
	return b
}

// UserPassReply is the server's authentication result.
type UserPassReply struct {
	Success bool
}

// CommandRequest is a CONNECT, BIND, or UDP ASSOCIATE request.
type CommandRequest struct {
	Command Command
	Atyp    ATyp
	Addr    []byte
	Port    uint16
}

func (CommandRequest) isRequest() {}

// NewCommandRequest builds a CommandRequest from a host string, encoding it
// with [socksaddr.Encode].
func NewCommandRequest(cmd Command, host string, port uint16) (CommandRequest, error) {
	kind, encoded := socksaddr.Encode(host)
	atyp, err := atypFromKind(kind)
	if err != nil {
		return CommandRequest{}, err
	}
	return CommandRequest{Command: cmd, Atyp: atyp, Addr: encoded, Port: port}, nil
}

// FromHostPort splits a "host:port" string first, then calls NewCommandRequest.
func FromHostPort(cmd Command, hostPort string) (CommandRequest, error) {
	host, port, err := socksaddr.SplitHostPort(hostPort)
	if err != nil {
		return CommandRequest{}, err
	}
	return NewCommandRequest(cmd, host, port)
}

// Bytes serializes the request. Invariants: IPv4 addr is exactly 4 bytes,
// IPv6 is exactly 16 bytes, DOMAIN is 1..255 bytes. Bytes does not check
// them, and the constructors above do not check the domain length;
// Conn.Send validates all three before calling Bytes.
func (r CommandRequest) Bytes() []byte {
	b := make([]byte, 0, 7+len(r.Addr))
	b = append(b, 0x05, byte(r.Command), 0x00, byte(r.Atyp))
	if r.Atyp == ATypDomain {
		b = append(b, byte(len(r.Addr)))
	}
	b = append(b, r.Addr...)
	b = binary.BigEndian.AppendUint16(b, r.Port)
	return b
}

// CommandReply is a parsed response to a CommandRequest.
type CommandReply struct {
	ReplyCode ReplyCode
	Atyp      ATyp
	Addr      string
	Port      uint16
}

// ErrIncomplete signals that the bytes given to Conn.ReceiveData so far are
// a valid prefix of a message but not yet a complete one. It is distinct
// from [*socks.ProtocolError]: the caller should supply more bytes and call
// ReceiveData again, not close the connection.
var ErrIncomplete = errors.New("socks5: incomplete message, need more bytes")

// parseMethodsReply, parseUserPassReply and parseCommandReply implement the
// framing step the specification's design notes call for:
// rather than assuming each ReceiveData call carries exactly one complete
// message, every message type peels itself off a growable inbound buffer,
// reporting ErrIncomplete when it needs more bytes.

func parseMethodsReply(buf []byte) (MethodsReply, int, error) {
	if len(buf) < 2 {
		return MethodsReply{}, 0, ErrIncomplete
	}
	if buf[0] != 0x05 {
		return MethodsReply{}, 0, socks.NewProtocolError("malformed method-negotiation reply: expected version 0x05")
	}
	method := Method(buf[1])
	switch method {
	case MethodNoAuthRequired, MethodGSSAPI, MethodUsernamePassword, MethodNoAcceptableMethod:
	default:
		return MethodsReply{}, 0, socks.NewProtocolError("unrecognized method in method-negotiation reply")
	}
	return MethodsReply{Method: method}, 2, nil
}

func parseUserPassReply(buf []byte) (UserPassReply, int, error) {
	if len(buf) < 2 {
		return UserPassReply{}, 0, ErrIncomplete
	}
	if buf[0] != 0x01 {
		return UserPassReply{}, 0, socks.NewProtocolError("malformed username/password reply: expected version 0x01")
	}
	return UserPassReply{Success: buf[1] == 0x00}, 2, nil
}

func parseCommandReply(buf []byte) (CommandReply, int, error) {
	if len(buf) < 4 {
		return CommandReply{}, 0, ErrIncomplete
	}
	if buf[0] != 0x05 {
		return CommandReply{}, 0, socks.NewProtocolError("malformed command reply: expected version 0x05")
	}
	atyp := ATyp(buf[3])

	var addrLen, headerLen int
	switch atyp {
	case ATypIPv4:
		addrLen, headerLen = 4, 4
	case ATypIPv6:
		addrLen, headerLen = 16, 4
	case ATypDomain:
		if len(buf) < 5 {
			return CommandReply{}, 0, ErrIncomplete
		}
		addrLen, headerLen = int(buf[4]), 5
	default:
		return CommandReply{}, 0, socks.NewProtocolError("unrecognized address type in command reply")
	}

	total := headerLen + addrLen + 2
	if len(buf) < total {
		return CommandReply{}, 0, ErrIncomplete
	}

	kind, err := kindFromATyp(atyp)
	if err != nil {
		return CommandReply{}, 0, err
	}
	addr, err := socksaddr.Decode(kind, buf[headerLen:headerLen+addrLen])
	if err != nil {
		return CommandReply{}, 0, socks.NewProtocolError("malformed command reply address: " + err.Error())
	}

	code := ReplyCode(buf[1])
	switch code {
	case Succeeded, GeneralServerFailure, ConnectionNotAllowedByRuleset, NetworkUnreachable,
		HostUnreachable, ConnectionRefused, TTLExpired, CommandNotSupported, AddressTypeNotSupported:
	default:
		return CommandReply{}, 0, socks.NewProtocolError("unrecognized command reply code")
	}

	port := binary.BigEndian.Uint16(buf[total-2 : total])
	return CommandReply{ReplyCode: code, Atyp: atyp, Addr: addr, Port: port}, total, nil
}

// Datagram is the UDP associate payload envelope, reserved by the
// specification but not required to be functional.
type Datagram struct {
	Atyp         ATyp
	Addr         []byte
	Port         uint16
	Data         []byte
	Fragment     byte
	LastFragment bool
}

// Marshal always fails: the UDP associate datagram codec is out of scope
// for this client-side core.
func (Datagram) Marshal() ([]byte, error) { return nil, socks.ErrNotImplemented }

// Unmarshal always fails, for the same reason as Marshal.
func (*Datagram) Unmarshal([]byte) error { return socks.ErrNotImplemented }
