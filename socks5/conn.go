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

package socks5

import "github.com/outline-sdk/socks-core/socks"

// State is one of the seven labels the SOCKS5 connection state machine can
// be in. Its numeric ordering is chosen so that "at least authenticated"
// guards can be written as a plain integer comparison: both
// ClientWaitingForUsernamePassword and ServerVerifyUsernamePassword sort
// below ClientAuthenticated, and TunnelReady/MustClose (terminal states)
// sort above it.
type State byte

const (
	ClientAuthRequired State = iota + 1
	ServerAuthReply
	ClientWaitingForUsernamePassword
	ServerVerifyUsernamePassword
	ClientAuthenticated
	TunnelReady
	MustClose
)

func (s State) String() string {
	switch s {
	case ClientAuthRequired:
		return "CLIENT_AUTH_REQUIRED"
	case ServerAuthReply:
		return "SERVER_AUTH_REPLY"
	case ClientWaitingForUsernamePassword:
		return "CLIENT_WAITING_FOR_USERNAME_PASSWORD"
	case ServerVerifyUsernamePassword:
		return "SERVER_VERIFY_USERNAME_PASSWORD"
	case ClientAuthenticated:
		return "CLIENT_AUTHENTICATED"
	case TunnelReady:
		return "TUNNEL_READY"
	case MustClose:
		return "MUST_CLOSE"
	default:
		return "UNKNOWN_STATE"
	}
}

// Conn is a SOCKS5 client connection. It holds no socket: the caller feeds
// it bytes received from the transport via ReceiveData, and drains bytes to
// transmit via DataToSend after each Send. Conn is not safe for concurrent
// use; callers sharing one across goroutines must synchronize externally.
type Conn struct {
	state State
	bufs  socks.Buffers
}

// NewConn creates a SOCKS5 connection in the initial ClientAuthRequired state.
func NewConn() *Conn {
	return &Conn{state: ClientAuthRequired}
}

// State returns the connection's current state.
func (c *Conn) State() State {
	return c.state
}

// Send serializes req, appends it to the outbound buffer, and advances the
// state machine. The transition happens before Send returns, so a
// subsequent Send's guard observes the new state. Sending a
// [UserPassRequest] outside [ClientWaitingForUsernamePassword], or a
// [CommandRequest] before [ClientAuthenticated], fails with a
// [*socks.ProtocolMisuseError] and leaves the state unchanged.
func (c *Conn) Send(req Request) error {
	switch r := req.(type) {
	case MethodsRequest:
		if len(r.Methods) == 0 || len(r.Methods) > 255 {
			return socks.NewProtocolMisuseError("method-negotiation request must carry 1 to 255 methods")
		}
		c.bufs.AppendOut(r.Bytes())
		c.state = ServerAuthReply
		return nil

	case UserPassRequest:
		if c.state != ClientWaitingForUsernamePassword {
			return socks.NewProtocolMisuseError(
				"username/password request sent while not waiting for one; current state: " + c.state.String())
		}
		if len(r.Username) == 0 || len(r.Username) > 255 {
			return socks.NewProtocolMisuseError("username must be 1 to 255 bytes")
		}
		if len(r.Password) == 0 || len(r.Password) > 255 {
			return socks.NewProtocolMisuseError("password must be 1 to 255 bytes")
		}
		c.bufs.AppendOut(r.Bytes())
		c.state = ServerVerifyUsernamePassword
		return nil

	case CommandRequest:
		if c.state < ClientAuthenticated {
			return socks.NewProtocolMisuseError(
				"command request sent before authentication completed; current state: " + c.state.String())
		}
		if err := validateCommandRequest(r); err != nil {
			return err
		}
		c.bufs.AppendOut(r.Bytes())
		return nil

	default:
		return socks.NewProtocolMisuseError("unsupported SOCKS5 request type")
	}
}

func validateCommandRequest(r CommandRequest) error {
	switch r.Atyp {
	case ATypIPv4:
		if len(r.Addr) != 4 {
			return socks.NewProtocolMisuseError("IPv4 address must be 4 bytes")
		}
	case ATypIPv6:
		if len(r.Addr) != 16 {
			return socks.NewProtocolMisuseError("IPv6 address must be 16 bytes")
		}
	case ATypDomain:
		if len(r.Addr) == 0 || len(r.Addr) > 255 {
			return socks.NewProtocolMisuseError("domain name must be 1 to 255 bytes")
		}
	default:
		return socks.NewProtocolMisuseError("unrecognized address type")
	}
	return nil
}

// ReceiveData appends data to the inbound buffer and tries to parse the
// message expected in the current state. It returns one of [MethodsReply],
// [UserPassReply], or [CommandReply] depending on state, advancing the
// state machine exactly as the transition table in the specification
// describes. ReceiveData called in a state that expects no message (the
// terminal states, or ClientWaitingForUsernamePassword, which is waiting on
// a Send, not a receive) fails with a [*socks.ProtocolMisuseError].
//
// If the bytes accumulated so far are a valid but incomplete prefix of the
// expected message, ReceiveData returns [ErrIncomplete] and leaves the
// state unchanged; the caller should supply more bytes and call
// ReceiveData again.
func (c *Conn) ReceiveData(data []byte) (any, error) {
	buffered := c.bufs.AppendIn(data)

	switch c.state {
	case ServerAuthReply:
		reply, n, err := parseMethodsReply(buffered)
		if err != nil {
			return nil, err
		}
		c.bufs.ConsumeIn(n)
		switch reply.Method {
		case MethodNoAuthRequired:
			c.state = ClientAuthenticated
		case MethodUsernamePassword:
			c.state = ClientWaitingForUsernamePassword
		default:
			// NO_ACCEPTABLE_METHODS or GSSAPI (unrecognized values are
			// rejected by parseMethodsReply): remain in SERVER_AUTH_REPLY,
			// the caller should close.
		}
		return reply, nil

	case ServerVerifyUsernamePassword:
		reply, n, err := parseUserPassReply(buffered)
		if err != nil {
			return nil, err
		}
		c.bufs.ConsumeIn(n)
		if reply.Success {
			c.state = ClientAuthenticated
		} else {
			c.state = MustClose
		}
		return reply, nil

	case ClientAuthenticated:
		reply, n, err := parseCommandReply(buffered)
		if err != nil {
			return nil, err
		}
		c.bufs.ConsumeIn(n)
		if reply.ReplyCode == Succeeded {
			c.state = TunnelReady
		} else {
			c.state = MustClose
		}
		return reply, nil

	default:
		return nil, socks.NewProtocolMisuseError(
			"no message is expected in state " + c.state.String())
	}
}

// DataToSend returns and clears the outbound buffer.
func (c *Conn) DataToSend() []byte {
	return c.bufs.DataToSend()
}
