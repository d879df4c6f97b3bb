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

package socks4

import "github.com/outline-sdk/socks-core/socks"

// Conn is a SOCKS4/4A client connection. It holds no socket: the caller
// feeds it bytes received from the transport via ReceiveData, and drains
// bytes to transmit via DataToSend after each Send. Conn is not safe for
// concurrent use; callers sharing one across goroutines must synchronize
// externally.
type Conn struct {
	userID           []byte
	allowDomainNames bool

	bufs socks.Buffers
}

// Option configures a Conn at construction time.
type Option func(*Conn)

// AllowDomainNames lets Send accept a [RequestA] (SOCKS4A). Without it,
// only plain IPv4 [Request] values are accepted.
func AllowDomainNames() Option {
	return func(c *Conn) { c.allowDomainNames = true }
}

// New creates a SOCKS4 connection configured with the given default user
// ID (used by Send when a request does not carry its own).
func New(userID []byte, opts ...Option) *Conn {
	c := &Conn{userID: userID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send serializes req and appends it to the outbound buffer. req must be a
// [Request] or, if the connection was created with [AllowDomainNames], a
// [RequestA]; any other type is a [*socks.ProtocolMisuseError]. The
// effective user ID is req's own if non-nil, otherwise the connection's
// configured user ID; if neither is set, Send fails without touching the
// outbound buffer.
func (c *Conn) Send(req any) error {
	switch r := req.(type) {
	case Request:
		userID := r.UserID
		if userID == nil {
			userID = c.userID
		}
		if userID == nil {
			return socks.NewProtocolMisuseError("SOCKS4 requires a user ID, none was specified")
		}
		c.bufs.AppendOut(r.Bytes(userID))
		return nil
	case RequestA:
		if !c.allowDomainNames {
			return socks.NewProtocolMisuseError(
				"domain names are not allowed on this connection; construct it with AllowDomainNames()")
		}
		userID := r.UserID
		if userID == nil {
			userID = c.userID
		}
		b, err := r.Bytes(userID)
		if err != nil {
			return err
		}
		c.bufs.AppendOut(b)
		return nil
	default:
		return socks.NewProtocolMisuseError("unsupported SOCKS4 request type")
	}
}

// ReceiveData appends data to the inbound buffer and attempts to parse a
// SOCKS4 reply from everything accumulated so far. The engine expects
// exactly one reply per connection; calling ReceiveData again after a
// successful parse is undefined behavior.
func (c *Conn) ReceiveData(data []byte) (Reply, error) {
	buffered := c.bufs.AppendIn(data)
	return ParseReply(buffered)
}

// DataToSend returns and clears the outbound buffer.
func (c *Conn) DataToSend() []byte {
	return c.bufs.DataToSend()
}
