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

package socks

import "errors"

// ProtocolError reports that the peer sent bytes that do not conform to the
// SOCKS4/4A/5 wire format, or that carry an unrecognized enum value (an
// unknown reply code, auth method, or address type). The engine state is
// left unchanged; the caller should close the underlying transport.
type ProtocolError struct {
	// Msg describes what was wrong with the received bytes.
	Msg string
}

func (e *ProtocolError) Error() string { return "socks: protocol error: " + e.Msg }

// NewProtocolError returns a [*ProtocolError] with the given message.
func NewProtocolError(msg string) *ProtocolError { return &ProtocolError{Msg: msg} }

// ProtocolMisuseError reports that the caller invoked an engine method in an
// invalid state, or with an invalid argument (a missing user ID, an IPv6
// address on a plain SOCKS4 request, a command request sent before
// authentication completed, and so on). The engine state is left unchanged.
type ProtocolMisuseError struct {
	// Msg describes what the caller did wrong.
	Msg string
}

func (e *ProtocolMisuseError) Error() string { return "socks: protocol misuse: " + e.Msg }

// NewProtocolMisuseError returns a [*ProtocolMisuseError] with the given message.
func NewProtocolMisuseError(msg string) *ProtocolMisuseError {
	return &ProtocolMisuseError{Msg: msg}
}

// ErrNotImplemented is returned by data-model placeholders that the
// specification reserves but does not require to be functional, such as the
// SOCKS5 UDP associate datagram codec.
var ErrNotImplemented = errors.New("socks: not implemented")
