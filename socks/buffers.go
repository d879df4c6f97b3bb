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

// Buffers holds the two byte buffers every connection object in this module
// owns: bytes queued for the caller to transmit, and bytes received from the
// transport so far but not yet fully consumed. Both [socks4.Conn] and
// [socks5.Conn] hold a Buffers field instead of each keeping their own
// ad-hoc byte slices.
type Buffers struct {
	out []byte
	in  []byte
}

// AppendOut appends b to the outbound buffer, in call order.
func (bufs *Buffers) AppendOut(b []byte) {
	bufs.out = append(bufs.out, b...)
}

// DataToSend returns the outbound buffer and atomically clears it.
func (bufs *Buffers) DataToSend() []byte {
	data := bufs.out
	bufs.out = nil
	return data
}

// AppendIn appends b to the inbound buffer and returns the full accumulated
// contents. Used by engines that must frame one or more complete messages
// out of bytes that may arrive split across several ReceiveData calls.
func (bufs *Buffers) AppendIn(b []byte) []byte {
	bufs.in = append(bufs.in, b...)
	return bufs.in
}

// ConsumeIn drops the first n bytes of the inbound buffer, keeping whatever
// remains (bytes belonging to a subsequent message, for engines where the
// caller may deliver more than one message's worth of bytes in a call).
func (bufs *Buffers) ConsumeIn(n int) {
	bufs.in = bufs.in[n:]
}

// ResetIn discards the entire inbound buffer.
func (bufs *Buffers) ResetIn() {
	bufs.in = nil
}
