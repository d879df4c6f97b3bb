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

// Package socks holds the types shared by [socks4] and [socks5]: the two
// protocol-level error kinds, and the outbound/inbound byte buffer used
// identically by both engines.
//
// Neither this package, nor [socks4], nor [socks5] perform any network I/O.
// Each engine only consumes bytes handed to it and produces bytes for the
// caller to transmit; the caller owns the socket (or any other transport)
// and is responsible for moving bytes between the engine and the wire.
package socks
