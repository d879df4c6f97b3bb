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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestConnectBytes(t *testing.T) {
	conn := New([]byte("socks"))
	req, err := FromHostPort(CmdConnect, "127.0.0.1:8080", nil)
	require.NoError(t, err)
	require.NoError(t, conn.Send(req))

	data := conn.DataToSend()
	require.Equal(t, []byte{
		0x04, 0x01, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01, 0x73, 0x6F, 0x63, 0x6B, 0x73, 0x00,
	}, data)
	require.Len(t, data, 14)
}

func TestRequestAConnectBytes(t *testing.T) {
	conn := New([]byte("socks"), AllowDomainNames())
	req, err := FromHostPortA(CmdConnect, "proxy.example.com:8080", nil)
	require.NoError(t, err)
	require.NoError(t, conn.Send(req))

	data := conn.DataToSend()
	require.Len(t, data, 32)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0xFF}, data[4:8])
	require.Equal(t, append([]byte("socks"), 0x00), data[8:14])
	require.Equal(t, append([]byte("proxy.example.com"), 0x00), data[14:])
}

func TestRequestAWithoutAllowDomainNamesFails(t *testing.T) {
	conn := New([]byte("socks"))
	req, err := FromHostPortA(CmdConnect, "proxy.example.com:8080", nil)
	require.NoError(t, err)
	require.Error(t, conn.Send(req))
}

func TestFromAddressRejectsIPv6(t *testing.T) {
	_, err := FromAddress(CmdBind, "0:0:0:0:0:0:0:1", 8080, []byte("socks"))
	require.Error(t, err)
}

func TestFromAddressRejectsDomain(t *testing.T) {
	_, err := FromAddress(CmdBind, "proxy.example.com", 8080, []byte("socks"))
	require.Error(t, err)
}

func TestSendRequiresUserID(t *testing.T) {
	conn := New(nil)
	req, err := FromHostPort(CmdConnect, "127.0.0.1:8080", nil)
	require.NoError(t, err)
	require.Error(t, conn.Send(req))
}

func TestSendRequestUserIDOverridesConnDefault(t *testing.T) {
	conn := New([]byte("default"))
	req, err := FromAddress(CmdConnect, "127.0.0.1", 80, []byte("override"))
	require.NoError(t, err)
	require.NoError(t, conn.Send(req))
	data := conn.DataToSend()
	require.Contains(t, string(data), "override")
	require.NotContains(t, string(data), "default")
}

func TestParseReplyGranted(t *testing.T) {
	reply, err := ParseReply([]byte{0x00, 0x5A, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01})
	require.NoError(t, err)
	require.Equal(t, Reply{ReplyCode: RequestGranted, Port: 8080, Addr: "127.0.0.1"}, reply)
}

func TestParseReplyAllCodes(t *testing.T) {
	for _, code := range []ReplyCode{RequestGranted, RequestRejectedFailed, ConnectionFailed, AuthenticationFailed} {
		data := append([]byte{0x00, byte(code)}, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01)
		reply, err := ParseReply(data)
		require.NoError(t, err)
		require.Equal(t, code, reply.ReplyCode)
	}
}

func TestParseReplyMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"7 bytes", []byte{0x00, 0x5A, 0x1F, 0x90, 0x7F, 0x00, 0x00}},
		{"9 bytes", []byte{0x00, 0x5A, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01, 0x00}},
		{"bad prefix", []byte{0x0F, 0x5A, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01}},
		{"unknown code", []byte{0x00, 0xFF, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply(tt.data)
			require.Error(t, err)
		})
	}
}

func TestConnReceiveData(t *testing.T) {
	conn := New([]byte("socks"))
	reply, err := conn.ReceiveData([]byte{0x00, 0x5A, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01})
	require.NoError(t, err)
	require.Equal(t, RequestGranted, reply.ReplyCode)
}

func TestConnReceiveDataAccumulatesAcrossCalls(t *testing.T) {
	conn := New([]byte("socks"))
	full := []byte{0x00, 0x5A, 0x1F, 0x90, 0x7F, 0x00, 0x00, 0x01}

	_, err := conn.ReceiveData(full[:4])
	require.Error(t, err) // not yet a complete 8-byte reply

	reply, err := conn.ReceiveData(full[4:])
	require.NoError(t, err)
	require.Equal(t, RequestGranted, reply.ReplyCode)
}

func TestDataToSendClearsBuffer(t *testing.T) {
	conn := New([]byte("socks"))
	req, err := FromHostPort(CmdConnect, "127.0.0.1:8080", nil)
	require.NoError(t, err)
	require.NoError(t, conn.Send(req))
	require.NotEmpty(t, conn.DataToSend())
	require.Empty(t, conn.DataToSend())
}
