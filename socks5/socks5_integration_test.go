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

package socks5_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	go_socks5 "github.com/things-go/go-socks5"

	"github.com/outline-sdk/socks-core/socks5"
)

// runHandshake drives conn's Send/DataToSend/ReceiveData loop over a real
// net.Conn until the connection reaches dst, returning the last reply
// observed for the caller to inspect.
func runHandshake(t *testing.T, netConn net.Conn, conn *socks5.Conn, methods []socks5.Method, auth *socks5.UserPassRequest, dst string) any {
	t.Helper()

	require.NoError(t, conn.Send(socks5.MethodsRequest{Methods: methods}))
	writeAndRead(t, netConn, conn)

	reply, err := readReply(t, netConn, conn)
	require.NoError(t, err)
	methodsReply := reply.(socks5.MethodsReply)

	if methodsReply.Method == socks5.MethodUsernamePassword {
		require.NotNil(t, auth)
		require.NoError(t, conn.Send(*auth))
		writeAndRead(t, netConn, conn)
		reply, err = readReply(t, netConn, conn)
		require.NoError(t, err)
		require.True(t, reply.(socks5.UserPassReply).Success)
	}

	require.Equal(t, socks5.ClientAuthenticated, conn.State())

	req, err := socks5.FromHostPort(socks5.CmdConnect, dst)
	require.NoError(t, err)
	require.NoError(t, conn.Send(req))
	writeAndRead(t, netConn, conn)

	reply, err = readReply(t, netConn, conn)
	require.NoError(t, err)
	return reply
}

func writeAndRead(t *testing.T, netConn net.Conn, conn *socks5.Conn) {
	t.Helper()
	_, err := netConn.Write(conn.DataToSend())
	require.NoError(t, err)
}

func readReply(t *testing.T, netConn net.Conn, conn *socks5.Conn) (any, error) {
	t.Helper()
	buf := make([]byte, 256)
	for {
		n, err := netConn.Read(buf)
		require.NoError(t, err)
		reply, err := conn.ReceiveData(buf[:n])
		if errors.Is(err, socks5.ErrIncomplete) {
			continue
		}
		return reply, err
	}
}

func TestIntegrationConnectWithoutAuth(t *testing.T) {
	srv := go_socks5.NewServer()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		_ = srv.Serve(listener)
	}()
	time.Sleep(10 * time.Millisecond)

	netConn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer netConn.Close()

	conn := socks5.NewConn()
	reply := runHandshake(t, netConn, conn, []socks5.Method{socks5.MethodNoAuthRequired}, nil, listener.Addr().String())
	require.Equal(t, socks5.Succeeded, reply.(socks5.CommandReply).ReplyCode)
	require.Equal(t, socks5.TunnelReady, conn.State())
}

func TestIntegrationConnectWithAuth(t *testing.T) {
	cator := go_socks5.UserPassAuthenticator{
		Credentials: go_socks5.StaticCredentials{"testusername": "testpassword"},
	}
	srv := go_socks5.NewServer(go_socks5.WithAuthMethods([]go_socks5.Authenticator{cator}))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		_ = srv.Serve(listener)
	}()
	time.Sleep(10 * time.Millisecond)

	netConn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer netConn.Close()

	conn := socks5.NewConn()
	auth := socks5.UserPassRequest{Username: []byte("testusername"), Password: []byte("testpassword")}
	reply := runHandshake(t, netConn, conn, []socks5.Method{socks5.MethodUsernamePassword}, &auth, listener.Addr().String())
	require.Equal(t, socks5.Succeeded, reply.(socks5.CommandReply).ReplyCode)
}

func TestIntegrationConnectWithWrongCredentialsFails(t *testing.T) {
	cator := go_socks5.UserPassAuthenticator{
		Credentials: go_socks5.StaticCredentials{"testusername": "testpassword"},
	}
	srv := go_socks5.NewServer(go_socks5.WithAuthMethods([]go_socks5.Authenticator{cator}))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		_ = srv.Serve(listener)
	}()
	time.Sleep(10 * time.Millisecond)

	netConn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer netConn.Close()

	conn := socks5.NewConn()
	require.NoError(t, conn.Send(socks5.MethodsRequest{Methods: []socks5.Method{socks5.MethodUsernamePassword}}))
	writeAndRead(t, netConn, conn)
	_, err = readReply(t, netConn, conn)
	require.NoError(t, err)

	auth := socks5.UserPassRequest{Username: []byte("testusername"), Password: []byte("wrongpassword")}
	require.NoError(t, conn.Send(auth))
	writeAndRead(t, netConn, conn)
	reply, err := readReply(t, netConn, conn)
	require.NoError(t, err)
	require.False(t, reply.(socks5.UserPassReply).Success)
	require.Equal(t, socks5.MustClose, conn.State())
}
