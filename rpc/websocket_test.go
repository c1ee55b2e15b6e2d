// Copyright 2024 The go-web3 Authors
// This file is part of the go-web3 library.
//
// The go-web3 library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-web3 library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-web3 library. If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/findoranetwork/go-web3/internal/testlog"
	"github.com/findoranetwork/go-web3/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// wsServer upgrades every request and hands each incoming request message to
// reply, writing back whatever messages it returns.
func wsServer(t *testing.T, reply func(req *jsonrpcMessage) []string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req jsonrpcMessage
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("server got invalid request: %v", err)
				return
			}
			for _, msg := range reply(&req) {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketCall(t *testing.T) {
	srv := wsServer(t, func(req *jsonrpcMessage) []string {
		return []string{response(req.ID, fmt.Sprintf("%q", req.Method))}
	})
	c, err := DialWebsocket(context.Background(), wsURL(srv), "", WithLogger(testlog.Logger(t, log.LevelDebug)))
	require.NoError(t, err)
	defer c.Close()

	v, err := Execute(context.Background(), c, "web3_clientVersion")
	require.NoError(t, err)
	require.Equal(t, `"web3_clientVersion"`, string(v))
}

func TestWebsocketMalformedFrameDropped(t *testing.T) {
	srv := wsServer(t, func(req *jsonrpcMessage) []string {
		return []string{
			"this is not json",
			`{"jsonrpc":"2.0","id":`,
			response(req.ID, `"0x2a"`),
		}
	})
	c, err := DialWebsocket(context.Background(), wsURL(srv), "", WithLogger(testlog.Logger(t, log.LevelDebug)))
	require.NoError(t, err)
	defer c.Close()

	v, err := Execute(context.Background(), c, "eth_blockNumber")
	require.NoError(t, err)
	require.Equal(t, `"0x2a"`, string(v))
	require.Equal(t, StateOpen, c.State())
}

func TestWebsocketSubscription(t *testing.T) {
	srv := wsServer(t, func(req *jsonrpcMessage) []string {
		switch req.Method {
		case "eth_subscribe":
			return []string{
				response(req.ID, fmt.Sprintf("%q", testSubID)),
				notification(testSubID, `"0x1"`),
				notification(testSubID, `"0x2"`),
			}
		case "eth_unsubscribe":
			return []string{response(req.ID, "true")}
		}
		return nil
	})
	c, err := DialWebsocket(context.Background(), wsURL(srv), "", WithLogger(testlog.Logger(t, log.LevelDebug)))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	sub, err := c.Subscribe(ctx, "eth", "newPendingTransactions")
	require.NoError(t, err)
	stream := NewStream[string](sub)
	for _, want := range []string{"0x1", "0x2"} {
		v, err := stream.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
	ok, err := stream.Unsubscribe(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWebsocketHeaders(t *testing.T) {
	seen := make(chan http.Header, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	endpoint := strings.Replace(wsURL(srv), "ws://", "ws://user:secret@", 1)
	c, err := DialWebsocket(context.Background(), endpoint, "http://example.com",
		WithHeader("x-api-key", "abc"),
		WithLogger(testlog.Logger(t, log.LevelDebug)),
	)
	require.NoError(t, err)
	defer c.Close()

	h := <-seen
	require.Equal(t, "http://example.com", h.Get("origin"))
	require.Equal(t, "abc", h.Get("x-api-key"))
	require.Equal(t, "Basic dXNlcjpzZWNyZXQ=", h.Get("authorization"))
}

func TestWebsocketHandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := DialWebsocket(context.Background(), wsURL(srv), "", WithLogger(testlog.Logger(t, log.LevelDebug)))
	require.Error(t, err)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, "dial", terr.Op)
	require.Contains(t, err.Error(), "403")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestWebsocketServerGone(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the connection after the first request.
		conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()

	c, err := DialWebsocket(context.Background(), wsURL(srv), "", WithLogger(testlog.Logger(t, log.LevelDebug)))
	require.NoError(t, err)
	defer c.Close()

	_, err = Execute(context.Background(), c, "eth_blockNumber")
	require.ErrorIs(t, err, ErrUnreachable)
	<-c.Closed()
}
