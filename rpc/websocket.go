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
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadBuffer       = 1024
	wsWriteBuffer      = 1024
	wsPingInterval     = 30 * time.Second
	wsPingWriteTimeout = 5 * time.Second
	wsPongTimeout      = 30 * time.Second
	wsDefaultReadLimit = 32 * 1024 * 1024
)

var wsBufferPool = new(sync.Pool)

// DialWebsocket connects to the JSON-RPC endpoint at the given ws:// or wss://
// URL. The origin header is only sent when origin is not empty.
//
// The context is used for the initial connection establishment. It does not
// affect subsequent interactions with the connection.
func DialWebsocket(ctx context.Context, endpoint, origin string, opts ...ClientOption) (*Conn, error) {
	cfg := newClientConfig(opts)
	dialer := cfg.wsDialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			ReadBufferSize:  wsReadBuffer,
			WriteBufferSize: wsWriteBuffer,
			WriteBufferPool: wsBufferPool,
			Proxy:           http.ProxyFromEnvironment,
		}
	}
	dialURL, header, err := wsClientHeaders(endpoint, origin)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	for key, values := range cfg.httpHeaders {
		header[key] = values
	}
	if cfg.httpAuth != nil {
		if err := cfg.httpAuth(header); err != nil {
			return nil, &TransportError{Op: "dial", Err: err}
		}
	}
	messageSizeLimit := int64(wsDefaultReadLimit)
	if cfg.wsMessageSizeLimit != nil && *cfg.wsMessageSizeLimit >= 0 {
		messageSizeLimit = *cfg.wsMessageSizeLimit
	}
	c := newConn("ws", cfg)
	err = c.connect(ctx, func(ctx context.Context) (frameCodec, error) {
		conn, resp, err := dialer.DialContext(ctx, dialURL, header)
		if err != nil {
			hErr := wsHandshakeError{err: err}
			if resp != nil {
				hErr.status = resp.Status
			}
			return nil, &TransportError{Op: "dial", Err: hErr}
		}
		return newWebsocketCodec(conn, messageSizeLimit), nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func wsClientHeaders(endpoint, origin string) (string, http.Header, error) {
	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, nil, err
	}
	header := make(http.Header)
	if origin != "" {
		header.Add("origin", origin)
	}
	if endpointURL.User != nil {
		b64auth := base64.StdEncoding.EncodeToString([]byte(endpointURL.User.String()))
		header.Add("authorization", "Basic "+b64auth)
		endpointURL.User = nil
	}
	return endpointURL.String(), header, nil
}

type wsHandshakeError struct {
	err    error
	status string
}

func (e wsHandshakeError) Error() string {
	s := e.err.Error()
	if e.status != "" {
		s += " (HTTP status " + e.status + ")"
	}
	return s
}

func (e wsHandshakeError) Unwrap() error {
	return e.err
}

// websocketCodec carries one JSON-RPC frame per websocket message. Idle
// connections are pinged and dropped when the pong does not arrive in time.
type websocketCodec struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex // guards writes, including pings
	closeOnce sync.Once
	closed    chan struct{}

	wg           sync.WaitGroup
	pingReset    chan struct{}
	pongReceived chan struct{}
}

func newWebsocketCodec(conn *websocket.Conn, readLimit int64) *websocketCodec {
	conn.SetReadLimit(readLimit)
	wc := &websocketCodec{
		conn:         conn,
		closed:       make(chan struct{}),
		pingReset:    make(chan struct{}, 1),
		pongReceived: make(chan struct{}),
	}
	conn.SetPongHandler(func(appData string) error {
		select {
		case wc.pongReceived <- struct{}{}:
		case <-wc.closed:
		}
		return nil
	})
	wc.wg.Add(1)
	go wc.pingLoop()
	return wc
}

func (wc *websocketCodec) readFrame() (json.RawMessage, error) {
	for {
		typ, data, err := wc.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (wc *websocketCodec) writeFrame(ctx context.Context, frame []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}
	wc.writeMu.Lock()
	wc.conn.SetWriteDeadline(deadline)
	err := wc.conn.WriteMessage(websocket.TextMessage, frame)
	wc.writeMu.Unlock()
	if err == nil {
		// Notify pingLoop to delay the next idle ping.
		select {
		case wc.pingReset <- struct{}{}:
		default:
		}
	}
	return err
}

func (wc *websocketCodec) close() error {
	var err error
	wc.closeOnce.Do(func() {
		close(wc.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		wc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsPingWriteTimeout))
		err = wc.conn.Close()
		wc.wg.Wait()
	})
	return err
}

// pingLoop sends periodic ping frames when the connection is idle.
func (wc *websocketCodec) pingLoop() {
	var pingTimer = time.NewTimer(wsPingInterval)
	defer wc.wg.Done()
	defer pingTimer.Stop()

	for {
		select {
		case <-wc.closed:
			return

		case <-wc.pingReset:
			if !pingTimer.Stop() {
				<-pingTimer.C
			}
			pingTimer.Reset(wsPingInterval)

		case <-pingTimer.C:
			wc.writeMu.Lock()
			wc.conn.SetWriteDeadline(time.Now().Add(wsPingWriteTimeout))
			wc.conn.WriteMessage(websocket.PingMessage, nil)
			wc.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
			wc.writeMu.Unlock()
			pingTimer.Reset(wsPingInterval)

		case <-wc.pongReceived:
			wc.conn.SetReadDeadline(time.Time{})
		}
	}
}
