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
	"net"
	"sync"
	"time"
)

const defaultWriteTimeout = 10 * time.Second // used if context has no deadline

// streamCodec frames JSON values on a byte stream. Values are delimited by
// their own syntax, so a frame split over many reads, several frames in one
// read and bytes that belong to the next frame are all handled by the decoder.
// A syntax error cannot be recovered from and ends the connection.
type streamCodec struct {
	conn      net.Conn
	dec       *json.Decoder
	closeOnce sync.Once
}

func newStreamCodec(conn net.Conn) *streamCodec {
	return &streamCodec{conn: conn, dec: json.NewDecoder(conn)}
}

func (c *streamCodec) readFrame() (json.RawMessage, error) {
	var frame json.RawMessage
	if err := c.dec.Decode(&frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (c *streamCodec) writeFrame(ctx context.Context, frame []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}
	c.conn.SetWriteDeadline(deadline)
	_, err := c.conn.Write(append(frame, '\n'))
	return err
}

func (c *streamCodec) close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}

// DialIPC connects to the JSON-RPC endpoint at the given IPC path: a Unix
// domain socket, or a named pipe on Windows.
//
// The context is used for the initial connection establishment. It does not
// affect subsequent interactions with the connection.
func DialIPC(ctx context.Context, endpoint string, opts ...ClientOption) (*Conn, error) {
	c := newConn("ipc", newClientConfig(opts))
	err := c.connect(ctx, func(ctx context.Context) (frameCodec, error) {
		conn, err := newIPCConnection(ctx, endpoint)
		if err != nil {
			return nil, &TransportError{Op: "dial", Err: err}
		}
		return newStreamCodec(conn), nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewStreamConn runs a JSON-RPC connection over an already established stream,
// such as a TCP connection or one end of net.Pipe.
func NewStreamConn(conn net.Conn, opts ...ClientOption) *Conn {
	c := newConn("stream", newClientConfig(opts))
	c.open(newStreamCodec(conn))
	return c
}
