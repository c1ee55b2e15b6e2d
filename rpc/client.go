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
	"fmt"
	"io"
	"net/url"
	"reflect"
	"runtime"
	"time"
)

const defaultDialTimeout = 10 * time.Second // used if context has no deadline

// BatchElem is an element in a batch request.
type BatchElem struct {
	Method string
	Args   []interface{}
	// The result is unmarshaled into this field. Result must be set to a
	// non-nil pointer value of the desired type, otherwise the response will be
	// discarded.
	Result interface{}
	// Error is set if the server returns an error for this request, if
	// unmarshalling into Result fails, or if the connection went away before
	// the response arrived.
	Error error
}

// Client is a typed front end to a Transport.
type Client struct {
	transport Transport
}

// Dial creates a new client for the given URL.
//
// The currently supported URL schemes are "http", "https", "ws" and "wss". If rawurl is a
// file name with no URL scheme, a local socket connection is established using UNIX
// domain sockets on supported platforms and named pipes on Windows.
func Dial(rawurl string) (*Client, error) {
	return DialOptions(context.Background(), rawurl)
}

// DialContext creates a new RPC client, just like Dial.
//
// The context is used to cancel or time out the initial connection establishment. It does
// not affect subsequent interactions with the client.
func DialContext(ctx context.Context, rawurl string) (*Client, error) {
	return DialOptions(ctx, rawurl)
}

// DialOptions creates a new RPC client for the given URL. You can supply any of the
// pre-defined client options to configure the underlying transport.
func DialOptions(ctx context.Context, rawurl string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	var t Transport
	switch u.Scheme {
	case "http", "https":
		t, err = DialHTTP(rawurl, options...)
	case "ws", "wss":
		t, err = DialWebsocket(ctx, rawurl, "", options...)
	case "":
		t, err = DialIPC(ctx, rawurl, options...)
	default:
		return nil, fmt.Errorf("no known transport for URL scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return newDialedClient(t), nil
}

// NewClient creates a client on top of an existing transport. The caller keeps
// ownership of the transport.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// newDialedClient creates a client that owns t. The transport is closed when
// the client becomes unreachable without having been closed.
func newDialedClient(t Transport) *Client {
	c := NewClient(t)
	runtime.SetFinalizer(c, (*Client).finalize)
	return c
}

func (c *Client) finalize() {
	go c.Close()
}

// Transport returns the transport of the client.
func (c *Client) Transport() Transport {
	return c.transport
}

// SupportsSubscriptions reports whether subscriptions are supported by the
// client transport.
func (c *Client) SupportsSubscriptions() bool {
	return supportsSubscriptions(c.transport)
}

// Close closes the transport, aborting any in-flight requests.
func (c *Client) Close() error {
	runtime.SetFinalizer(c, nil)
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Call performs a JSON-RPC call with the given arguments and unmarshals into
// result if no error occurred.
//
// The result must be a pointer so that package json can unmarshal into it. You
// can also pass nil, in which case the result is ignored.
func (c *Client) Call(result interface{}, method string, args ...interface{}) error {
	return c.CallContext(context.Background(), result, method, args...)
}

// CallContext performs a JSON-RPC call with the given arguments. If the context is
// canceled before the call has successfully returned, CallContext returns immediately.
//
// The result must be a pointer so that package json can unmarshal into it. You
// can also pass nil, in which case the result is ignored.
func (c *Client) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if result != nil && reflect.TypeOf(result).Kind() != reflect.Ptr {
		return fmt.Errorf("call result parameter must be pointer or nil interface: %v", result)
	}
	raw, err := Execute(ctx, c.transport, method, args...)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return decodeResult(raw, result)
}

// BatchCall sends all given requests as a single batch and waits for the server
// to return a response for all of them.
//
// In contrast to Call, BatchCall only returns I/O errors. Any error specific to
// a request is reported through the Error field of the corresponding BatchElem.
//
// Note that batch calls may not be executed atomically on the server side.
func (c *Client) BatchCall(b []BatchElem) error {
	return c.BatchCallContext(context.Background(), b)
}

// BatchCallContext sends all given requests as a single batch and waits for the server
// to return a response for all of them. The wait duration is bounded by the
// context's deadline.
//
// In contrast to CallContext, BatchCallContext only returns errors that have occurred
// while sending the request. Any error specific to a request is reported through the
// Error field of the corresponding BatchElem.
//
// Note that batch calls may not be executed atomically on the server side.
func (c *Client) BatchCallContext(ctx context.Context, b []BatchElem) error {
	bt, ok := c.transport.(BatchTransport)
	if !ok {
		return ErrBatchUnsupported
	}
	var (
		calls = make([]*Call, 0, len(b))
		index = make([]int, 0, len(b))
	)
	for i, elem := range b {
		call, err := bt.Prepare(elem.Method, elem.Args...)
		if err != nil {
			b[i].Error = err
			continue
		}
		calls = append(calls, call)
		index = append(index, i)
	}
	results, err := bt.SendBatch(ctx, calls)
	if err != nil {
		return err
	}
	for j, res := range results {
		elem := &b[index[j]]
		switch {
		case res.Err != nil:
			elem.Error = res.Err
		case elem.Result != nil:
			elem.Error = decodeResult(res.Value, elem.Result)
		}
	}
	return nil
}

// NewBatch returns an empty batch on the client transport.
func (c *Client) NewBatch() (*Batch, error) {
	bt, ok := c.transport.(BatchTransport)
	if !ok {
		return nil, ErrBatchUnsupported
	}
	return NewBatch(bt), nil
}

// Subscribe calls the "<namespace>_subscribe" method with the given arguments,
// registering a subscription. Payloads are read from the returned handle.
//
// Slow subscribers will be dropped eventually. Client buffers up to 20000 notifications
// before considering the subscriber dead. The subscription Err method will return
// ErrSubscriptionQueueOverflow.
func (c *Client) Subscribe(ctx context.Context, namespace string, args ...interface{}) (*ClientSubscription, error) {
	dt, ok := c.transport.(DuplexTransport)
	if !ok || !c.SupportsSubscriptions() {
		return nil, ErrNotificationsUnsupported
	}
	return dt.Subscribe(ctx, namespace, args...)
}

// EthSubscribe registers a subscription under the "eth" namespace.
func (c *Client) EthSubscribe(ctx context.Context, args ...interface{}) (*ClientSubscription, error) {
	return c.Subscribe(ctx, "eth", args...)
}

func decodeResult(raw json.RawMessage, result interface{}) error {
	if err := json.Unmarshal(raw, result); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
