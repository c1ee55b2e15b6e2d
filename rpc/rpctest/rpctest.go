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

// Package rpctest provides an in-memory JSON-RPC transport for tests of code
// built on package rpc.
package rpctest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/findoranetwork/go-web3/rpc"
	"github.com/stretchr/testify/require"
)

// Request is a call seen by the transport.
type Request struct {
	Method string
	Params json.RawMessage
}

// Transport records every call and answers from a queue of canned responses.
// When the queue is empty, calls fail as if the endpoint was unreachable.
type Transport struct {
	ids atomic.Uint64

	mu        sync.Mutex
	requests  []Request
	responses []rpc.Result
}

// New returns a transport without queued responses.
func New() *Transport {
	return new(Transport)
}

// AddResponse queues a successful response. The value is encoded as JSON.
func (t *Transport) AddResponse(value interface{}) {
	enc, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("rpctest: cannot encode response: %v", err))
	}
	t.AddRawResponse(enc)
}

// AddRawResponse queues a successful response with the given JSON result.
func (t *Transport) AddRawResponse(raw json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, rpc.Result{Value: raw})
}

// AddError queues a failed response.
func (t *Transport) AddError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, rpc.Result{Err: err})
}

// Prepare implements rpc.Transport.
func (t *Transport) Prepare(method string, params ...interface{}) (*rpc.Call, error) {
	return rpc.NewCall(rpc.RequestID(t.ids.Add(1)), method, params...)
}

// Send implements rpc.Transport.
func (t *Transport) Send(ctx context.Context, call *rpc.Call) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	res := t.respond(call)
	return res.Value, res.Err
}

// SendBatch implements rpc.BatchTransport. Every call consumes one queued
// response, in order.
func (t *Transport) SendBatch(ctx context.Context, calls []*rpc.Call) ([]rpc.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	results := make([]rpc.Result, len(calls))
	for i, call := range calls {
		results[i] = t.respond(call)
	}
	return results, nil
}

func (t *Transport) respond(call *rpc.Call) rpc.Result {
	t.requests = append(t.requests, Request{Method: call.Method(), Params: call.Params()})
	if len(t.responses) == 0 {
		return rpc.Result{Err: &rpc.TransportError{Op: "test", Err: rpc.ErrUnreachable}}
	}
	res := t.responses[0]
	t.responses = t.responses[1:]
	return res
}

// Requests returns the calls seen so far that have not been asserted.
func (t *Transport) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Request(nil), t.requests...)
}

// AssertRequest checks that the oldest unasserted call has the given method
// and parameters, and removes it.
func (t *Transport) AssertRequest(tb testing.TB, method string, params ...interface{}) {
	tb.Helper()
	if params == nil {
		params = []interface{}{}
	}
	want, err := json.Marshal(params)
	require.NoError(tb, err)

	t.mu.Lock()
	if len(t.requests) == 0 {
		t.mu.Unlock()
		tb.Fatalf("expected request %s, none was sent", method)
		return
	}
	req := t.requests[0]
	t.requests = t.requests[1:]
	t.mu.Unlock()

	require.Equal(tb, method, req.Method, "method")
	require.JSONEq(tb, string(want), string(req.Params), "params of %s", method)
}

// AssertNoMoreRequests fails the test if there are calls left that have not
// been asserted.
func (t *Transport) AssertNoMoreRequests(tb testing.TB) {
	tb.Helper()
	t.mu.Lock()
	left := append([]Request(nil), t.requests...)
	t.mu.Unlock()
	require.Empty(tb, left, "unexpected requests")
}
