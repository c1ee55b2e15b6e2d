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
	"strconv"
)

// RequestID identifies a call on one transport instance. IDs are unique for the
// lifetime of the transport that allocated them and nothing more.
type RequestID uint64

func (id RequestID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// SubscriptionID is the opaque identifier a server hands out for a subscription.
type SubscriptionID string

// Call is a prepared JSON-RPC method call. It cannot be changed after it has
// been created.
type Call struct {
	id     RequestID
	method string
	params json.RawMessage
}

// NewCall creates a call with the given id. The params are encoded
// immediately, so a value that cannot be marshaled fails here and nowhere else.
func NewCall(id RequestID, method string, params ...interface{}) (*Call, error) {
	enc, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	return &Call{id: id, method: method, params: enc}, nil
}

// ID returns the request id of the call.
func (c *Call) ID() RequestID { return c.id }

// Method returns the method name.
func (c *Call) Method() string { return c.method }

// Params returns the encoded parameter array.
func (c *Call) Params() json.RawMessage { return c.params }

// MarshalJSON encodes the call as a JSON-RPC 2.0 request object.
func (c *Call) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.message())
}

func (c *Call) message() *jsonrpcMessage {
	return &jsonrpcMessage{
		Version: vsn,
		ID:      json.RawMessage(c.id.String()),
		Method:  c.method,
		Params:  c.params,
	}
}

// Result is the outcome of a single call: the raw result on success, or the
// error that ended the call.
type Result struct {
	Value json.RawMessage
	Err   error
}

// Transport is implemented by everything that can carry JSON-RPC calls.
type Transport interface {
	// Prepare allocates a request id and encodes the call.
	Prepare(method string, params ...interface{}) (*Call, error)
	// Send dispatches a prepared call and waits for its result.
	Send(ctx context.Context, call *Call) (json.RawMessage, error)
}

// BatchTransport is a Transport that can send many calls in one round trip.
// The returned results correspond to calls by position. A non-nil error means
// the batch as a whole failed.
type BatchTransport interface {
	Transport
	SendBatch(ctx context.Context, calls []*Call) ([]Result, error)
}

// DuplexTransport is a Transport that receives server pushes.
type DuplexTransport interface {
	Transport
	// Subscribe calls <namespace>_subscribe with args and returns the
	// subscription once the server confirmed it.
	Subscribe(ctx context.Context, namespace string, args ...interface{}) (*ClientSubscription, error)
}

// Execute prepares and sends a call in one step.
func Execute(ctx context.Context, t Transport, method string, params ...interface{}) (json.RawMessage, error) {
	call, err := t.Prepare(method, params...)
	if err != nil {
		return nil, err
	}
	return t.Send(ctx, call)
}
