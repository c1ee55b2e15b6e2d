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
	"io"
)

// Either holds exactly one of two transports, chosen at runtime, and forwards
// every capability to it. Capabilities the active transport lacks fail with
// ErrBatchUnsupported or ErrNotificationsUnsupported.
type Either struct {
	left  Transport
	right Transport
}

// EitherLeft wraps t as the left side.
func EitherLeft(t Transport) *Either {
	return &Either{left: t}
}

// EitherRight wraps t as the right side.
func EitherRight(t Transport) *Either {
	return &Either{right: t}
}

// IsLeft reports whether the left side is active.
func (e *Either) IsLeft() bool {
	return e.left != nil
}

// Active returns the wrapped transport.
func (e *Either) Active() Transport {
	if e.left != nil {
		return e.left
	}
	return e.right
}

// Prepare implements Transport.
func (e *Either) Prepare(method string, params ...interface{}) (*Call, error) {
	return e.Active().Prepare(method, params...)
}

// Send implements Transport.
func (e *Either) Send(ctx context.Context, call *Call) (json.RawMessage, error) {
	return e.Active().Send(ctx, call)
}

// SendBatch implements BatchTransport.
func (e *Either) SendBatch(ctx context.Context, calls []*Call) ([]Result, error) {
	bt, ok := e.Active().(BatchTransport)
	if !ok {
		return nil, ErrBatchUnsupported
	}
	return bt.SendBatch(ctx, calls)
}

// Subscribe implements DuplexTransport.
func (e *Either) Subscribe(ctx context.Context, namespace string, args ...interface{}) (*ClientSubscription, error) {
	if !e.SupportsSubscriptions() {
		return nil, ErrNotificationsUnsupported
	}
	return e.Active().(DuplexTransport).Subscribe(ctx, namespace, args...)
}

// SupportsSubscriptions reports whether the active transport receives pushes.
func (e *Either) SupportsSubscriptions() bool {
	return supportsSubscriptions(e.Active())
}

// Close closes the active transport if it can be closed.
func (e *Either) Close() error {
	if c, ok := e.Active().(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// supportsSubscriptions reports whether t can deliver notifications.
func supportsSubscriptions(t Transport) bool {
	if s, ok := t.(interface{ SupportsSubscriptions() bool }); ok {
		return s.SupportsSubscriptions()
	}
	_, ok := t.(DuplexTransport)
	return ok
}
