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
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is reported to every call that was pending when its
	// connection went away.
	ErrUnreachable = errors.New("rpc endpoint unreachable")

	// ErrInternal marks local bookkeeping failures.
	ErrInternal = errors.New("rpc internal error")

	ErrMissingBatchResponse      = fmt.Errorf("%w: response batch did not contain a response to this call", ErrInternal)
	ErrClientQuit                = errors.New("client is closed")
	ErrNoResult                  = errors.New("JSON-RPC response has no result")
	ErrSubscriptionQueueOverflow = errors.New("subscription queue overflow")
	ErrNotificationsUnsupported  = errors.New("notifications not supported")
	ErrBatchUnsupported          = errors.New("batch requests not supported")
)

// Error wraps RPC errors, which contain an error code in addition to the message.
type Error interface {
	Error() string  // returns the message
	ErrorCode() int // returns the code
}

// A DataError contains some data in addition to the error message.
type DataError interface {
	Error() string          // returns the message
	ErrorData() interface{} // returns the error data
}

// JSONError is the error object of a failed JSON-RPC response. Code, message
// and data are kept exactly as the server sent them.
type JSONError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (err *JSONError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("json-rpc error %d", err.Code)
	}
	return err.Message
}

func (err *JSONError) ErrorCode() int {
	return err.Code
}

func (err *JSONError) ErrorData() interface{} {
	return err.Data
}

// TransportError is returned when the physical exchange with the endpoint
// failed: dialing, handshakes, reads, writes and non-2xx HTTP statuses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError is returned by HTTP transports when the response status is not 2xx.
// It is always wrapped in a TransportError.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (err HTTPError) Error() string {
	if len(err.Body) == 0 {
		return err.Status
	}
	return fmt.Sprintf("%v: %s", err.Status, err.Body)
}

// InvalidResponseError is returned when the endpoint sent bytes that are not
// JSON or not shaped like a JSON-RPC response.
type InvalidResponseError struct {
	Err  error
	Body []byte
}

func (e *InvalidResponseError) Error() string {
	return "invalid JSON-RPC response: " + e.Err.Error()
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a result could not be decoded into the type
// the caller asked for.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "cannot decode JSON-RPC result: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// unreachable builds the error delivered to pending calls when a connection
// shuts down for the given cause.
func unreachable(cause error) error {
	return &TransportError{Op: "conn", Err: fmt.Errorf("%w: %w", ErrUnreachable, cause)}
}
