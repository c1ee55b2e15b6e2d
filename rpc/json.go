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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	vsn                      = "2.0"
	subscribeMethodSuffix    = "_subscribe"
	unsubscribeMethodSuffix  = "_unsubscribe"
	notificationMethodSuffix = "_subscription"
)

var (
	errEmptyFrame   = errors.New("empty frame")
	errEmptyBatch   = errors.New("empty batch")
	errUnknownShape = errors.New("message is neither a response nor a notification")
)

type subscriptionResult struct {
	ID     SubscriptionID  `json:"subscription"`
	Result json.RawMessage `json:"result,omitempty"`
}

// A value of this type can be a JSON-RPC request, notification, successful response or
// error response. Which one it is depends on the fields.
type jsonrpcMessage struct {
	Version string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Error   *JSONError      `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func (msg *jsonrpcMessage) isNotification() bool {
	return msg.hasValidVersion() && msg.ID == nil && msg.Method != ""
}

func (msg *jsonrpcMessage) isSubscriptionPush() bool {
	return msg.isNotification() && strings.HasSuffix(msg.Method, notificationMethodSuffix)
}

// isResponse reports whether msg is a response. The id may be missing, batch
// elements without one are matched by position.
func (msg *jsonrpcMessage) isResponse() bool {
	if msg.ID != nil && !msg.hasValidID() {
		return false
	}
	return msg.hasValidVersion() && msg.Method == "" && msg.Params == nil && (msg.Result != nil || msg.Error != nil)
}

func (msg *jsonrpcMessage) hasValidID() bool {
	return len(msg.ID) > 0 && msg.ID[0] != '{' && msg.ID[0] != '['
}

// Servers in the wild sometimes leave out the version member, so only a wrong
// version is rejected.
func (msg *jsonrpcMessage) hasValidVersion() bool {
	return msg.Version == "" || msg.Version == vsn
}

// requestID returns the id of a response, if it is one this client could have
// allocated. Some servers echo numeric ids back as strings.
func (msg *jsonrpcMessage) requestID() (RequestID, bool) {
	if !msg.hasValidID() {
		return 0, false
	}
	raw := string(msg.ID)
	if s, err := strconv.Unquote(raw); err == nil {
		raw = s
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return RequestID(n), true
}

// result converts a response into the outcome handed to the caller.
func (msg *jsonrpcMessage) result() Result {
	switch {
	case msg.Error != nil:
		return Result{Err: msg.Error}
	case len(msg.Result) == 0:
		return Result{Err: ErrNoResult}
	default:
		return Result{Value: msg.Result}
	}
}

func (msg *jsonrpcMessage) String() string {
	b, _ := json.Marshal(msg)
	return string(b)
}

// Notification is a subscription push sent by the server.
type Notification struct {
	Method       string
	Subscription SubscriptionID
	Result       json.RawMessage
}

func (msg *jsonrpcMessage) notification() (*Notification, error) {
	if !msg.isSubscriptionPush() {
		return nil, errors.New("not a subscription notification")
	}
	var sr subscriptionResult
	if err := json.Unmarshal(msg.Params, &sr); err != nil {
		return nil, fmt.Errorf("invalid subscription params: %w", err)
	}
	if sr.ID == "" {
		return nil, errors.New("subscription notification without id")
	}
	return &Notification{Method: msg.Method, Subscription: sr.ID, Result: sr.Result}, nil
}

// parseNotification decodes one frame as a subscription push.
func parseNotification(raw []byte) (*Notification, error) {
	var msg jsonrpcMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &InvalidResponseError{Err: err, Body: raw}
	}
	n, err := msg.notification()
	if err != nil {
		return nil, &InvalidResponseError{Err: err, Body: raw}
	}
	return n, nil
}

// parseMessages decodes one complete frame. A frame is a single message or a
// batch. The frame is either accepted as a whole or rejected with an
// InvalidResponseError.
func parseMessages(raw json.RawMessage) ([]*jsonrpcMessage, bool, error) {
	msgs, batch, err := decodeMessages(raw)
	if err != nil {
		return nil, false, &InvalidResponseError{Err: err, Body: raw}
	}
	for _, msg := range msgs {
		if !msg.isResponse() && !msg.isNotification() {
			return nil, false, &InvalidResponseError{Err: errUnknownShape, Body: raw}
		}
	}
	return msgs, batch, nil
}

func decodeMessages(raw json.RawMessage) ([]*jsonrpcMessage, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, errEmptyFrame
	}
	if !isBatch(raw) {
		msgs := []*jsonrpcMessage{{}}
		if err := json.Unmarshal(raw, &msgs[0]); err != nil {
			return nil, false, err
		}
		if msgs[0] == nil {
			return nil, false, errors.New("null message")
		}
		return msgs, false, nil
	}
	var msgs []*jsonrpcMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, true, err
	}
	if len(msgs) == 0 {
		return nil, true, errEmptyBatch
	}
	for _, msg := range msgs {
		if msg == nil {
			return nil, true, errors.New("null batch element")
		}
	}
	return msgs, true, nil
}

// isBatch returns true when the first non-whitespace characters is '['
func isBatch(raw json.RawMessage) bool {
	for _, c := range raw {
		// skip insignificant whitespace (http://www.ietf.org/rfc/rfc4627.txt)
		if c == 0x20 || c == 0x09 || c == 0x0a || c == 0x0d {
			continue
		}
		return c == '['
	}
	return false
}

// encodeParams encodes the parameter list as a JSON array. No parameters encode
// as an empty array.
func encodeParams(params []interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	enc, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// encodeBatch encodes calls as a JSON-RPC batch request.
func encodeBatch(calls []*Call) ([]byte, error) {
	msgs := make([]*jsonrpcMessage, len(calls))
	for i, c := range calls {
		msgs[i] = c.message()
	}
	return json.Marshal(msgs)
}

type idForLog struct{ json.RawMessage }

func (id idForLog) String() string {
	if s, err := strconv.Unquote(string(id.RawMessage)); err == nil {
		return s
	}
	return string(id.RawMessage)
}
