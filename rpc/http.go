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
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/findoranetwork/go-web3/log"
)

const (
	maxResponseSize = 128 * 1024 * 1024
	contentType     = "application/json"
)

// HTTPTransport sends every call as its own HTTP POST request. Batches go out
// as a single request carrying a JSON array. It cannot receive notifications.
type HTTPTransport struct {
	client *http.Client
	url    string
	auth   HTTPAuth
	ids    idAllocator
	log    log.Logger

	mu      sync.Mutex // protects headers
	headers http.Header
}

// DialHTTP creates a transport for the given endpoint. User info in the URL is
// sent as basic authentication. No connection is made until the first call.
func DialHTTP(endpoint string, opts ...ClientOption) (*HTTPTransport, error) {
	cfg := newClientConfig(opts)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	headers := make(http.Header, 2+len(cfg.httpHeaders))
	headers.Set("accept", contentType)
	headers.Set("content-type", contentType)
	for key, values := range cfg.httpHeaders {
		headers[key] = values
	}
	if u.User != nil {
		b64auth := base64.StdEncoding.EncodeToString([]byte(u.User.String()))
		headers.Set("authorization", "Basic "+b64auth)
		u.User = nil
	}
	client := cfg.httpClient
	if client == nil {
		client = new(http.Client)
	}
	return &HTTPTransport{
		client:  client,
		url:     u.String(),
		auth:    cfg.httpAuth,
		headers: headers,
		log:     cfg.logger.New("conn", "http"),
	}, nil
}

// SetHeader adds a custom HTTP header to all later requests.
func (t *HTTPTransport) SetHeader(key, value string) {
	t.mu.Lock()
	t.headers.Set(key, value)
	t.mu.Unlock()
}

// Close releases idle connections of the underlying client.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// Prepare implements Transport.
func (t *HTTPTransport) Prepare(method string, params ...interface{}) (*Call, error) {
	return NewCall(t.ids.next(), method, params...)
}

// Send implements Transport. It performs exactly one POST and never retries.
func (t *HTTPTransport) Send(ctx context.Context, call *Call) (json.RawMessage, error) {
	start := time.Now()
	res := t.send(ctx, call)
	markOutcome(res.Err)
	rpcRequestTimer.UpdateSince(start)
	return res.Value, res.Err
}

func (t *HTTPTransport) send(ctx context.Context, call *Call) Result {
	body, err := json.Marshal(call)
	if err != nil {
		return Result{Err: err}
	}
	respBody, err := t.doRequest(ctx, body)
	if err != nil {
		return Result{Err: err}
	}
	msgs, batch, err := parseMessages(respBody)
	if err != nil {
		return Result{Err: err}
	}
	if batch || !msgs[0].isResponse() {
		return Result{Err: &InvalidResponseError{Err: errors.New("expected a single response object"), Body: respBody}}
	}
	if id, ok := msgs[0].requestID(); !ok || id != call.id {
		t.log.Debug("Response id does not match request", "reqid", call.id, "got", idForLog{msgs[0].ID})
	}
	return msgs[0].result()
}

// SendBatch implements BatchTransport. Results are matched to calls by id,
// falling back to position for elements without a usable id.
func (t *HTTPTransport) SendBatch(ctx context.Context, calls []*Call) ([]Result, error) {
	if len(calls) == 0 {
		return []Result{}, nil
	}
	rpcBatchCounter.Inc(1)
	body, err := encodeBatch(calls)
	if err != nil {
		return nil, err
	}
	respBody, err := t.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	msgs, batch, err := parseMessages(respBody)
	if err != nil {
		return nil, err
	}
	if !batch {
		// Servers answer a batch they refuse as a whole with a single error.
		if msgs[0].Error != nil {
			return nil, msgs[0].Error
		}
		return nil, &InvalidResponseError{Err: errors.New("expected a batch response"), Body: respBody}
	}
	ids := make([]RequestID, len(calls))
	for i, call := range calls {
		ids[i] = call.id
	}
	results, extra := distributeBatch(ids, msgs)
	for _, msg := range extra {
		t.log.Debug("Ignoring unexpected batch response element", "reqid", idForLog{msg.ID})
	}
	for _, res := range results {
		markOutcome(res.Err)
	}
	return results, nil
}

func (t *HTTPTransport) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "http", Err: err}
	}
	t.mu.Lock()
	req.Header = t.headers.Clone()
	t.mu.Unlock()
	if t.auth != nil {
		if err := t.auth(req.Header); err != nil {
			return nil, &TransportError{Op: "http", Err: err}
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "http", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: "http", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: "http", Err: HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       respBody,
		}}
	}
	return respBody, nil
}
