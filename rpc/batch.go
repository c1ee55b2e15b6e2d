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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// distributeBatch matches the elements of a batch response to the calls with
// the given ids, which are in submission order. Elements carrying a known id
// are matched by id. Elements without a usable id take their own position if
// it is still open, otherwise the first open position. Calls left without a
// response get ErrMissingBatchResponse. Elements that match no call are
// returned as extra.
func distributeBatch(ids []RequestID, msgs []*jsonrpcMessage) (results []Result, extra []*jsonrpcMessage) {
	var (
		index    = make(map[RequestID]int, len(ids))
		answered = mapset.NewThreadUnsafeSet[int]()
		noID     []int
	)
	results = make([]Result, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	for pos, msg := range msgs {
		if !msg.isResponse() {
			extra = append(extra, msg)
			continue
		}
		id, ok := msg.requestID()
		if !ok {
			noID = append(noID, pos)
			continue
		}
		i, known := index[id]
		if !known || answered.Contains(i) {
			extra = append(extra, msg)
			continue
		}
		answered.Add(i)
		results[i] = msg.result()
	}
	for _, pos := range noID {
		i := pos
		if i >= len(ids) || answered.Contains(i) {
			i = firstOpen(len(ids), answered)
		}
		if i < 0 {
			extra = append(extra, msgs[pos])
			continue
		}
		answered.Add(i)
		results[i] = msgs[pos].result()
	}
	for i := range results {
		if !answered.Contains(i) {
			results[i] = Result{Err: ErrMissingBatchResponse}
		}
	}
	return results, extra
}

func firstOpen(n int, answered mapset.Set[int]) int {
	for i := 0; i < n; i++ {
		if !answered.Contains(i) {
			return i
		}
	}
	return -1
}

// PendingCall is a call queued in a Batch.
type PendingCall struct {
	call *Call
	done chan struct{}
	res  Result
}

func (p *PendingCall) complete(res Result) {
	p.res = res
	close(p.done)
}

// Call returns the queued call.
func (p *PendingCall) Call() *Call {
	return p.call
}

// Done is closed once the call has a result.
func (p *PendingCall) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the batch holding the call was submitted and answered.
func (p *PendingCall) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.res.Value, p.res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Batch collects prepared calls and sends them in one round trip on Submit.
// Batch is itself a Transport: Send queues the call and waits until a later
// Submit has delivered its result.
type Batch struct {
	transport BatchTransport

	mu     sync.Mutex
	queue  []*PendingCall
	queued mapset.Set[RequestID]
}

// NewBatch creates an empty batch on top of t.
func NewBatch(t BatchTransport) *Batch {
	return &Batch{transport: t, queued: mapset.NewThreadUnsafeSet[RequestID]()}
}

// Prepare implements Transport.
func (b *Batch) Prepare(method string, params ...interface{}) (*Call, error) {
	return b.transport.Prepare(method, params...)
}

// Send implements Transport. It blocks until the call has been submitted with
// the batch and a result is available.
func (b *Batch) Send(ctx context.Context, call *Call) (json.RawMessage, error) {
	return b.Queue(call).Wait(ctx)
}

// Queue adds call to the next submission. A call that is already queued is
// rejected.
func (b *Batch) Queue(call *Call) *PendingCall {
	p := &PendingCall{call: call, done: make(chan struct{})}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queued.Contains(call.id) {
		p.complete(Result{Err: fmt.Errorf("%w: call %d is already queued", ErrInternal, call.id)})
		return p
	}
	b.queued.Add(call.id)
	b.queue = append(b.queue, p)
	return p
}

// Len returns the number of queued calls.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Submit sends every queued call in one batch and delivers the results to the
// pending calls. The queue is swapped out at once, so calls queued while a
// submission is in flight go out with the next one. The returned results are
// in queue order. If the batch failed as a whole, every pending call receives
// the error.
func (b *Batch) Submit(ctx context.Context) ([]Result, error) {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.queued = mapset.NewThreadUnsafeSet[RequestID]()
	b.mu.Unlock()

	if len(queue) == 0 {
		return []Result{}, nil
	}
	calls := make([]*Call, len(queue))
	for i, p := range queue {
		calls[i] = p.call
	}
	results, err := b.transport.SendBatch(ctx, calls)
	if err != nil {
		for _, p := range queue {
			p.complete(Result{Err: err})
		}
		return nil, err
	}
	if len(results) != len(queue) {
		fixed := make([]Result, len(queue))
		n := copy(fixed, results)
		for i := n; i < len(fixed); i++ {
			fixed[i] = Result{Err: ErrMissingBatchResponse}
		}
		results = fixed
	}
	for i, p := range queue {
		p.complete(results[i])
	}
	return results, nil
}
