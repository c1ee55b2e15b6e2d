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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, input string) []*jsonrpcMessage {
	t.Helper()
	msgs, _, err := parseMessages(json.RawMessage(input))
	require.NoError(t, err)
	return msgs
}

func resultValues(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = "err:" + r.Err.Error()
			continue
		}
		out[i] = string(r.Value)
	}
	return out
}

func TestDistributeBatch(t *testing.T) {
	tests := []struct {
		name  string
		ids   []RequestID
		input string
		want  []string
		extra int
	}{
		{
			name:  "in order",
			ids:   []RequestID{1, 2, 3},
			input: `[{"id":1,"result":"a"},{"id":2,"result":"b"},{"id":3,"result":"c"}]`,
			want:  []string{`"a"`, `"b"`, `"c"`},
		},
		{
			name:  "reversed",
			ids:   []RequestID{1, 2, 3},
			input: `[{"id":3,"result":"c"},{"id":2,"result":"b"},{"id":1,"result":"a"}]`,
			want:  []string{`"a"`, `"b"`, `"c"`},
		},
		{
			name:  "without ids",
			ids:   []RequestID{4, 5},
			input: `[{"result":["0xabc"]},{"result":"0x10"}]`,
			want:  []string{`["0xabc"]`, `"0x10"`},
		},
		{
			name:  "mixed ids",
			ids:   []RequestID{1, 2, 3},
			input: `[{"result":"x"},{"id":1,"result":"a"},{"id":3,"result":"c"}]`,
			want:  []string{`"a"`, `"x"`, `"c"`},
		},
		{
			name:  "missing element",
			ids:   []RequestID{1, 2},
			input: `[{"id":2,"result":"b"}]`,
			want:  []string{"err:" + ErrMissingBatchResponse.Error(), `"b"`},
		},
		{
			name:  "unknown id and duplicate",
			ids:   []RequestID{1},
			input: `[{"id":1,"result":"a"},{"id":1,"result":"again"},{"id":9,"result":"z"}]`,
			want:  []string{`"a"`},
			extra: 2,
		},
		{
			name:  "surplus without id",
			ids:   []RequestID{1},
			input: `[{"result":"a"},{"result":"b"}]`,
			want:  []string{`"a"`},
			extra: 1,
		},
		{
			name:  "error element",
			ids:   []RequestID{1, 2},
			input: `[{"id":1,"error":{"code":-32000,"message":"nope"}},{"id":2,"result":"b"}]`,
			want:  []string{"err:nope", `"b"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, extra := distributeBatch(tt.ids, mustParse(t, tt.input))
			require.Equal(t, tt.want, resultValues(results))
			require.Len(t, extra, tt.extra)
		})
	}
}

// fakeBatchTransport answers every call with its own method name. When gate is
// set, SendBatch blocks until it is closed.
type fakeBatchTransport struct {
	ids  idAllocator
	gate chan struct{}
	err  error
	drop int // number of trailing results to leave out

	mu      sync.Mutex
	batches [][]string
	entered chan struct{}
}

func (tr *fakeBatchTransport) Prepare(method string, params ...interface{}) (*Call, error) {
	return NewCall(tr.ids.next(), method, params...)
}

func (tr *fakeBatchTransport) Send(ctx context.Context, call *Call) (json.RawMessage, error) {
	results, err := tr.SendBatch(ctx, []*Call{call})
	if err != nil {
		return nil, err
	}
	return results[0].Value, results[0].Err
}

func (tr *fakeBatchTransport) SendBatch(ctx context.Context, calls []*Call) ([]Result, error) {
	methods := make([]string, len(calls))
	for i, c := range calls {
		methods[i] = c.Method()
	}
	tr.mu.Lock()
	tr.batches = append(tr.batches, methods)
	tr.mu.Unlock()

	if tr.entered != nil {
		tr.entered <- struct{}{}
	}
	if tr.gate != nil {
		<-tr.gate
	}
	if tr.err != nil {
		return nil, tr.err
	}
	results := make([]Result, len(calls)-tr.drop)
	for i := range results {
		results[i] = Result{Value: json.RawMessage(fmt.Sprintf("%q", calls[i].Method()))}
	}
	return results, nil
}

func TestBatchSubmit(t *testing.T) {
	tr := new(fakeBatchTransport)
	b := NewBatch(tr)
	ctx := context.Background()

	c1, _ := b.Prepare("eth_accounts")
	c2, _ := b.Prepare("eth_blockNumber")
	p1, p2 := b.Queue(c1), b.Queue(c2)
	require.Equal(t, 2, b.Len())

	select {
	case <-p1.Done():
		t.Fatal("call completed before submit")
	default:
	}
	results, err := b.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{`"eth_accounts"`, `"eth_blockNumber"`}, resultValues(results))
	require.Zero(t, b.Len())

	v, err := p2.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, `"eth_blockNumber"`, string(v))
	require.Equal(t, [][]string{{"eth_accounts", "eth_blockNumber"}}, tr.batches)
}

func TestBatchEmptySubmit(t *testing.T) {
	tr := new(fakeBatchTransport)
	results, err := NewBatch(tr).Submit(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, tr.batches, "nothing may be sent for an empty batch")
}

func TestBatchDuplicateQueue(t *testing.T) {
	b := NewBatch(new(fakeBatchTransport))
	call, _ := b.Prepare("eth_chainId")
	b.Queue(call)
	dup := b.Queue(call)
	_, err := dup.Wait(context.Background())
	require.ErrorIs(t, err, ErrInternal)
	require.Equal(t, 1, b.Len())
}

func TestBatchWholeFailure(t *testing.T) {
	failure := &TransportError{Op: "test", Err: errors.New("connection reset")}
	b := NewBatch(&fakeBatchTransport{err: failure})
	c1, _ := b.Prepare("a")
	c2, _ := b.Prepare("b")
	p1, p2 := b.Queue(c1), b.Queue(c2)

	_, err := b.Submit(context.Background())
	require.Same(t, failure, err)
	for _, p := range []*PendingCall{p1, p2} {
		_, err := p.Wait(context.Background())
		require.Same(t, failure, err)
	}
}

func TestBatchShortResults(t *testing.T) {
	b := NewBatch(&fakeBatchTransport{drop: 1})
	c1, _ := b.Prepare("a")
	c2, _ := b.Prepare("b")
	b.Queue(c1)
	p2 := b.Queue(c2)

	results, err := b.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	_, err = p2.Wait(context.Background())
	require.ErrorIs(t, err, ErrMissingBatchResponse)
}

func TestBatchQueueDuringSubmit(t *testing.T) {
	tr := &fakeBatchTransport{gate: make(chan struct{}), entered: make(chan struct{}, 2)}
	b := NewBatch(tr)
	ctx := context.Background()

	first, _ := b.Prepare("first")
	pFirst := b.Queue(first)

	submitted := make(chan error, 1)
	go func() {
		_, err := b.Submit(ctx)
		submitted <- err
	}()
	<-tr.entered

	// The submission is in flight, this call goes out with the next one.
	late, _ := b.Prepare("late")
	pLate := b.Queue(late)
	require.Equal(t, 1, b.Len())

	close(tr.gate)
	require.NoError(t, <-submitted)
	v, err := pFirst.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, `"first"`, string(v))

	select {
	case <-pLate.Done():
		t.Fatal("late call completed by earlier submission")
	case <-time.After(20 * time.Millisecond):
	}
	_, err = b.Submit(ctx)
	require.NoError(t, err)
	<-tr.entered
	v, err = pLate.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, `"late"`, string(v))
	require.Equal(t, [][]string{{"first"}, {"late"}}, tr.batches)
}

func TestBatchSendAsTransport(t *testing.T) {
	b := NewBatch(new(fakeBatchTransport))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan json.RawMessage, 1)
	go func() {
		v, err := Execute(ctx, b, "eth_gasPrice")
		if err == nil {
			done <- v
		}
		close(done)
	}()
	require.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, time.Millisecond)
	_, err := b.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, `"eth_gasPrice"`, string(<-done))
}

func TestBatchWaitCancelled(t *testing.T) {
	b := NewBatch(new(fakeBatchTransport))
	call, _ := b.Prepare("eth_syncing")
	p := b.Queue(call)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
