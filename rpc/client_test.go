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
	"io"
	"net/http"
	"runtime"
	"testing"
	"time"

	"github.com/findoranetwork/go-web3/internal/testlog"
	"github.com/findoranetwork/go-web3/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCallResultKinds(t *testing.T) {
	client := NewClient(newTestHTTP(t, echoHandler(t)))
	ctx := context.Background()

	var n int
	require.NoError(t, client.CallContext(ctx, &n, "test_echo", 42))
	require.Equal(t, 42, n)

	require.NoError(t, client.CallContext(ctx, nil, "test_echo", 1))

	err := client.CallContext(ctx, n, "test_echo", 1)
	require.ErrorContains(t, err, "must be pointer")

	var s string
	err = client.CallContext(ctx, &s, "test_echo", 1)
	var derr *DecodeError
	require.True(t, errors.As(err, &derr), "have %v", err)
}

func TestClientBatchCall(t *testing.T) {
	tr := newTestHTTP(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqs []jsonrpcMessage
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			t.Error(err)
			return
		}
		io.WriteString(w, `[`+
			response(reqs[0].ID, `["0x407d73d8a49eeb85d32cf465507dd71d507100c1"]`)+`,`+
			`{"jsonrpc":"2.0","id":`+string(reqs[1].ID)+`,"error":{"code":-32000,"message":"header not found"}},`+
			response(reqs[2].ID, `"not a number"`)+`]`)
	}))
	client := NewClient(tr)

	var (
		accounts []string
		block    map[string]interface{}
		gas      uint64
	)
	batch := []BatchElem{
		{Method: "eth_accounts", Result: &accounts},
		{Method: "eth_getBlockByNumber", Args: []interface{}{"0x1000000", false}, Result: &block},
		{Method: "eth_gasPrice", Result: &gas},
		{Method: "bad_params", Args: []interface{}{func() {}}},
	}
	require.NoError(t, client.BatchCallContext(context.Background(), batch))

	assert.NoError(t, batch[0].Error)
	assert.Equal(t, []string{"0x407d73d8a49eeb85d32cf465507dd71d507100c1"}, accounts)
	var jerr *JSONError
	assert.True(t, errors.As(batch[1].Error, &jerr))
	var derr *DecodeError
	assert.True(t, errors.As(batch[2].Error, &derr))
	assert.Error(t, batch[3].Error)
}

func TestClientHTTPCapabilities(t *testing.T) {
	client := NewClient(newTestHTTP(t, echoHandler(t)))
	require.False(t, client.SupportsSubscriptions())

	_, err := client.EthSubscribe(context.Background(), "newHeads")
	require.ErrorIs(t, err, ErrNotificationsUnsupported)

	b, err := client.NewBatch()
	require.NoError(t, err)
	call, _ := b.Prepare("net_version")
	p := b.Queue(call)
	_, err = b.Submit(context.Background())
	require.NoError(t, err)
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, `"net_version"`, string(v))
}

func TestClientWithoutBatching(t *testing.T) {
	client := NewClient(&recordingTransport{result: json.RawMessage("true")})
	require.ErrorIs(t, client.BatchCallContext(context.Background(), []BatchElem{{Method: "a"}}), ErrBatchUnsupported)
	_, err := client.NewBatch()
	require.ErrorIs(t, err, ErrBatchUnsupported)
	require.NoError(t, client.Close())
}

func TestDialUnknownScheme(t *testing.T) {
	_, err := DialOptions(context.Background(), "ftp://localhost:8545")
	require.ErrorContains(t, err, `no known transport for URL scheme "ftp"`)
}

func TestDialHTTPScheme(t *testing.T) {
	client, err := DialOptions(context.Background(), "http://localhost:8545", WithLogger(testlog.Logger(t, log.LevelDebug)))
	require.NoError(t, err)
	defer client.Close()
	_, ok := client.Transport().(*HTTPTransport)
	require.True(t, ok)
}

func TestEither(t *testing.T) {
	ctx := context.Background()
	httpTr := newTestHTTP(t, echoHandler(t))

	e := EitherLeft(httpTr)
	require.True(t, e.IsLeft())
	require.False(t, e.SupportsSubscriptions())
	v, err := Execute(ctx, e, "test_echo", "left")
	require.NoError(t, err)
	require.Equal(t, `"left"`, string(v))

	call, _ := e.Prepare("net_version")
	results, err := e.SendBatch(ctx, []*Call{call})
	require.NoError(t, err)
	require.Equal(t, []string{`"net_version"`}, resultValues(results))

	_, err = e.Subscribe(ctx, "eth", "newHeads")
	require.ErrorIs(t, err, ErrNotificationsUnsupported)

	rec := &recordingTransport{result: json.RawMessage(`"right"`)}
	e = EitherRight(rec)
	require.False(t, e.IsLeft())
	require.Same(t, rec, e.Active())
	v, err = Execute(ctx, e, "eth_chainId")
	require.NoError(t, err)
	require.Equal(t, `"right"`, string(v))
	_, err = e.SendBatch(ctx, nil)
	require.ErrorIs(t, err, ErrBatchUnsupported)
	require.NoError(t, e.Close())
}

func TestEitherDuplex(t *testing.T) {
	c, p := newPipeConn(t)
	defer p.close()

	e := EitherRight(c)
	require.True(t, e.SupportsSubscriptions())
	require.True(t, NewClient(e).SupportsSubscriptions())

	errCh := make(chan error, 1)
	go func() {
		sub, err := NewClient(e).EthSubscribe(context.Background(), "newHeads")
		if err == nil {
			sub.Unsubscribe(context.Background())
		}
		errCh <- err
	}()
	req := p.nextRequest()
	p.send(response(req.ID, `"0x1"`))
	req = p.nextRequest()
	require.Equal(t, "eth_unsubscribe", req.Method)
	p.send(response(req.ID, "true"))
	require.NoError(t, <-errCh)
	require.NoError(t, e.Close())
}

func TestDialedClientClosedWhenCollected(t *testing.T) {
	conn, p := newPipeConn(t)
	defer p.close()

	newDialedClient(conn)
	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-conn.Closed():
			require.Equal(t, StateClosed, conn.State())
			return
		case <-deadline:
			t.Fatal("transport not closed after the client was collected")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
