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

package rpctest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/findoranetwork/go-web3/rpc"
	"github.com/stretchr/testify/require"
)

func TestTransportSend(t *testing.T) {
	tr := New()
	tr.AddResponse("0x10")
	tr.AddError(&rpc.JSONError{Code: -32000, Message: "nonce too low"})

	ctx := context.Background()
	v, err := rpc.Execute(ctx, tr, "eth_blockNumber")
	require.NoError(t, err)
	require.Equal(t, `"0x10"`, string(v))

	_, err = rpc.Execute(ctx, tr, "eth_sendRawTransaction", "0x01")
	var jerr *rpc.JSONError
	require.True(t, errors.As(err, &jerr))

	_, err = rpc.Execute(ctx, tr, "eth_chainId")
	require.ErrorIs(t, err, rpc.ErrUnreachable)

	tr.AssertRequest(t, "eth_blockNumber")
	tr.AssertRequest(t, "eth_sendRawTransaction", "0x01")
	tr.AssertRequest(t, "eth_chainId")
	tr.AssertNoMoreRequests(t)
}

func TestTransportClient(t *testing.T) {
	tr := New()
	tr.AddRawResponse(json.RawMessage(`["0x407d73d8a49eeb85d32cf465507dd71d507100c1"]`))
	client := rpc.NewClient(tr)

	var accounts []string
	require.NoError(t, client.Call(&accounts, "eth_accounts"))
	require.Equal(t, []string{"0x407d73d8a49eeb85d32cf465507dd71d507100c1"}, accounts)
	require.False(t, client.SupportsSubscriptions())
	tr.AssertRequest(t, "eth_accounts")
	tr.AssertNoMoreRequests(t)
}

func TestTransportBatch(t *testing.T) {
	tr := New()
	tr.AddResponse([]string{"0xabc"})
	tr.AddResponse("0x10")

	client := rpc.NewClient(tr)
	var (
		accounts []string
		number   string
	)
	batch := []rpc.BatchElem{
		{Method: "eth_accounts", Result: &accounts},
		{Method: "eth_blockNumber", Result: &number},
		{Method: "net_version"},
	}
	require.NoError(t, client.BatchCall(batch))
	require.Equal(t, []string{"0xabc"}, accounts)
	require.Equal(t, "0x10", number)
	require.ErrorIs(t, batch[2].Error, rpc.ErrUnreachable)

	tr.AssertRequest(t, "eth_accounts")
	tr.AssertRequest(t, "eth_blockNumber")
	tr.AssertRequest(t, "net_version")
	tr.AssertNoMoreRequests(t)
}

func TestTransportCancelled(t *testing.T) {
	tr := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rpc.Execute(ctx, tr, "eth_chainId")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, tr.Requests())
}
