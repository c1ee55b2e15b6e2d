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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingFulfillOnce(t *testing.T) {
	table := newPendingTable()
	op := newPendingOp(1)
	require.NoError(t, table.register(op))
	require.Error(t, table.register(newPendingOp(1)), "duplicate id")

	require.True(t, table.fulfill(1, Result{Value: []byte(`"a"`)}))
	require.False(t, table.fulfill(1, Result{Value: []byte(`"b"`)}))
	require.Equal(t, `"a"`, string((<-op.resp).Value))
	require.Zero(t, table.len())
}

func TestPendingAbandon(t *testing.T) {
	table := newPendingTable()
	op := newPendingOp(3)
	require.NoError(t, table.register(op))
	require.True(t, table.abandon(3))
	require.False(t, table.abandon(3))
	require.False(t, table.fulfill(3, Result{}))
	require.Len(t, op.resp, 0)
}

func TestPendingCloseAll(t *testing.T) {
	table := newPendingTable()
	ops := []*pendingOp{newPendingOp(1), newPendingOp(2), newPendingOp(3)}
	for _, op := range ops {
		require.NoError(t, table.register(op))
	}
	closeErr := unreachable(ErrClientQuit)
	table.closeAll(closeErr)
	for _, op := range ops {
		res := <-op.resp
		require.True(t, errors.Is(res.Err, ErrUnreachable))
		require.True(t, errors.Is(res.Err, ErrClientQuit))
	}
	require.False(t, table.fulfill(1, Result{}))
	require.ErrorIs(t, table.register(newPendingOp(4)), ErrUnreachable)

	// A second close must not deliver anything.
	table.closeAll(errors.New("again"))
	for _, op := range ops {
		require.Len(t, op.resp, 0)
	}
}

func TestPendingTickets(t *testing.T) {
	table := newPendingTable()
	ops := []*pendingOp{newPendingOp(1), newPendingOp(2)}
	ticket := newBatchTicket([]RequestID{1, 2})
	require.NoError(t, table.registerBatch(ticket, ops))
	require.Same(t, ticket, table.ticketOf(2))
	require.Same(t, ticket, table.oldestTicket())

	require.True(t, table.fulfill(2, Result{}))
	require.Same(t, ticket, table.oldestTicket())
	require.True(t, table.abandon(1))
	require.Nil(t, table.oldestTicket(), "ticket is dropped once every member is gone")
}

func TestPendingConcurrentFulfill(t *testing.T) {
	const n = 200
	table := newPendingTable()
	ops := make([]*pendingOp, n)
	for i := range ops {
		ops[i] = newPendingOp(RequestID(i + 1))
		require.NoError(t, table.register(ops[i]))
	}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		fulfilled int
	)
	// Several goroutines race for every id, only one may win.
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= n; i++ {
				if table.fulfill(RequestID(i), Result{}) {
					mu.Lock()
					fulfilled++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, n, fulfilled)
	for _, op := range ops {
		require.Len(t, op.resp, 1)
	}
}
