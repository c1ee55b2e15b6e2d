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
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// pendingOp is the completion slot of one in-flight call. resp has room for
// exactly one result, so fulfilling it never blocks.
type pendingOp struct {
	id     RequestID
	resp   chan Result
	sub    *subscription // set when the call is a subscribe request
	ticket *batchTicket  // set when the call was sent in a batch
}

func newPendingOp(id RequestID) *pendingOp {
	return &pendingOp{id: id, resp: make(chan Result, 1)}
}

// batchTicket tracks the calls that went out in one batch frame, in the order
// they were written.
type batchTicket struct {
	ids        []RequestID
	unanswered mapset.Set[RequestID]
}

func newBatchTicket(ids []RequestID) *batchTicket {
	return &batchTicket{ids: ids, unanswered: mapset.NewThreadUnsafeSet(ids...)}
}

// pendingTable maps request ids to their completion slots. Callers insert,
// the read loop removes. Removal and fulfilment happen together, so a slot is
// completed at most once.
type pendingTable struct {
	mu      sync.Mutex
	ops     map[RequestID]*pendingOp
	tickets []*batchTicket // open batches, oldest first
	err     error          // set when the table is closed
}

func newPendingTable() *pendingTable {
	return &pendingTable{ops: make(map[RequestID]*pendingOp)}
}

// register adds op to the table. It fails once the table has been closed.
func (t *pendingTable) register(op *pendingOp) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return t.err
	}
	if _, dup := t.ops[op.id]; dup {
		return fmt.Errorf("%w: request id %d is already pending", ErrInternal, op.id)
	}
	t.ops[op.id] = op
	rpcPendingCounter.Inc(1)
	return nil
}

// registerBatch adds all ops of a batch under a single ticket. Either all of
// them are registered or none.
func (t *pendingTable) registerBatch(ticket *batchTicket, ops []*pendingOp) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return t.err
	}
	for _, op := range ops {
		if _, dup := t.ops[op.id]; dup {
			return fmt.Errorf("%w: request id %d is already pending", ErrInternal, op.id)
		}
	}
	for _, op := range ops {
		op.ticket = ticket
		t.ops[op.id] = op
	}
	t.tickets = append(t.tickets, ticket)
	rpcPendingCounter.Inc(int64(len(ops)))
	return nil
}

// take removes the op with the given id and returns it, or nil if there is none.
func (t *pendingTable) take(id RequestID) *pendingOp {
	t.mu.Lock()
	defer t.mu.Unlock()

	op := t.ops[id]
	if op == nil {
		return nil
	}
	delete(t.ops, id)
	rpcPendingCounter.Dec(1)
	if op.ticket != nil {
		op.ticket.unanswered.Remove(id)
		if op.ticket.unanswered.Cardinality() == 0 {
			t.dropTicket(op.ticket)
		}
	}
	return op
}

func (t *pendingTable) dropTicket(ticket *batchTicket) {
	for i, tk := range t.tickets {
		if tk == ticket {
			t.tickets = append(t.tickets[:i], t.tickets[i+1:]...)
			return
		}
	}
}

// fulfill delivers res to the op with the given id. It reports false if no such
// op is pending.
func (t *pendingTable) fulfill(id RequestID, res Result) bool {
	op := t.take(id)
	if op == nil {
		return false
	}
	op.resp <- res
	return true
}

// abandon removes the op without completing it. A response arriving later is
// treated as unsolicited. It reports false if the op was already taken.
func (t *pendingTable) abandon(id RequestID) bool {
	return t.take(id) != nil
}

// ticketOf returns the batch ticket of a pending op.
func (t *pendingTable) ticketOf(id RequestID) *batchTicket {
	t.mu.Lock()
	defer t.mu.Unlock()

	if op := t.ops[id]; op != nil {
		return op.ticket
	}
	return nil
}

// oldestTicket returns the longest outstanding batch.
func (t *pendingTable) oldestTicket() *batchTicket {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.tickets) == 0 {
		return nil
	}
	return t.tickets[0]
}

// closeAll completes every pending op with err and makes later registrations
// fail with err.
func (t *pendingTable) closeAll(err error) {
	t.mu.Lock()
	if t.err != nil {
		t.mu.Unlock()
		return
	}
	t.err = err
	ops := t.ops
	t.ops = make(map[RequestID]*pendingOp)
	t.tickets = nil
	rpcPendingCounter.Dec(int64(len(ops)))
	t.mu.Unlock()

	for _, op := range ops {
		op.resp <- Result{Err: err}
	}
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}
