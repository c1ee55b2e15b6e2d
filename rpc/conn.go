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
	"sync"
	"sync/atomic"
	"time"

	"github.com/findoranetwork/go-web3/log"
	"golang.org/x/sync/errgroup"
)

// Abandoned subscribe calls are remembered this long, so that a late
// confirmation can still be unsubscribed.
const orphanSubscribeTTL = time.Minute

// ConnState is the lifecycle state of a duplex connection.
type ConnState int32

const (
	StateConnecting ConnState = iota // handshake in progress
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// frameCodec reads and writes whole JSON-RPC frames on a duplex stream.
type frameCodec interface {
	// readFrame blocks until one complete JSON value has arrived. It is only
	// called by the read loop.
	readFrame() (json.RawMessage, error)
	// writeFrame writes one frame. It is only called by the write loop.
	writeFrame(ctx context.Context, frame []byte) error
	// close unblocks readFrame and writeFrame. It may be called more than once.
	close() error
}

type writeOp struct {
	frame []byte
	done  chan error
}

// Conn is a JSON-RPC connection over a duplex stream: a Unix domain socket, a
// Windows named pipe or a websocket. Responses are matched to calls by request
// id, so any number of calls can be in flight at once, and the server may push
// subscription notifications.
type Conn struct {
	kind    string
	codec   frameCodec
	ids     idAllocator
	pending *pendingTable
	subs    *subscriptionRouter
	log     log.Logger

	state    atomic.Int32
	writeCh  chan *writeOp
	quit     chan struct{} // closed by Close
	quitOnce sync.Once
	didClose chan struct{} // closed after teardown
	closeErr error         // error handed to calls after teardown

	orphanMu sync.Mutex
	orphans  map[RequestID]orphanSubscribe // abandoned subscribe calls
}

type orphanSubscribe struct {
	namespace string
	expires   time.Time
}

// newConn creates a connection in state StateConnecting. It does nothing until
// connect or open is called.
func newConn(kind string, cfg *clientConfig) *Conn {
	logger := cfg.logger.New("conn", kind)
	c := &Conn{
		kind:     kind,
		pending:  newPendingTable(),
		subs:     newSubscriptionRouter(logger),
		log:      logger,
		writeCh:  make(chan *writeOp),
		quit:     make(chan struct{}),
		didClose: make(chan struct{}),
		orphans:  make(map[RequestID]orphanSubscribe),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// connect runs the handshake and opens the connection. If the handshake fails
// the connection moves straight to StateClosed and err is returned.
func (c *Conn) connect(ctx context.Context, handshake func(context.Context) (frameCodec, error)) error {
	codec, err := handshake(ctx)
	if err != nil {
		c.closeErr = err
		c.state.Store(int32(StateClosed))
		c.pending.closeAll(err)
		c.log.Debug("RPC connection failed", "err", err)
		close(c.didClose)
		return err
	}
	c.open(codec)
	return nil
}

// open launches the read and write loops on codec. The first of them to fail
// takes the other one down and the connection is torn down.
func (c *Conn) open(codec frameCodec) {
	c.codec = codec
	c.state.Store(int32(StateOpen))
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(c.readLoop)
	g.Go(func() error { return c.writeLoop(ctx) })
	g.Go(func() error {
		var err error
		select {
		case <-ctx.Done():
		case <-c.quit:
			err = ErrClientQuit
		}
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		c.codec.close()
		return err
	})
	go func() {
		c.teardown(g.Wait())
	}()
}

func (c *Conn) readLoop() error {
	for {
		frame, err := c.codec.readFrame()
		if err != nil {
			return err
		}
		c.handleFrame(frame)
	}
}

func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case op := <-c.writeCh:
			err := c.codec.writeFrame(ctx, op.frame)
			op.done <- err
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// teardown resolves every pending call and ends every subscription.
func (c *Conn) teardown(cause error) {
	select {
	case <-c.quit:
		cause = ErrClientQuit
	default:
	}
	if cause == nil {
		cause = errors.New("connection closed")
	}
	c.closeErr = unreachable(cause)
	c.state.Store(int32(StateClosed))
	pending := c.pending.len()
	c.pending.closeAll(c.closeErr)
	c.subs.closeAll(c.closeErr)

	if errors.Is(cause, ErrClientQuit) {
		c.log.Debug("RPC connection closed", "pending", pending)
	} else {
		c.log.Warn("RPC connection lost", "pending", pending, "err", cause)
	}
	close(c.didClose)
}

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// Close shuts the connection down and waits until every pending call has been
// resolved.
func (c *Conn) Close() error {
	c.quitOnce.Do(func() { close(c.quit) })
	<-c.didClose
	return nil
}

// Closed returns a channel that is closed when the connection is gone.
func (c *Conn) Closed() <-chan struct{} {
	return c.didClose
}

// Prepare implements Transport.
func (c *Conn) Prepare(method string, params ...interface{}) (*Call, error) {
	return NewCall(c.ids.next(), method, params...)
}

// Send implements Transport.
func (c *Conn) Send(ctx context.Context, call *Call) (json.RawMessage, error) {
	start := time.Now()
	frame, err := json.Marshal(call)
	if err != nil {
		return nil, err
	}
	op := newPendingOp(call.id)
	if err := c.dispatch(ctx, frame, op); err != nil {
		markOutcome(err)
		return nil, err
	}
	res := c.wait(ctx, op)
	markOutcome(res.Err)
	rpcRequestTimer.UpdateSince(start)
	return res.Value, res.Err
}

// SendBatch implements BatchTransport. The calls are written as one frame and
// their responses are matched by id, interleaved with anything else arriving
// on the connection.
func (c *Conn) SendBatch(ctx context.Context, calls []*Call) ([]Result, error) {
	if len(calls) == 0 {
		return []Result{}, nil
	}
	rpcBatchCounter.Inc(1)
	frame, err := encodeBatch(calls)
	if err != nil {
		return nil, err
	}
	var (
		ids = make([]RequestID, len(calls))
		ops = make([]*pendingOp, len(calls))
	)
	for i, call := range calls {
		ids[i] = call.id
		ops[i] = newPendingOp(call.id)
	}
	if err := c.pending.registerBatch(newBatchTicket(ids), ops); err != nil {
		return nil, err
	}
	if err := c.write(ctx, frame); err != nil {
		for _, op := range ops {
			c.pending.abandon(op.id)
		}
		return nil, err
	}
	results := make([]Result, len(ops))
	for i, op := range ops {
		results[i] = c.wait(ctx, op)
		markOutcome(results[i].Err)
	}
	return results, nil
}

// Subscribe implements DuplexTransport.
func (c *Conn) Subscribe(ctx context.Context, namespace string, args ...interface{}) (*ClientSubscription, error) {
	call, err := c.Prepare(namespace+subscribeMethodSuffix, args...)
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(call)
	if err != nil {
		return nil, err
	}
	op := newPendingOp(call.id)
	op.sub = newSubscription(c, namespace, c.subs)
	if err := c.pending.register(op); err != nil {
		return nil, err
	}
	var res Result
	if err := c.write(ctx, frame); err != nil {
		if ctx.Err() == nil {
			c.pending.abandon(op.id)
			return nil, err
		}
		// The frame may have gone out anyway.
		res = c.abandonSubscribe(ctx, op, namespace)
	} else {
		select {
		case res = <-op.resp:
		case <-ctx.Done():
			res = c.abandonSubscribe(ctx, op, namespace)
		}
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return newClientSubscription(op.sub), nil
}

// abandonSubscribe gives up on a subscribe call whose context ended. When the
// server confirms the subscription later it is unsubscribed right away. If the
// read loop has already claimed the call, its result is returned instead.
func (c *Conn) abandonSubscribe(ctx context.Context, op *pendingOp, namespace string) Result {
	now := time.Now()
	c.orphanMu.Lock()
	for id, o := range c.orphans {
		if now.After(o.expires) {
			delete(c.orphans, id)
		}
	}
	c.orphans[op.id] = orphanSubscribe{namespace: namespace, expires: now.Add(orphanSubscribeTTL)}
	c.orphanMu.Unlock()

	if c.pending.abandon(op.id) {
		return Result{Err: ctx.Err()}
	}
	c.takeOrphan(op.id)
	return <-op.resp
}

// takeOrphan removes the abandoned subscribe call with the given id.
func (c *Conn) takeOrphan(id RequestID) (string, bool) {
	c.orphanMu.Lock()
	defer c.orphanMu.Unlock()

	o, ok := c.orphans[id]
	if !ok {
		return "", false
	}
	delete(c.orphans, id)
	return o.namespace, time.Now().Before(o.expires)
}

// dropOrphan unsubscribes a subscription confirmed after its caller gave up.
// The unsubscribe call is made in the background, the read loop must not wait
// for its response.
func (c *Conn) dropOrphan(reqid RequestID, namespace string, msg *jsonrpcMessage) {
	var id SubscriptionID
	if msg.Error != nil || json.Unmarshal(msg.Result, &id) != nil || id == "" {
		return
	}
	c.log.Debug("Unsubscribing abandoned subscription", "reqid", reqid, "sub", id)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		defer cancel()
		if _, err := Execute(ctx, c, namespace+unsubscribeMethodSuffix, id); err != nil {
			c.log.Debug("Failed to unsubscribe abandoned subscription", "sub", id, "err", err)
		}
	}()
}

// failBatch completes every call of the oldest outstanding batch with err.
// Servers answer a batch they refuse as a whole with a single error object.
func (c *Conn) failBatch(err *JSONError) bool {
	ticket := c.pending.oldestTicket()
	if ticket == nil {
		return false
	}
	c.log.Debug("RPC batch rejected", "calls", len(ticket.ids), "err", err)
	for _, id := range ticket.ids {
		if op := c.pending.take(id); op != nil {
			c.complete(op, Result{Err: err})
		}
	}
	return true
}

// dispatch registers op and hands the frame to the write loop. The op is
// registered first so that an immediate response cannot be missed.
func (c *Conn) dispatch(ctx context.Context, frame []byte, op *pendingOp) error {
	if err := c.pending.register(op); err != nil {
		return err
	}
	if err := c.write(ctx, frame); err != nil {
		c.pending.abandon(op.id)
		return err
	}
	return nil
}

func (c *Conn) write(ctx context.Context, frame []byte) error {
	op := &writeOp{frame: frame, done: make(chan error, 1)}
	select {
	case c.writeCh <- op:
	case <-c.didClose:
		return c.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-op.done:
		if err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		return nil
	case <-c.didClose:
		return c.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait blocks until op is resolved. If ctx ends first the op is abandoned,
// unless the read loop has already claimed it, in which case its result is
// on the way.
func (c *Conn) wait(ctx context.Context, op *pendingOp) Result {
	select {
	case res := <-op.resp:
		return res
	case <-ctx.Done():
		if c.pending.abandon(op.id) {
			return Result{Err: ctx.Err()}
		}
		return <-op.resp
	}
}

// handleFrame dispatches one frame read from the connection. Frames that do not
// parse are dropped, the stream itself is still intact.
func (c *Conn) handleFrame(frame json.RawMessage) {
	msgs, batch, err := parseMessages(frame)
	if err != nil {
		c.log.Debug("Dropping malformed frame", "err", err, "len", len(frame))
		return
	}
	if batch {
		c.handleBatch(msgs)
		return
	}
	msg := msgs[0]
	if _, ok := msg.requestID(); !ok && msg.isResponse() && msg.Error != nil && c.failBatch(msg.Error) {
		return
	}
	c.handleMsg(msg)
}

func (c *Conn) handleMsg(msg *jsonrpcMessage) {
	start := time.Now()
	switch {
	case msg.isSubscriptionPush():
		n, err := msg.notification()
		if err != nil {
			c.log.Debug("Dropping invalid subscription message", "err", err)
			return
		}
		c.subs.deliver(n)
	case msg.isResponse():
		c.handleResponse(msg)
		c.log.Trace("Handled RPC response", "reqid", idForLog{msg.ID}, "t", time.Since(start))
	default:
		c.log.Debug("Ignoring server notification", "method", msg.Method)
	}
}

func (c *Conn) handleResponse(msg *jsonrpcMessage) {
	id, ok := msg.requestID()
	if !ok {
		c.unsolicited(msg)
		return
	}
	op := c.pending.take(id)
	if op == nil {
		if namespace, ok := c.takeOrphan(id); ok {
			c.dropOrphan(id, namespace, msg)
			return
		}
		c.unsolicited(msg)
		return
	}
	c.complete(op, msg.result())
}

func (c *Conn) unsolicited(msg *jsonrpcMessage) {
	rpcUnknownResponseCounter.Inc(1)
	c.log.Debug("Unsolicited RPC response", "reqid", idForLog{msg.ID})
}

// handleBatch distributes a batch frame over the calls of the batch it answers.
// Elements that belong to no call of that batch are handled one by one.
func (c *Conn) handleBatch(msgs []*jsonrpcMessage) {
	var ticket *batchTicket
	for _, msg := range msgs {
		if id, ok := msg.requestID(); ok {
			if ticket = c.pending.ticketOf(id); ticket != nil {
				break
			}
		}
	}
	if ticket == nil {
		ticket = c.pending.oldestTicket()
	}
	if ticket == nil {
		for _, msg := range msgs {
			c.handleMsg(msg)
		}
		return
	}
	results, extra := distributeBatch(ticket.ids, msgs)
	for i, id := range ticket.ids {
		if op := c.pending.take(id); op != nil {
			c.complete(op, results[i])
		}
	}
	for _, msg := range extra {
		c.handleMsg(msg)
	}
}

// complete resolves op. For subscribe calls the notification sink is
// registered before the caller is woken, so pushes that directly follow the
// response are not lost.
func (c *Conn) complete(op *pendingOp, res Result) {
	if op.sub != nil && res.Err == nil {
		var id SubscriptionID
		err := json.Unmarshal(res.Value, &id)
		if err == nil && id == "" {
			err = errors.New("empty subscription id")
		}
		switch {
		case err != nil:
			res = Result{Err: &DecodeError{Err: err}}
		default:
			op.sub.mu.Lock()
			op.sub.id = id
			op.sub.mu.Unlock()
			if c.subs.add(op.sub) {
				c.log.Trace("Subscription registered", "reqid", op.id, "sub", id)
			} else {
				res = Result{Err: ErrClientQuit}
			}
		}
	}
	op.resp <- res
}
