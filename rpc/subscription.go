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
	"container/list"
	"context"
	"encoding/json"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/findoranetwork/go-web3/log"
)

const (
	// Subscriptions are ended when the consumer cannot keep up. Pushes are
	// buffered in a list that shrinks as the consumer reads; once it holds
	// this many payloads the subscription is dropped.
	maxClientSubscriptionBuffer = 20000

	unsubscribeTimeout = 10 * time.Second
)

// subscription is the notification sink registered with the router. The
// router and the caller's handle share it.
type subscription struct {
	transport Transport
	namespace string
	router    *subscriptionRouter

	mu     sync.Mutex
	id     SubscriptionID
	buffer *list.List
	notify chan struct{}
	done   chan struct{}
	ended  bool
	endErr error // returned by next once the buffer is drained
	cause  error // why the subscription ended, nil after unsubscribe

	unsubOnce sync.Once
	unsubOK   bool
	unsubErr  error
}

func newSubscription(t Transport, namespace string, router *subscriptionRouter) *subscription {
	return &subscription{
		transport: t,
		namespace: namespace,
		router:    router,
		buffer:    list.New(),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (s *subscription) subID() SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// deliver queues a payload. It never blocks.
func (s *subscription) deliver(payload json.RawMessage) bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	if s.buffer.Len() >= maxClientSubscriptionBuffer {
		id := s.id
		s.endLocked(ErrSubscriptionQueueOverflow, ErrSubscriptionQueueOverflow)
		s.mu.Unlock()
		s.router.log.Warn("Subscription buffer full, dropping subscription", "sub", id)
		go s.unsubscribeAsync()
		return false
	}
	s.buffer.PushBack(payload)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// end marks the subscription as finished. Buffered payloads remain readable.
func (s *subscription) end(endErr, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(endErr, cause)
}

func (s *subscription) endLocked(endErr, cause error) {
	if s.ended {
		return
	}
	s.ended = true
	s.endErr = endErr
	s.cause = cause
	close(s.done)
}

func (s *subscription) next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.mu.Lock()
		if s.buffer.Len() > 0 {
			v := s.buffer.Remove(s.buffer.Front()).(json.RawMessage)
			s.mu.Unlock()
			return v, nil
		}
		if s.ended {
			err := s.endErr
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *subscription) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// unsubscribe removes the sink and asks the server to drop the subscription.
// Only the first call talks to the server, later calls return its outcome.
func (s *subscription) unsubscribe(ctx context.Context) (bool, error) {
	s.unsubOnce.Do(func() {
		id := s.subID()
		s.router.remove(id)
		s.end(io.EOF, nil)

		raw, err := Execute(ctx, s.transport, s.namespace+unsubscribeMethodSuffix, id)
		if err == nil {
			if derr := json.Unmarshal(raw, &s.unsubOK); derr != nil {
				err = &DecodeError{Err: derr}
			}
		}
		s.unsubErr = err
		if err != nil {
			s.router.log.Trace("Unsubscribe failed", "sub", id, "err", err)
		}
	})
	return s.unsubOK, s.unsubErr
}

func (s *subscription) unsubscribeAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()
	s.unsubscribe(ctx)
}

// subscriptionRouter forwards subscription pushes to their sinks.
type subscriptionRouter struct {
	mu     sync.Mutex
	subs   map[SubscriptionID]*subscription
	closed bool
	log    log.Logger
}

func newSubscriptionRouter(logger log.Logger) *subscriptionRouter {
	return &subscriptionRouter{subs: make(map[SubscriptionID]*subscription), log: logger}
}

// add registers s under its id. It fails once the router has been closed.
func (r *subscriptionRouter) add(s *subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.subs[s.subID()] = s
	return true
}

func (r *subscriptionRouter) remove(id SubscriptionID) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

func (r *subscriptionRouter) lookup(id SubscriptionID) *subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[id]
}

// deliver forwards a push to its sink. Pushes for unknown subscriptions are
// logged and dropped.
func (r *subscriptionRouter) deliver(n *Notification) bool {
	sub := r.lookup(n.Subscription)
	if sub == nil {
		rpcUnknownSubCounter.Inc(1)
		r.log.Debug("Dropping notification for unknown subscription", "sub", n.Subscription, "method", n.Method)
		return false
	}
	rpcNotificationCounter.Inc(1)
	return sub.deliver(n.Result)
}

// closeAll ends every subscription. Consumers see the end of the stream after
// reading what is already buffered.
func (r *subscriptionRouter) closeAll(cause error) {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[SubscriptionID]*subscription)
	r.closed = true
	r.mu.Unlock()

	for _, s := range subs {
		s.end(io.EOF, cause)
	}
}

func (r *subscriptionRouter) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// ClientSubscription is a subscription established through Subscribe. Payloads
// are read with Next. A subscription that becomes unreachable without
// Unsubscribe is unsubscribed in the background.
type ClientSubscription struct {
	s *subscription
}

func newClientSubscription(s *subscription) *ClientSubscription {
	sub := &ClientSubscription{s: s}
	runtime.SetFinalizer(sub, (*ClientSubscription).finalize)
	return sub
}

func (sub *ClientSubscription) finalize() {
	go sub.s.unsubscribeAsync()
}

// ID returns the server-assigned subscription id.
func (sub *ClientSubscription) ID() SubscriptionID {
	return sub.s.subID()
}

// Next blocks until the next payload arrives. Payloads are delivered once, in
// the order they were received. When the subscription has ended Next returns
// io.EOF, or ErrSubscriptionQueueOverflow if the consumer fell behind.
func (sub *ClientSubscription) Next(ctx context.Context) (json.RawMessage, error) {
	return sub.s.next(ctx)
}

// Done is closed when the subscription has ended. Buffered payloads may still
// be read after that.
func (sub *ClientSubscription) Done() <-chan struct{} {
	return sub.s.done
}

// Err returns the reason the subscription ended. It is nil while the
// subscription is live and after Unsubscribe.
func (sub *ClientSubscription) Err() error {
	return sub.s.err()
}

// Unsubscribe ends the subscription and calls <namespace>_unsubscribe. It can
// safely be called more than once.
func (sub *ClientSubscription) Unsubscribe(ctx context.Context) (bool, error) {
	runtime.SetFinalizer(sub, nil)
	return sub.s.unsubscribe(ctx)
}

// Stream decodes the payloads of a subscription into values of type T.
type Stream[T any] struct {
	sub *ClientSubscription
}

// NewStream wraps sub.
func NewStream[T any](sub *ClientSubscription) *Stream[T] {
	return &Stream[T]{sub: sub}
}

// Next returns the next decoded payload. A payload that does not decode
// into T yields a DecodeError; the stream stays usable.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	var v T
	raw, err := s.sub.Next(ctx)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &DecodeError{Err: err}
	}
	return v, nil
}

// ID returns the server-assigned subscription id.
func (s *Stream[T]) ID() SubscriptionID {
	return s.sub.ID()
}

// Err returns the reason the stream ended.
func (s *Stream[T]) Err() error {
	return s.sub.Err()
}

// Done is closed when the stream has ended.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.sub.Done()
}

// Subscription returns the underlying subscription.
func (s *Stream[T]) Subscription() *ClientSubscription {
	return s.sub
}

// Unsubscribe ends the stream.
func (s *Stream[T]) Unsubscribe(ctx context.Context) (bool, error) {
	return s.sub.Unsubscribe(ctx)
}
