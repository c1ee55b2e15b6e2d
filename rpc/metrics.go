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
	"github.com/rcrowley/go-metrics"
)

var (
	rpcRequestCounter         = metrics.NewRegisteredCounter("rpc/client/requests", nil)
	rpcFailureCounter         = metrics.NewRegisteredCounter("rpc/client/failures", nil)
	rpcBatchCounter           = metrics.NewRegisteredCounter("rpc/client/batches", nil)
	rpcNotificationCounter    = metrics.NewRegisteredCounter("rpc/client/notifications", nil)
	rpcUnknownResponseCounter = metrics.NewRegisteredCounter("rpc/client/unknown/responses", nil)
	rpcUnknownSubCounter      = metrics.NewRegisteredCounter("rpc/client/unknown/subscriptions", nil)
	rpcPendingCounter         = metrics.NewRegisteredCounter("rpc/client/pending", nil)
	rpcRequestTimer           = metrics.NewRegisteredTimer("rpc/client/duration", nil)
)

// markOutcome updates the counters for one finished call.
func markOutcome(err error) {
	rpcRequestCounter.Inc(1)
	if err != nil {
		rpcFailureCounter.Inc(1)
	}
}
