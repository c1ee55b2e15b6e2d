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

package ethclient

import (
	"encoding/json"
	"math/big"

	"github.com/findoranetwork/go-web3/common/hexutil"
)

// Header is the subset of a block header delivered by newHeads subscriptions.
type Header struct {
	Hash       string         `json:"hash"`
	ParentHash string         `json:"parentHash"`
	Miner      string         `json:"miner"`
	StateRoot  string         `json:"stateRoot"`
	Number     *hexutil.Big   `json:"number"`
	GasLimit   hexutil.Uint64 `json:"gasLimit"`
	GasUsed    hexutil.Uint64 `json:"gasUsed"`
	Time       hexutil.Uint64 `json:"timestamp"`
	Extra      hexutil.Bytes  `json:"extraData"`
	BaseFee    *hexutil.Big   `json:"baseFeePerGas,omitempty"`
}

// Log is a contract log event.
type Log struct {
	Address     string         `json:"address"`
	Topics      []string       `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      string         `json:"transactionHash"`
	TxIndex     hexutil.Uint64 `json:"transactionIndex"`
	BlockHash   string         `json:"blockHash"`
	Index       hexutil.Uint64 `json:"logIndex"`
	// Removed is true if the log was reverted by a chain reorganisation.
	Removed bool `json:"removed"`
}

// FilterQuery contains options for contract log filtering.
type FilterQuery struct {
	BlockHash string   // used by eth_getLogs, return logs only from block with this hash
	FromBlock *big.Int // beginning of the queried range, nil means genesis block
	ToBlock   *big.Int // end of the range, nil means latest block
	Addresses []string // restricts matches to events created by specific contracts

	// The Topic list restricts matches to particular event topics. Each event has a list
	// of topics. Topics matches a prefix of that list. An empty element slice matches any
	// topic. Non-empty elements represent an alternative that matches any of the
	// contained topics.
	Topics [][]string
}

// SyncStatus is the sync state reported by eth_syncing and by syncing
// subscriptions. Syncing is false once the node has caught up.
type SyncStatus struct {
	Syncing       bool
	StartingBlock uint64
	CurrentBlock  uint64
	HighestBlock  uint64
}

type rpcProgress struct {
	StartingBlock hexutil.Uint64 `json:"startingBlock"`
	CurrentBlock  hexutil.Uint64 `json:"currentBlock"`
	HighestBlock  hexutil.Uint64 `json:"highestBlock"`
}

// UnmarshalJSON accepts the plain false of a node that is not syncing, the
// progress object of eth_syncing and the {"syncing","status"} envelope of
// syncing subscriptions.
func (s *SyncStatus) UnmarshalJSON(input []byte) error {
	var syncing bool
	if err := json.Unmarshal(input, &syncing); err == nil {
		*s = SyncStatus{Syncing: syncing}
		return nil
	}
	var envelope struct {
		Syncing *bool        `json:"syncing"`
		Status  *rpcProgress `json:"status"`
	}
	if err := json.Unmarshal(input, &envelope); err != nil {
		return err
	}
	if envelope.Syncing != nil {
		*s = SyncStatus{Syncing: *envelope.Syncing}
		if envelope.Status != nil {
			s.setProgress(envelope.Status)
		}
		return nil
	}
	var p rpcProgress
	if err := json.Unmarshal(input, &p); err != nil {
		return err
	}
	*s = SyncStatus{Syncing: true}
	s.setProgress(&p)
	return nil
}

func (s *SyncStatus) setProgress(p *rpcProgress) {
	s.StartingBlock = uint64(p.StartingBlock)
	s.CurrentBlock = uint64(p.CurrentBlock)
	s.HighestBlock = uint64(p.HighestBlock)
}
