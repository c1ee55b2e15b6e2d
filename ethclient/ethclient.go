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

// Package ethclient provides a client for the Ethereum RPC API.
package ethclient

import (
	"context"
	"errors"
	"math/big"

	"github.com/findoranetwork/go-web3/common/hexutil"
	"github.com/findoranetwork/go-web3/rpc"
	"github.com/holiman/uint256"
)

// Client defines typed wrappers for the Ethereum RPC API.
type Client struct {
	c *rpc.Client
}

// Dial connects a client to the given URL.
func Dial(rawurl string) (*Client, error) {
	return DialContext(context.Background(), rawurl)
}

// DialContext connects a client to the given URL with context.
func DialContext(ctx context.Context, rawurl string, opts ...rpc.ClientOption) (*Client, error) {
	c, err := rpc.DialOptions(ctx, rawurl, opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(c), nil
}

// NewClient creates a client that uses the given RPC client.
func NewClient(c *rpc.Client) *Client {
	return &Client{c}
}

// Close closes the underlying RPC connection.
func (ec *Client) Close() {
	ec.c.Close()
}

// Client gets the underlying RPC client.
func (ec *Client) Client() *rpc.Client {
	return ec.c
}

// ChainID retrieves the current chain ID for transaction replay protection.
func (ec *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	err := ec.c.CallContext(ctx, &result, "eth_chainId")
	if err != nil {
		return nil, err
	}
	return (*big.Int)(&result), err
}

// BlockNumber returns the most recent block number
func (ec *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	err := ec.c.CallContext(ctx, &result, "eth_blockNumber")
	return uint64(result), err
}

// NetVersion returns the network ID.
func (ec *Client) NetVersion(ctx context.Context) (string, error) {
	var version string
	if err := ec.c.CallContext(ctx, &version, "net_version"); err != nil {
		return "", err
	}
	return version, nil
}

// Accounts returns the addresses owned by the node.
func (ec *Client) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := ec.c.CallContext(ctx, &accounts, "eth_accounts")
	return accounts, err
}

// BalanceAt returns the wei balance of the given account.
// The block number can be nil, in which case the balance is taken from the latest known block.
func (ec *Client) BalanceAt(ctx context.Context, account string, blockNumber *big.Int) (*uint256.Int, error) {
	var result hexutil.U256
	err := ec.c.CallContext(ctx, &result, "eth_getBalance", account, toBlockNumArg(blockNumber))
	if err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

// GasPrice retrieves the currently suggested gas price to allow a timely
// execution of a transaction.
func (ec *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var hex hexutil.Big
	if err := ec.c.CallContext(ctx, &hex, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return (*big.Int)(&hex), nil
}

// SendRawTransaction injects a signed, encoded transaction into the pending
// pool for execution and returns its hash.
func (ec *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (string, error) {
	var hash string
	if err := ec.c.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(rawTx)); err != nil {
		return "", err
	}
	return hash, nil
}

// SyncProgress retrieves the current progress of the sync algorithm. If there's
// no sync currently running, it returns nil.
func (ec *Client) SyncProgress(ctx context.Context) (*SyncStatus, error) {
	var status SyncStatus
	if err := ec.c.CallContext(ctx, &status, "eth_syncing"); err != nil {
		return nil, err
	}
	if !status.Syncing {
		return nil, nil
	}
	return &status, nil
}

// SubscribeNewHeads subscribes to notifications about the current blockchain head.
func (ec *Client) SubscribeNewHeads(ctx context.Context) (*rpc.Stream[*Header], error) {
	return subscribe[*Header](ctx, ec.c, "newHeads")
}

// SubscribeLogs subscribes to the results of a streaming filter query.
func (ec *Client) SubscribeLogs(ctx context.Context, q FilterQuery) (*rpc.Stream[Log], error) {
	arg, err := toFilterArg(q)
	if err != nil {
		return nil, err
	}
	return subscribe[Log](ctx, ec.c, "logs", arg)
}

// SubscribeNewPendingTransactions subscribes to the hashes of transactions
// entering the pending pool.
func (ec *Client) SubscribeNewPendingTransactions(ctx context.Context) (*rpc.Stream[string], error) {
	return subscribe[string](ctx, ec.c, "newPendingTransactions")
}

// SubscribeSyncing subscribes to changes of the sync state.
func (ec *Client) SubscribeSyncing(ctx context.Context) (*rpc.Stream[SyncStatus], error) {
	return subscribe[SyncStatus](ctx, ec.c, "syncing")
}

func subscribe[T any](ctx context.Context, c *rpc.Client, kind string, args ...interface{}) (*rpc.Stream[T], error) {
	sub, err := c.EthSubscribe(ctx, append([]interface{}{kind}, args...)...)
	if err != nil {
		return nil, err
	}
	return rpc.NewStream[T](sub), nil
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	if number.Sign() >= 0 {
		return hexutil.EncodeBig(number)
	}
	// It's negative.
	if number.IsInt64() {
		switch number.Int64() {
		case -1:
			return "pending"
		case -2:
			return "latest"
		case -3:
			return "finalized"
		case -4:
			return "safe"
		}
	}
	return "<invalid " + number.String() + ">"
}

var errBlockHashWithRange = errors.New("cannot specify both BlockHash and FromBlock/ToBlock")

func toFilterArg(q FilterQuery) (interface{}, error) {
	arg := map[string]interface{}{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != "" {
		arg["blockHash"] = q.BlockHash
		if q.FromBlock != nil || q.ToBlock != nil {
			return nil, errBlockHashWithRange
		}
	} else {
		if q.FromBlock == nil {
			arg["fromBlock"] = "0x0"
		} else {
			arg["fromBlock"] = toBlockNumArg(q.FromBlock)
		}
		arg["toBlock"] = toBlockNumArg(q.ToBlock)
	}
	return arg, nil
}
