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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/findoranetwork/go-web3/ethclient"
	"github.com/findoranetwork/go-web3/log"
	"github.com/findoranetwork/go-web3/rpc"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var (
	methodColor = color.New(color.FgCyan).SprintfFunc()
	errorColor  = color.New(color.FgHiRed).SprintfFunc()
)

var (
	callCommand = &cli.Command{
		Name:      "call",
		Usage:     "Call a single method",
		ArgsUsage: "<method> [params...]",
		Description: `Each parameter is sent as JSON if it parses as JSON, and as a string
otherwise. The result is printed as indented JSON.`,
		Action: call,
	}
	batchCommand = &cli.Command{
		Name:      "batch",
		Usage:     "Send several calls in one batch",
		ArgsUsage: "<method[:json-params]>...",
		Description: `Every argument is a method name, optionally followed by a colon and a JSON
array of parameters, e.g. eth_getBalance:["0x...","latest"].`,
		Action: batch,
	}
	subscribeCommand = &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to notifications (requires ws or IPC)",
		ArgsUsage: "<kind> [params...]",
		Flags:     []cli.Flag{countFlag},
		Action:    subscribe,
	}
	blockNumberCommand = &cli.Command{
		Name:   "blocknumber",
		Usage:  "Print the number of the most recent block",
		Action: blockNumber,
	}
)

func dial(ctx *cli.Context, s *settings) (*rpc.Client, error) {
	opts := []rpc.ClientOption{
		rpc.WithHeaders(s.headers),
		rpc.WithLogger(log.Root()),
	}
	if s.jwtSecret != nil {
		opts = append(opts, rpc.WithHTTPAuth(rpc.NewJWTAuth(*s.jwtSecret)))
	}
	return rpc.DialOptions(ctx.Context, s.endpoint, opts...)
}

// parseParams converts command line arguments into call parameters.
func parseParams(args []string) []interface{} {
	params := make([]interface{}, len(args))
	for i, arg := range args {
		if json.Valid([]byte(arg)) {
			params[i] = json.RawMessage(arg)
		} else {
			params[i] = arg
		}
	}
	return params
}

// parseBatchArg splits "method:[params]" into its parts.
func parseBatchArg(arg string) (string, []interface{}, error) {
	method, raw, ok := strings.Cut(arg, ":")
	if method == "" {
		return "", nil, errors.Newf("missing method in %q", arg)
	}
	if !ok {
		return method, nil, nil
	}
	var params []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return "", nil, errors.Wrapf(err, "invalid params of %s", method)
	}
	out := make([]interface{}, len(params))
	for i, p := range params {
		out[i] = p
	}
	return method, out, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func call(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return errors.New("missing method name")
	}
	s, err := makeSettings(ctx)
	if err != nil {
		return err
	}
	client, err := dial(ctx, s)
	if err != nil {
		return err
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx.Context, s.timeout)
	defer cancel()
	var result json.RawMessage
	method := ctx.Args().First()
	if err := client.CallContext(callCtx, &result, method, parseParams(ctx.Args().Tail())...); err != nil {
		return err
	}
	log.Debug("Call finished", "method", method, "len", len(result))
	return printJSON(ctx.App.Writer, result)
}

func batch(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return errors.New("no calls given")
	}
	s, err := makeSettings(ctx)
	if err != nil {
		return err
	}
	elems := make([]rpc.BatchElem, ctx.NArg())
	results := make([]json.RawMessage, ctx.NArg())
	for i, arg := range ctx.Args().Slice() {
		method, params, err := parseBatchArg(arg)
		if err != nil {
			return err
		}
		elems[i] = rpc.BatchElem{Method: method, Args: params, Result: &results[i]}
	}
	client, err := dial(ctx, s)
	if err != nil {
		return err
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx.Context, s.timeout)
	defer cancel()
	if err := client.BatchCallContext(callCtx, elems); err != nil {
		return err
	}
	table := tablewriter.NewWriter(ctx.App.Writer)
	table.SetHeader([]string{"Method", "Result"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	var failed int
	for i, elem := range elems {
		if elem.Error != nil {
			failed++
			table.Append([]string{methodColor("%s", elem.Method), errorColor("error: %v", elem.Error)})
			continue
		}
		var compact bytes.Buffer
		if len(results[i]) == 0 {
			compact.WriteString("null")
		} else if err := json.Compact(&compact, results[i]); err != nil {
			return err
		}
		table.Append([]string{methodColor("%s", elem.Method), compact.String()})
	}
	table.Render()
	if failed > 0 {
		return errors.Newf("%d of %d calls failed", failed, len(elems))
	}
	return nil
}

func subscribe(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return errors.New("missing subscription kind")
	}
	s, err := makeSettings(ctx)
	if err != nil {
		return err
	}
	client, err := dial(ctx, s)
	if err != nil {
		return err
	}
	defer client.Close()

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subCtx, cancel := context.WithTimeout(runCtx, s.timeout)
	args := append([]interface{}{ctx.Args().First()}, parseParams(ctx.Args().Tail())...)
	sub, err := client.EthSubscribe(subCtx, args...)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		unsubCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := sub.Unsubscribe(unsubCtx); err != nil {
			log.Warn("Unsubscribe failed", "sub", sub.ID(), "err", err)
		}
	}()
	log.Info("Subscribed", "kind", ctx.Args().First(), "sub", sub.ID())

	count := ctx.Int(countFlag.Name)
	for n := 0; count == 0 || n < count; n++ {
		payload, err := sub.Next(runCtx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, io.EOF):
			return sub.Err()
		case err != nil:
			return err
		}
		if err := printJSON(ctx.App.Writer, payload); err != nil {
			return err
		}
	}
	return nil
}

func blockNumber(ctx *cli.Context) error {
	s, err := makeSettings(ctx)
	if err != nil {
		return err
	}
	client, err := dial(ctx, s)
	if err != nil {
		return err
	}
	ec := ethclient.NewClient(client)
	defer ec.Close()

	callCtx, cancel := context.WithTimeout(ctx.Context, s.timeout)
	defer cancel()
	number, err := ec.BlockNumber(callCtx)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, number)
	return nil
}
