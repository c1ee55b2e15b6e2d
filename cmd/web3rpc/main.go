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

// web3rpc is a command line JSON-RPC client for Ethereum-compatible nodes.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/findoranetwork/go-web3/internal/flags"
	"github.com/findoranetwork/go-web3/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	endpointFlag = &cli.StringFlag{
		Name:     "endpoint",
		Category: flags.ConnectionCategory,
		Usage:    "JSON-RPC endpoint: http(s)/ws(s) URL or IPC socket path",
		EnvVars:  []string{"WEB3RPC_ENDPOINT"},
	}
	configFlag = &cli.StringFlag{
		Name:     "config",
		Category: flags.MiscCategory,
		Usage:    "TOML configuration file",
	}
	headerFlag = &cli.StringSliceFlag{
		Name:     "header",
		Category: flags.ConnectionCategory,
		Usage:    "Extra HTTP/WebSocket header as key=value, may be repeated",
	}
	jwtSecretFlag = &cli.StringFlag{
		Name:     "jwtsecret",
		Category: flags.ConnectionCategory,
		Usage:    "Path to a hex encoded secret used to sign JWT authentication tokens",
	}
	timeoutFlag = &cli.DurationFlag{
		Name:     "timeout",
		Category: flags.ConnectionCategory,
		Usage:    "Timeout of a single call",
	}
	verbosityFlag = &cli.StringFlag{
		Name:     "verbosity",
		Category: flags.LoggingCategory,
		Usage:    "Logging verbosity: 0-5 or trace, debug, info, warn, error, crit",
		Value:    "info",
	}
	logFormatFlag = &cli.StringFlag{
		Name:     "log.format",
		Category: flags.LoggingCategory,
		Usage:    "Log format to use (terminal, logfmt, json)",
	}
	logDebugFlag = &cli.BoolFlag{
		Name:     "log.debug",
		Category: flags.LoggingCategory,
		Usage:    "Prepends log messages with call-site location (file and line number)",
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Category: flags.LoggingCategory,
		Usage:    "Write logs to a file instead of stderr",
	}
	logMaxSizeMBsFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Category: flags.LoggingCategory,
		Usage:    "Maximum size in MBs of a single log file",
		Value:    100,
	}
	logMaxBackupsFlag = &cli.IntFlag{
		Name:     "log.maxbackups",
		Category: flags.LoggingCategory,
		Usage:    "Maximum number of log files to retain",
		Value:    10,
	}
	countFlag = &cli.IntFlag{
		Name:  "count",
		Usage: "Stop after this many notifications (0 = run until interrupted)",
	}
)

// logOutputFile is the rotating log file, if --log.file was given.
var logOutputFile io.WriteCloser

func newApp() *cli.App {
	app := flags.NewApp("talk JSON-RPC to an Ethereum node")
	app.Flags = []cli.Flag{
		endpointFlag,
		configFlag,
		headerFlag,
		jwtSecretFlag,
		timeoutFlag,
		verbosityFlag,
		logFormatFlag,
		logDebugFlag,
		logFileFlag,
		logMaxSizeMBsFlag,
		logMaxBackupsFlag,
	}
	app.Commands = []*cli.Command{
		callCommand,
		batchCommand,
		subscribeCommand,
		blockNumberCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		return setupLogging(ctx, ctx.String(verbosityFlag.Name))
	}
	app.After = func(ctx *cli.Context) error {
		closeLogFile()
		return nil
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging installs the root logger. Terminals get colored output unless
// another format is requested.
func setupLogging(ctx *cli.Context, verbosity string) error {
	lvl, err := parseVerbosity(verbosity)
	if err != nil {
		return err
	}
	closeLogFile()

	var (
		output   = ctx.App.ErrWriter
		useColor bool
	)
	if output == os.Stderr {
		useColor = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
		if useColor {
			output = colorable.NewColorableStderr()
		}
	}
	if file := ctx.String(logFileFlag.Name); file != "" {
		logOutputFile = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    ctx.Int(logMaxSizeMBsFlag.Name),
			MaxBackups: ctx.Int(logMaxBackupsFlag.Name),
		}
		output, useColor = logOutputFile, false
	}
	log.PrintOrigins(ctx.Bool(logDebugFlag.Name))

	var handler slog.Handler
	switch format := ctx.String(logFormatFlag.Name); format {
	case "json":
		handler = log.JSONHandlerWithLevel(output, lvl)
	case "logfmt":
		handler = log.LogfmtHandlerWithLevel(output, lvl)
	case "terminal":
		handler = log.NewTerminalHandlerWithLevel(output, lvl, useColor)
	case "":
		if useColor {
			handler = log.NewTerminalHandlerWithLevel(output, lvl, true)
		} else {
			handler = log.StreamHandler(output, lvl)
		}
	default:
		return errors.Newf("unknown log format %q", format)
	}
	log.SetDefault(log.NewLogger(handler))
	return nil
}

func closeLogFile() {
	if logOutputFile != nil {
		logOutputFile.Close()
		logOutputFile = nil
	}
}
