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
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/findoranetwork/go-web3/common/hexutil"
	"github.com/findoranetwork/go-web3/internal/version"
	"github.com/findoranetwork/go-web3/log"
	"github.com/imdario/mergo"
	"github.com/urfave/cli/v2"
)

const defaultCallTimeout = 30 * time.Second

// web3rpcConfig is the content of the configuration file. Flags given on the
// command line take precedence.
type web3rpcConfig struct {
	Endpoint  string
	Timeout   string
	Verbosity string
	JWTSecret string // path of a file holding the hex encoded secret
	Headers   map[string]string
}

// loadConfig reads a TOML configuration file. Unknown keys are rejected.
func loadConfig(file string, cfg *web3rpcConfig) error {
	md, err := toml.DecodeFile(file, cfg)
	if err != nil {
		return errors.Wrapf(err, "%s", file)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.Newf("%s: unknown configuration keys %s", file, strings.Join(keys, ", "))
	}
	cfg.Headers = canonicalHeaders(cfg.Headers)
	return nil
}

// flagsConfig collects the flags that were set on the command line.
func flagsConfig(ctx *cli.Context) (web3rpcConfig, error) {
	var cfg web3rpcConfig
	if ctx.IsSet(endpointFlag.Name) {
		cfg.Endpoint = ctx.String(endpointFlag.Name)
	}
	if ctx.IsSet(timeoutFlag.Name) {
		cfg.Timeout = ctx.Duration(timeoutFlag.Name).String()
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.String(verbosityFlag.Name)
	}
	if ctx.IsSet(jwtSecretFlag.Name) {
		cfg.JWTSecret = ctx.String(jwtSecretFlag.Name)
	}
	for _, kv := range ctx.StringSlice(headerFlag.Name) {
		key, value, err := parseHeader(kv)
		if err != nil {
			return cfg, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[http.CanonicalHeaderKey(key)] = value
	}
	return cfg, nil
}

func canonicalHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

// settings is the merged configuration of a command.
type settings struct {
	endpoint  string
	timeout   time.Duration
	headers   http.Header
	jwtSecret *[32]byte
}

func makeSettings(ctx *cli.Context) (*settings, error) {
	var cfg web3rpcConfig
	if file := ctx.String(configFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return nil, err
		}
	}
	fromFlags, err := flagsConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&cfg, fromFlags, mergo.WithOverride); err != nil {
		return nil, errors.Wrap(err, "merging command line flags")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("no endpoint given, use --endpoint or the config file")
	}

	s := &settings{
		endpoint: cfg.Endpoint,
		timeout:  defaultCallTimeout,
		headers:  make(http.Header),
	}
	s.headers.Set("User-Agent", version.ClientName("web3rpc"))
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid timeout %q", cfg.Timeout)
		}
		s.timeout = d
	}
	for k, v := range cfg.Headers {
		s.headers.Set(k, v)
	}
	if cfg.JWTSecret != "" {
		secret, err := readJWTSecret(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		s.jwtSecret = &secret
	}
	if cfg.Verbosity != "" && !ctx.IsSet(verbosityFlag.Name) {
		if err := setupLogging(ctx, cfg.Verbosity); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// readJWTSecret loads a 32 byte hex encoded secret, with or without 0x prefix.
func readJWTSecret(file string) ([32]byte, error) {
	var secret [32]byte
	data, err := os.ReadFile(file)
	if err != nil {
		return secret, errors.Wrap(err, "reading JWT secret")
	}
	hex := strings.TrimSpace(string(data))
	if !strings.HasPrefix(hex, "0x") {
		hex = "0x" + hex
	}
	b, err := hexutil.Decode(hex)
	if err != nil {
		return secret, errors.Wrapf(err, "invalid JWT secret in %s", file)
	}
	if len(b) != len(secret) {
		return secret, errors.Newf("invalid JWT secret in %s: have %d bytes, want %d", file, len(b), len(secret))
	}
	copy(secret[:], b)
	return secret, nil
}

func parseHeader(kv string) (string, string, error) {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", errors.Newf("invalid header %q, want key=value", kv)
	}
	return key, strings.TrimSpace(value), nil
}

// parseVerbosity accepts level names as well as the numeric levels 0 (crit)
// to 5 (trace).
func parseVerbosity(s string) (slog.Level, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 5 {
			return 0, errors.Newf("verbosity %d out of range 0-5", n)
		}
		return log.FromLegacyLevel(n), nil
	}
	return log.LvlFromString(s)
}
