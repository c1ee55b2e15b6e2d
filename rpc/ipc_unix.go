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

//go:build !windows && !js
// +build !windows,!js

package rpc

import (
	"context"
	"fmt"
	"net"
)

// maxPathSize is the maximum length of a Unix socket path, including the
// terminating NUL on most platforms.
const maxPathSize = 104

// newIPCConnection will connect to a Unix socket on the given endpoint.
func newIPCConnection(ctx context.Context, endpoint string) (net.Conn, error) {
	if len(endpoint) > maxPathSize-1 {
		return nil, fmt.Errorf("socket path is too long: %d > %d", len(endpoint), maxPathSize-1)
	}
	var d net.Dialer
	return d.DialContext(ctx, "unix", endpoint)
}
