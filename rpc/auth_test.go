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
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestJWTAuth(t *testing.T) {
	secret := [32]byte{0x01, 0x02, 0x03}
	auth := make(chan string, 1)

	handler := echoHandler(t)
	tr := newTestHTTP(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		handler(w, r)
	}), WithHTTPAuth(NewJWTAuth(secret)))

	_, err := Execute(context.Background(), tr, "test_echo", 1)
	require.NoError(t, err)
	header := <-auth
	require.True(t, strings.HasPrefix(header, "Bearer "), header)
	raw := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret[:], nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	claims := token.Claims.(jwt.MapClaims)
	iat, ok := claims["iat"].(float64)
	require.True(t, ok, "iat claim %v", claims["iat"])
	require.WithinDuration(t, time.Now(), time.Unix(int64(iat), 0), time.Minute)

	// A different secret does not verify.
	_, err = jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return make([]byte, 32), nil
	})
	require.Error(t, err)
}
