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

package hexutil

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDecodeUint64(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
		err   error
	}{
		{"", 0, ErrEmptyString},
		{"0", 0, ErrMissingPrefix},
		{"0x", 0, ErrEmptyNumber},
		{"0x01", 0, ErrLeadingZero},
		{"0xfffffffffffffffff", 0, ErrUint64Range},
		{"0xx", 0, ErrSyntax},
		{"0x0", 0, nil},
		{"0x2", 2, nil},
		{"0x2F2", 0x2f2, nil},
		{"0xffffffffffffffff", 0xffffffffffffffff, nil},
	}
	for _, tt := range tests {
		have, err := DecodeUint64(tt.input)
		if tt.err != nil {
			require.ErrorIs(t, err, tt.err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		require.Equal(t, tt.want, have, "input %q", tt.input)
	}
}

func TestDecodeBig(t *testing.T) {
	max256, _ := new(big.Int).SetString("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
	tests := []struct {
		input string
		want  *big.Int
		err   error
	}{
		{"0x", nil, ErrEmptyNumber},
		{"0x00", nil, ErrLeadingZero},
		{"0xg", nil, ErrSyntax},
		{"0x1" + "0000000000000000000000000000000000000000000000000000000000000000", nil, ErrBig256Range},
		{"0x0", big.NewInt(0), nil},
		{"0x12345678abc", big.NewInt(0x12345678abc), nil},
		{"0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", max256, nil},
	}
	for _, tt := range tests {
		have, err := DecodeBig(tt.input)
		if tt.err != nil {
			require.ErrorIs(t, err, tt.err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		require.Zero(t, tt.want.Cmp(have), "input %q: have %v", tt.input, have)
	}
}

func TestEncodeRoundTripsCanonical(t *testing.T) {
	require.Equal(t, "0x0", EncodeUint64(0))
	require.Equal(t, "0x1b4", EncodeUint64(436))
	require.Equal(t, "0x0", EncodeBig(new(big.Int)))
	require.Equal(t, "0xff", EncodeBig(big.NewInt(-255)))
	require.Equal(t, "0x", Encode(nil))
	require.Equal(t, "0x0102", Encode([]byte{1, 2}))

	b, err := Decode("0x0102")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, b)

	_, err = Decode("0x012")
	require.ErrorIs(t, err, ErrOddLength)
}

func TestU256JSON(t *testing.T) {
	var v U256
	require.NoError(t, json.Unmarshal([]byte(`"0xde0b6b3a7640000"`), &v))
	require.Equal(t, uint256.NewInt(1_000_000_000_000_000_000), v.ToInt())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `"0xde0b6b3a7640000"`, string(out))

	err = json.Unmarshal([]byte(`"0x01"`), &v)
	var typeErr *json.UnmarshalTypeError
	require.True(t, errors.As(err, &typeErr), "have %v", err)

	require.Error(t, json.Unmarshal([]byte(`12`), &v))
}

func TestBytesAndBigJSON(t *testing.T) {
	var payload struct {
		Data  Bytes  `json:"data"`
		Value *Big   `json:"value"`
		Nonce Uint64 `json:"nonce"`
	}
	input := `{"data":"0xdeadbeef","value":"0x3e8","nonce":"0x7"}`
	require.NoError(t, json.Unmarshal([]byte(input), &payload))
	require.Equal(t, Bytes{0xde, 0xad, 0xbe, 0xef}, payload.Data)
	require.Equal(t, int64(1000), payload.Value.ToInt().Int64())
	require.Equal(t, Uint64(7), payload.Nonce)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, input, string(out))
}
