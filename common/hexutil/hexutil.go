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

/*
Package hexutil implements the 0x-prefixed hex encoding used by JSON-RPC
endpoints to carry quantities and binary data.

Data values must have an even number of digits; empty data encodes as "0x".
Quantities use the fewest digits possible, so zero encodes as "0x0" and
leading zero digits are rejected on decode.
*/
package hexutil

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
)

var (
	ErrEmptyString   = errors.New("empty hex string")
	ErrMissingPrefix = errors.New("missing 0x prefix for hex data")
	ErrSyntax        = errors.New("invalid hex")
	ErrEmptyNumber   = errors.New("hex number has no digits after 0x")
	ErrLeadingZero   = errors.New("hex number has leading zero digits after 0x")
	ErrOddLength     = errors.New("hex string has odd length")
	ErrUint64Range   = errors.New("hex number does not fit into 64 bits")
	ErrBig256Range   = errors.New("hex number does not fit into 256 bits")
)

// Decode decodes 0x-prefixed hex data.
func Decode(input string) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrEmptyString
	}
	if !has0xPrefix(input) {
		return nil, ErrMissingPrefix
	}
	b, err := hex.DecodeString(input[2:])
	if err != nil {
		return nil, mapError(err)
	}
	return b, nil
}

// MustDecode is like Decode but panics on invalid input.
func MustDecode(input string) []byte {
	dec, err := Decode(input)
	if err != nil {
		panic(err)
	}
	return dec
}

// Encode encodes b as 0x-prefixed hex data.
func Encode(b []byte) string {
	enc := make([]byte, len(b)*2+2)
	copy(enc, "0x")
	hex.Encode(enc[2:], b)
	return string(enc)
}

// DecodeUint64 decodes a 0x-prefixed quantity.
func DecodeUint64(input string) (uint64, error) {
	raw, err := checkNumber(input)
	if err != nil {
		return 0, err
	}
	dec, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, mapError(err)
	}
	return dec, nil
}

// EncodeUint64 encodes i as a quantity.
func EncodeUint64(i uint64) string {
	enc := make([]byte, 2, 18)
	copy(enc, "0x")
	return string(strconv.AppendUint(enc, i, 16))
}

// DecodeBig decodes a 0x-prefixed quantity of at most 256 bits.
func DecodeBig(input string) (*big.Int, error) {
	raw, err := checkNumber(input)
	if err != nil {
		return nil, err
	}
	if len(raw) > 64 {
		return nil, ErrBig256Range
	}
	for i := 0; i < len(raw); i++ {
		if !isHexDigit(raw[i]) {
			return nil, ErrSyntax
		}
	}
	dec, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return nil, ErrSyntax
	}
	return dec, nil
}

// EncodeBig encodes bigint as a quantity. The sign is ignored.
func EncodeBig(bigint *big.Int) string {
	if bigint.Sign() == 0 {
		return "0x0"
	}
	return "0x" + new(big.Int).Abs(bigint).Text(16)
}

// DecodeU256 decodes a 0x-prefixed quantity into a 256-bit unsigned integer.
func DecodeU256(input string) (*uint256.Int, error) {
	if _, err := checkNumber(input); err != nil {
		return nil, err
	}
	dec, err := uint256.FromHex(input)
	if err != nil {
		if errors.Is(err, uint256.ErrBig256Range) {
			return nil, ErrBig256Range
		}
		return nil, ErrSyntax
	}
	return dec, nil
}

func has0xPrefix(input string) bool {
	return len(input) >= 2 && input[0] == '0' && (input[1] == 'x' || input[1] == 'X')
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func checkNumber(input string) (raw string, err error) {
	if len(input) == 0 {
		return "", ErrEmptyString
	}
	if !has0xPrefix(input) {
		return "", ErrMissingPrefix
	}
	input = input[2:]
	if len(input) == 0 {
		return "", ErrEmptyNumber
	}
	if len(input) > 1 && input[0] == '0' {
		return "", ErrLeadingZero
	}
	return input, nil
}

func mapError(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		switch numErr.Err {
		case strconv.ErrRange:
			return ErrUint64Range
		case strconv.ErrSyntax:
			return ErrSyntax
		}
	}
	var byteErr hex.InvalidByteError
	if errors.As(err, &byteErr) {
		return ErrSyntax
	}
	if errors.Is(err, hex.ErrLength) {
		return ErrOddLength
	}
	return err
}
