// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package slptoken implements the SLP token cache overlay (C8): a
// UTXO-style DIRTY/FRESH cache in front of a key-value token store,
// mirroring the discipline blockchain.utxoCache uses for the main UTXO
// set. See spec.md §3/§4.8/§5 for the authoritative behavior.
package slptoken

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ErrAmountOverflow is returned when a token amount arithmetic operation
// would overflow uint64, mirroring the original implementation's explicit
// overflow checks (SPEC_FULL.md §4 supplemented feature).
var ErrAmountOverflow = errors.New("slptoken: amount overflow")

// tokenKeyPrefix and bestBlockKey are the single-byte key prefixes used in
// the underlying key-value store, taken verbatim from
// original_source/src/slptokens/slpdb.cpp.
const (
	tokenKeyPrefix byte = 'T'
	bestBlockKey   byte = 'B'
)

// Token describes one SLP output: the token it belongs to, its quantity,
// and whether it is a mint baton (which carries no meaningful quantity).
type Token struct {
	TokenID     chainhash.Hash
	Amount      uint64
	IsMintBaton bool
}

// AddAmount returns t with delta added to Amount, or ErrAmountOverflow if
// the addition would overflow uint64.
func (t Token) AddAmount(delta uint64) (Token, error) {
	if delta > math.MaxUint64-t.Amount {
		return Token{}, ErrAmountOverflow
	}
	t.Amount += delta
	return t, nil
}

// Serialize encodes t for storage.
func (t Token) Serialize() []byte {
	buf := make([]byte, 0, chainhash.HashSize+9)
	buf = append(buf, t.TokenID[:]...)
	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], t.Amount)
	buf = append(buf, amt[:]...)
	if t.IsMintBaton {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DeserializeToken decodes a Token from its stored form.
func DeserializeToken(data []byte) (Token, error) {
	if len(data) != chainhash.HashSize+9 {
		return Token{}, errors.New("slptoken: malformed token record")
	}
	var t Token
	copy(t.TokenID[:], data[:chainhash.HashSize])
	t.Amount = binary.LittleEndian.Uint64(data[chainhash.HashSize : chainhash.HashSize+8])
	t.IsMintBaton = data[chainhash.HashSize+8] != 0
	return t, nil
}

// TokenKey encodes the store key for outpoint: 'T' || txid(32B) ||
// VARINT(vout), per original_source/src/slptokens/slpdb.cpp.
func TokenKey(outpoint wire.OutPoint) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tokenKeyPrefix)
	buf.Write(outpoint.Hash[:])
	_ = wire.WriteVarInt(&buf, 0, uint64(outpoint.Index))
	return buf.Bytes()
}

// BestBlockKey returns the single-byte key the best-known-block hash is
// stored under.
func BestBlockKey() []byte {
	return []byte{bestBlockKey}
}
