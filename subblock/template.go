// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HeaderSize is the fixed, on-wire size of a sub-block header in bytes:
// int32 version, two 32-byte hashes, and three uint32 fields.
const HeaderSize = 4 + chainhash.HashSize*2 + 4 + 4 + 4

// Header is the fixed 80-byte sub-block header described in spec.md §6.
type Header struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Serialize encodes the header to its 80-byte little-endian wire format.
func (h *Header) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.Version))
	off += 4
	copy(buf[off:], h.PrevBlock[:])
	off += chainhash.HashSize
	copy(buf[off:], h.MerkleRoot[:])
	off += chainhash.HashSize
	binary.LittleEndian.PutUint32(buf[off:], h.Timestamp)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Bits)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Nonce)
	return buf
}

// DeserializeHeader decodes an 80-byte sub-block header.
func DeserializeHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, fmt.Errorf("subblock: header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	h := &Header{}
	off := 0
	h.Version = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	copy(h.PrevBlock[:], buf[off:off+chainhash.HashSize])
	off += chainhash.HashSize
	copy(h.MerkleRoot[:], buf[off:off+chainhash.HashSize])
	off += chainhash.HashSize
	h.Timestamp = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Bits = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Nonce = binary.LittleEndian.Uint32(buf[off:])
	return h, nil
}

// BlockHash returns the double-SHA256 hash of the serialized header.
func (h *Header) BlockHash() chainhash.Hash {
	return chainhash.DoubleHashH(h.Serialize())
}

// Template is the sub-block template produced by the assembler driver
// (C7): the header, the ordered transaction list (index 0 is always the
// proof-base), and the parallel fee/sig-op arrays from spec.md §3/§6.
type Template struct {
	Header Header

	// Transactions holds the proof-base at index 0 followed by the
	// canonically-ordered selected transactions.
	Transactions []*btcutil.Tx

	// Fees holds vTxFees: Fees[0] == -sum(Fees[1:]).
	Fees []int64

	// SigOps holds vTxSigOps, whose entry 0 depends on the active rule
	// set (see chainparam.ActivationHeights.May2020Active).
	SigOps []uint32

	// ExpeditedValidation marks the template for expedited validation
	// (the xval configuration knob), letting the downstream validator
	// skip re-checks it can prove were already performed during
	// assembly.
	ExpeditedValidation bool
}

// TotalFees returns the sum of fees paid by every non-proof-base
// transaction in the template.
func (t *Template) TotalFees() int64 {
	var total int64
	for i := 1; i < len(t.Fees); i++ {
		total += t.Fees[i]
	}
	return total
}

// SerializedSize returns the sum of the serialized size of every
// transaction currently in the template, not including the header.
func (t *Template) SerializedSize() int64 {
	var total int64
	for _, tx := range t.Transactions {
		total += int64(tx.MsgTx().SerializeSize())
	}
	return total
}

// txHashesAscending reports whether the template's non-proof-base
// transactions are in strictly increasing hash order, the canonical
// ordering required by spec.md invariant §8.5.
func txHashesAscending(txs []*btcutil.Tx) bool {
	for i := 1; i+1 < len(txs); i++ {
		a := txs[i].Hash()
		b := txs[i+1].Hash()
		if bytes.Compare(a[:], b[:]) >= 0 {
			return false
		}
	}
	return true
}
