// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// newFilterTx returns a minimal one-in-one-out transaction. seed varies the
// output value so distinct calls produce distinct hashes.
func newFilterTx(seed int64) *btcutil.Tx {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: uint32(seed)},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	msgTx.AddTxOut(&wire.TxOut{Value: seed, PkScript: []byte{0x51}})
	return btcutil.NewTx(msgTx)
}

// newTestEntry builds a mempool.Entry with the given size/sig-ops/fee, an
// arrival time old enough to always clear the age filter, at EntryHeight 0.
func newTestEntry(seed int64, size, sigOps, fee int64) *mempool.Entry {
	tx := newFilterTx(seed)
	return &mempool.Entry{
		Tx:            tx,
		Hash:          *tx.Hash(),
		Size:          size,
		SigOps:        sigOps,
		ModifiedFee:   fee,
		ArrivalMicros: -1e15, // far enough in the past to always clear AgeThresholdMicros
	}
}

// alwaysFinal is a FinalityChecker stub that accepts every transaction.
type alwaysFinal struct{}

func (alwaysFinal) IsFinalTx(*mempool.Entry, int32, int64) bool { return true }

// alwaysValid is a BlockValidityChecker stub that accepts every template.
type alwaysValid struct{}

func (alwaysValid) CheckSubBlockValidity(*Template, int32) error { return nil }

// chainhashOf returns the hashes of entries, for use as AddEntry's
// parentHashes argument.
func chainhashOf(entries ...*mempool.Entry) []chainhash.Hash {
	out := make([]chainhash.Hash, len(entries))
	for i, e := range entries {
		out[i] = e.Hash
	}
	return out
}
