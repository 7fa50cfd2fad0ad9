// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// AncestorSummary rolls up the size, fee, and sig-op cost of a transaction
// together with all of its still-unconfirmed ancestors. The pool computes
// it once when the entry is added, so that the assembler never has to
// re-walk the whole ancestor set on every candidate. Removing an ancestor
// from the pool, or changing an ancestor's fee, does not update the
// summaries of its descendants.
type AncestorSummary struct {
	// Size is the total serialized size, in bytes, of the entry and all
	// of its unconfirmed ancestors.
	Size int64

	// Fee is the total modified fee, in satoshis, of the entry and all
	// of its unconfirmed ancestors.
	Fee int64

	// SigOps is the total sig-op cost of the entry and all of its
	// unconfirmed ancestors.
	SigOps int64

	// Count is the number of transactions summarized, including the
	// entry itself.
	Count int64
}

// Score returns the ancestor-package fee rate: Fee / Size. It is the value
// the ancestor-score index orders on.
func (a AncestorSummary) Score() float64 {
	if a.Size == 0 {
		return 0
	}
	return float64(a.Fee) / float64(a.Size)
}

// Entry is a mempool-resident transaction descriptor. It is the concrete
// implementation of the read-only mempool entry referenced throughout
// spec.md §3/§6: transaction bytes/hash, size, sig-ops, modified fee,
// coin-age priority, arrival time, ancestor summary, and parent/child
// links to other pool entries.
type Entry struct {
	// Tx is the pool-resident transaction.
	Tx *btcutil.Tx

	// Hash is Tx's cached hash, duplicated here so hot paths never touch
	// the transaction's serialization machinery.
	Hash chainhash.Hash

	// Size is the transaction's serialized size in bytes.
	Size int64

	// SigOps is the transaction's own (non-ancestor) sig-op cost.
	SigOps int64

	// ModifiedFee is the transaction's fee after applying any operator
	// delta (see Pool.ApplyDeltas).
	ModifiedFee int64

	// EntryHeight is the chain height at which the entry was accepted
	// into the pool; it anchors the coin-age priority calculation.
	EntryHeight int32

	// PriorityBase is the coin-age priority the transaction had at
	// EntryHeight: Σ(inputValue × inputConfirmations) / Size.
	PriorityBase float64

	// InputValueSum is Σ inputValue over the transaction's inputs; it is
	// used to project PriorityBase forward as the chain grows without
	// re-walking the UTXO set on every height.
	InputValueSum int64

	// PriorityDelta is a per-tx operator override applied on top of the
	// projected priority (see Pool.ApplyDeltas).
	PriorityDelta float64

	// ArrivalMicros is the wall-clock time, in microseconds, at which the
	// transaction was accepted into the pool.
	ArrivalMicros int64

	// Ancestors is the entry's ancestor summary, including itself. The
	// pool computes it in AddEntry and adjusts its Fee when the entry's
	// own fee is reprioritised; see AncestorSummary for what it does not
	// track.
	Ancestors AncestorSummary

	parents  map[chainhash.Hash]*Entry
	children map[chainhash.Hash]*Entry
}

// MiningScore returns the single-transaction modified fee rate used by the
// mining-score index: ModifiedFee / Size.
func (e *Entry) MiningScore() float64 {
	if e.Size == 0 {
		return 0
	}
	return float64(e.ModifiedFee) / float64(e.Size)
}

// Priority returns the coin-age priority of the transaction projected to
// height h: PriorityBase plus one InputValueSum/Size increment per block
// of age gained since EntryHeight, plus any operator delta.
func (e *Entry) Priority(h int32) float64 {
	if e.Size == 0 {
		return e.PriorityDelta
	}
	blocksAged := float64(h - e.EntryHeight)
	if blocksAged < 0 {
		blocksAged = 0
	}
	return e.PriorityBase + blocksAged*float64(e.InputValueSum)/float64(e.Size) + e.PriorityDelta
}

// Parents returns the entry's mempool-resident parents.
func (e *Entry) Parents() []*Entry {
	out := make([]*Entry, 0, len(e.parents))
	for _, p := range e.parents {
		out = append(out, p)
	}
	return out
}

// Children returns the entry's mempool-resident children.
func (e *Entry) Children() []*Entry {
	out := make([]*Entry, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	return out
}

// HasUnconfirmedParents reports whether the entry has any parent still
// resident in the pool.
func (e *Entry) HasUnconfirmedParents() bool {
	return len(e.parents) > 0
}
