// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/lru"
)

// defaultRespendCacheSize is the number of recently-seen respend outpoints
// the oracle remembers.
const defaultRespendCacheSize = 4096

// RespendOracle is the "known likely respent" collaborator referenced in
// spec.md §4.3 candidate filter rule 5: an LRU-bounded record of the
// outpoints callers have flagged with Flag. Membership is exact, so an
// outpoint that was never flagged is never reported; once more than
// capacity outpoints have been flagged, the least recently used ones are
// forgotten and no longer reported. Filtering on it is best-effort.
type RespendOracle struct {
	flagged lru.Cache
}

// NewRespendOracle returns an oracle that remembers up to capacity
// recently-flagged outpoints.
func NewRespendOracle(capacity uint) *RespendOracle {
	if capacity == 0 {
		capacity = defaultRespendCacheSize
	}
	return &RespendOracle{flagged: lru.NewCache(capacity)}
}

// Flag marks outpoint as a likely known respend.
func (o *RespendOracle) Flag(outpoint wire.OutPoint) {
	o.flagged.Add(outpoint)
}

// IsLikelyRespent reports whether outpoint has been flagged.
func (o *RespendOracle) IsLikelyRespent(outpoint wire.OutPoint) bool {
	return o.flagged.Contains(outpoint)
}

// AnyInputFlagged reports whether any of tx's inputs are currently flagged
// as a likely known respend.
func (o *RespendOracle) AnyInputFlagged(tx *btcutil.Tx) bool {
	for _, in := range tx.MsgTx().TxIn {
		if o.IsLikelyRespent(in.PreviousOutPoint) {
			return true
		}
	}
	return false
}
