// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// FinalityChecker decides whether a transaction is final at the given
// height/locktime cutoff. It is the external "full validator" collaborator
// referenced in spec.md §1/§4.3; block assembly only consumes it.
type FinalityChecker interface {
	IsFinalTx(e *mempool.Entry, height int32, lockTimeCutoff int64) bool
}

// Filter implements the per-transaction admission predicate testForBlock
// from spec.md §4.3 (C3).
type Filter struct {
	accountant     *Accountant
	finality       FinalityChecker
	respend        *mempool.RespendOracle
	activations    chainparam.ActivationHeights
	height         int32
	lockTimeCutoff int64
	nowMicros      int64
}

// NewFilter returns a candidate filter bound to accountant for capacity
// decisions and finality for locktime checks.
func NewFilter(accountant *Accountant, finality FinalityChecker, respend *mempool.RespendOracle,
	activations chainparam.ActivationHeights, height int32, lockTimeCutoff int64, nowMicros int64) *Filter {

	return &Filter{
		accountant:     accountant,
		finality:       finality,
		respend:        respend,
		activations:    activations,
		height:         height,
		lockTimeCutoff: lockTimeCutoff,
		nowMicros:      nowMicros,
	}
}

// TestForBlock reports whether e may be admitted right now. It never
// mutates e or the pool; capacity bookkeeping (lastFewTxs/blockFinished)
// is updated as a side effect of consulting the accountant, matching
// spec.md's checkIncremental semantics.
func (f *Filter) TestForBlock(e *mempool.Entry) bool {
	if f.accountant.testCandidate(e) != admitOK {
		return false
	}

	if !f.finality.IsFinalTx(e, f.height, f.lockTimeCutoff) {
		return false
	}

	if f.activations.Nov2018Active(f.height) && e.Size < chainparam.MinTxSize {
		return false
	}

	// Age policy: transactions younger than one second are excluded even
	// though they may otherwise be perfectly confirmable; this applies
	// uniformly, including during the priority phase, per spec.md §9's
	// note about the source's own documented behavior.
	if f.nowMicros-e.ArrivalMicros < chainparam.AgeThresholdMicros {
		return false
	}

	if f.respend != nil && f.respend.AnyInputFlagged(e.Tx) {
		return false
	}

	return true
}
