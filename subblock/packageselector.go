// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// PackageSelector fills the fee region of the sub-block by ancestor
// score, admitting whole ancestor-package groups atomically (C6, the
// CPFP alternative to C5).
type PackageSelector struct {
	pool           mempool.PoolReader
	filter         *Filter
	accountant     *Accountant
	minRelayFee    float64 // satoshis per byte
	blockMinSize   uint32
	maxBlockSize   uint32
	height         int32
	lockTimeCutoff int64
	finality       FinalityChecker
}

// NewPackageSelector returns a package selector.
func NewPackageSelector(pool mempool.PoolReader, filter *Filter, accountant *Accountant, finality FinalityChecker,
	minRelayFee float64, blockMinSize, maxBlockSize uint32, height int32, lockTimeCutoff int64) *PackageSelector {

	return &PackageSelector{
		pool:           pool,
		filter:         filter,
		accountant:     accountant,
		finality:       finality,
		minRelayFee:    minRelayFee,
		blockMinSize:   blockMinSize,
		maxBlockSize:   maxBlockSize,
		height:         height,
		lockTimeCutoff: lockTimeCutoff,
	}
}

// Run executes the ancestor-package selection phase from spec.md §4.6.
func (s *PackageSelector) Run(inBlock *inBlockSet) Result {
	var result Result

	packageFailures := 0

	for _, e := range s.pool.AncestorScoreOrder() {
		if s.accountant.Finished() {
			break
		}
		if inBlock.has(e.Hash) {
			continue
		}

		ancestorSet := s.pool.CalculateMempoolAncestors(e, inBlock.members)

		ancestorFee := e.Ancestors.Fee
		ancestorSize := e.Ancestors.Size
		ancestorSigOps := e.Ancestors.SigOps

		// Some ancestors were already placed by an earlier phase or a
		// previous group in this loop; the short-circuited walk above
		// stopped at the in-block frontier, so recompute size/sig-ops
		// over the trimmed set. Fee does not need recomputation: a
		// placed ancestor's fee was already counted into the block's
		// running total when it was committed, and e.Ancestors.Fee is
		// the pool's own rollup which only ever includes still-resident
		// ancestors.
		if int64(len(ancestorSet)) < e.Ancestors.Count {
			ancestorSize, ancestorSigOps = 0, 0
			for _, a := range ancestorSet {
				ancestorSize += a.Size
				ancestorSigOps += a.SigOps
			}
		}

		// Early termination: the ancestor-score index is sorted
		// descending, so once a candidate's package fee rate drops below
		// the relay floor and the block already has some minimum amount
		// of content, nothing remaining in the index can do better.
		if float64(ancestorFee) < s.minRelayFee*float64(ancestorSize) && s.accountant.BlockSize() >= s.blockMinSize {
			break
		}

		if s.accountant.BlockSize()+uint32(ancestorSize) > s.maxBlockSize {
			if s.accountant.BlockSize() > s.maxBlockSize*chainparam.HalfFullNumerator/chainparam.HalfFullDenominator {
				packageFailures++
			}
			if packageFailures >= chainparam.PackageFailureLimit {
				log.Debugf("package selector: %d consecutive oversize failures, stopping", packageFailures)
				break
			}
			continue
		}

		if s.accountant.BlockSigOps()+uint32(ancestorSigOps) >= s.sigOpCeiling() {
			continue
		}

		if !s.allFinal(ancestorSet) {
			continue
		}

		for _, a := range ancestorSet {
			s.accountant.Commit(uint32(a.Size), uint32(a.SigOps), a.ModifiedFee)
			inBlock.add(a.Hash)
			result.Placed = append(result.Placed, a)
		}
		packageFailures = 0
	}

	return result
}

func (s *PackageSelector) sigOpCeiling() uint32 {
	if s.accountant.activations.May2020Active(s.height) {
		return chainparam.PostMay2020MaxSigOps
	}
	return chainparam.LegacyMaxBlockSigOps(s.accountant.BlockSize())
}

func (s *PackageSelector) allFinal(set map[chainhash.Hash]*mempool.Entry) bool {
	for _, e := range set {
		if !s.finality.IsFinalTx(e, s.height, s.lockTimeCutoff) {
			return false
		}
	}
	return true
}
