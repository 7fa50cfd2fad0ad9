// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// admission is the outcome of Accountant.CheckIncremental (C1).
type admission int

const (
	// admitOK means the candidate fits within all currently tracked
	// limits and may be committed.
	admitOK admission = iota

	// admitReject means the candidate does not fit right now, but the
	// block is not necessarily finished — a smaller candidate might
	// still fit.
	admitReject
)

// Accountant tracks the running size, sig-op count, and fee sum of the
// sub-block under construction, plus the near-full tail heuristics from
// spec.md §4.1 (C1).
type Accountant struct {
	maxBlockSize uint32
	activations  chainparam.ActivationHeights
	height       int32

	blockSize   uint32
	blockSigOps uint32
	blockTx     uint32
	fees        int64

	lastFewTxs    uint32
	blockFinished bool

	maxSigOpsAllowed uint32
}

// NewAccountant creates a fresh accountant for a sub-block of at most
// maxBlockSize bytes being assembled at height.
func NewAccountant(maxBlockSize uint32, activations chainparam.ActivationHeights, height int32) *Accountant {
	return &Accountant{
		maxBlockSize: maxBlockSize,
		activations:  activations,
		height:       height,
	}
}

// ReserveInitial pre-charges the accountant with the fixed 80-byte header,
// the 5-byte (maximal) tx-count varint, and the size of a provisional
// proof-base built at the real assembly height and the current DAG tip
// set, clamped up to at least coinbaseReserve. 100 sig-ops are
// pre-reserved for the proof-base (spec.md §4.1/§4.2/§9).
//
// The provisional build must use the same height as the final build
// (CreateNewSubBlock's real assembly height, already stored on a) so the
// Nov2018Active-gated padToMinTxSize decision is identical between the
// two calls: the original keys this decision off chainActive.Tip(),
// which cannot differ within one assembly run, and any drift here would
// let the final proof-base outgrow what was reserved.
func (a *Accountant) ReserveInitial(minerScript []byte, tips []chainhash.Hash, coinbaseReserve uint32) error {
	provisional, err := BuildProofBase(ProofBaseInput{
		Height:        a.height,
		MinerScript:   minerScript,
		Tips:          tips,
		Activations:   a.activations,
		AssemblyStage: true,
	})
	if err != nil {
		return err
	}

	provisionalSize := uint32(provisional.MsgTx().SerializeSize())
	reserve := provisionalSize
	if reserve < coinbaseReserve {
		reserve = coinbaseReserve
	}
	if reserve < chainparam.CoinbaseReserveMinimum {
		reserve = chainparam.CoinbaseReserveMinimum
	}

	a.blockSize = HeaderSize + 5 + reserve
	a.blockSigOps = chainparam.ProofBaseSigOpReserve
	a.blockTx = 1

	if a.activations.May2020Active(a.height) {
		a.maxSigOpsAllowed = chainparam.PostMay2020MaxSigOps
	} else {
		a.maxSigOpsAllowed = chainparam.LegacyMaxBlockSigOps(a.blockSize)
	}

	return nil
}

// sigOpCeiling returns the currently applicable sig-op ceiling given the
// accumulated block size.
func (a *Accountant) sigOpCeiling() uint32 {
	if a.activations.May2020Active(a.height) {
		return chainparam.PostMay2020MaxSigOps
	}
	return chainparam.LegacyMaxBlockSigOps(a.blockSize)
}

// CheckIncremental implements C1's checkIncremental: it decides whether a
// candidate of the given extra size/sig-ops would fit, and updates the
// near-full tail heuristics (lastFewTxs, blockFinished) along the way.
func (a *Accountant) CheckIncremental(extraSize, extraSigOps uint32) admission {
	if a.blockSize+extraSize > a.maxBlockSize {
		if a.blockSize > a.maxBlockSize-100 || a.lastFewTxs > chainparam.LastFewTxsFinishThreshold {
			a.blockFinished = true
		}
		if a.maxBlockSize-a.blockSize < chainparam.NearFullByteWindow {
			a.lastFewTxs++
		}
		return admitReject
	}

	ceiling := a.sigOpCeiling()
	if a.blockSigOps+extraSigOps > ceiling {
		if ceiling-a.blockSigOps < chainparam.SigOpCeilingNearMargin {
			a.blockFinished = true
		}
		return admitReject
	}

	return admitOK
}

// Finished reports whether the accountant has decided the block cannot
// accept any further candidates.
func (a *Accountant) Finished() bool {
	return a.blockFinished
}

// Commit is the accountant's only mutator: it updates the running
// counters for an admitted candidate.
func (a *Accountant) Commit(size, sigOps uint32, fee int64) {
	a.blockSize += size
	a.blockSigOps += sigOps
	a.blockTx++
	a.fees += fee
}

// BlockSize returns the current accumulated block size.
func (a *Accountant) BlockSize() uint32 {
	return a.blockSize
}

// BlockSigOps returns the current accumulated sig-op count.
func (a *Accountant) BlockSigOps() uint32 {
	return a.blockSigOps
}

// Fees returns the total fees collected from committed transactions so
// far.
func (a *Accountant) Fees() int64 {
	return a.fees
}

// testCandidate is a package-private helper used by the selectors to ask
// whether e (already known to have its dependencies satisfied) would fit,
// without mutating any state.
func (a *Accountant) testCandidate(e *mempool.Entry) admission {
	return a.CheckIncremental(uint32(e.Size), uint32(e.SigOps))
}
