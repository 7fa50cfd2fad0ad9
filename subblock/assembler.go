// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package subblock implements the sub-block assembly core: the
// transaction-selection engine that reads a live mempool and produces a
// deterministic, capacity-respecting weak-block template referencing the
// current DAG tips in its proof-base. See spec.md for the full behavioral
// specification; this package implements components C1-C7.
package subblock

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// SelectionStrategy chooses which fee-region selector fills the block
// after the priority phase: single-tx score (C5) or ancestor-package (C6).
type SelectionStrategy int

const (
	// StrategyScore selects StrategyScore fee-region filling (C5).
	StrategyScore SelectionStrategy = iota

	// StrategyPackage selects ancestor-package (CPFP) fee-region filling
	// (C6).
	StrategyPackage
)

// TipProvider supplies the current DAG tip snapshot to the proof-base
// builder.
type TipProvider interface {
	Tips() []chainhash.Hash
}

// ChainTip describes the external chain state the driver needs to derive
// height, version, and locktime cutoff for the sub-block under
// construction. The full validator/chain state is out of scope (spec.md
// §1); this is the minimal read-only surface the driver consumes.
type ChainTip struct {
	Height         int32
	MedianTimePast int64
	// MTPRuleActive reports whether locktime finality is evaluated
	// against MedianTimePast rather than block time.
	MTPRuleActive bool
}

// Config is the assembler's injected configuration value-set (spec.md §6,
// §9's "avoid process-wide mutable globals").
type Config struct {
	// BlockMaxSize caps the block bytes; callers are expected to have
	// already clamped it to [1000, MaxBlockSize-1000] as spec.md §6
	// describes — the driver does not re-clamp.
	BlockMaxSize uint32

	// BlockMinSize gates the package selector's early-termination rule.
	BlockMinSize uint32

	// BlockPrioritySize is the byte budget for the priority phase; 0
	// disables it.
	BlockPrioritySize uint32

	// BlockVersion overrides the computed nVersion when non-zero
	// (test-network override).
	BlockVersion int32

	// Strategy selects which fee-region selector fills the block after
	// the priority phase, per the miningCPFP configuration knob.
	Strategy SelectionStrategy

	// CoinbaseReserve is the minimum bytes reserved for the proof-base
	// by ReserveInitial.
	CoinbaseReserve uint32

	// MinRelayFeeRate is the minimum relay fee rate in satoshis/byte,
	// used by the package selector's early-termination rule.
	MinRelayFeeRate float64

	// ExpeditedValidation marks every template this assembler produces
	// for expedited validation (the xval configuration knob).
	ExpeditedValidation bool

	// PrintPriority logs each priority-phase transaction's priority as it
	// is placed, mirroring Bitcoin's fPrintPriority/LogPrintf behavior.
	PrintPriority bool

	Activations chainparam.ActivationHeights
}

// Assembler is the driver (C7): it orchestrates C1-C6, sorts the selected
// set, builds the header, and runs a post-validity self-check.
type Assembler struct {
	pool     *mempool.Pool
	tips     TipProvider
	finality FinalityChecker
	validity BlockValidityChecker
	timeSrc  func() int64 // now in microseconds

	cfg Config
}

// New returns an assembler reading from pool and tips, using finality for
// locktime checks and validity for the post-assembly self-check.
func New(pool *mempool.Pool, tips TipProvider, finality FinalityChecker, validity BlockValidityChecker,
	timeSrc func() int64, cfg Config) *Assembler {

	return &Assembler{
		pool:     pool,
		tips:     tips,
		finality: finality,
		validity: validity,
		timeSrc:  timeSrc,
		cfg:      cfg,
	}
}

// CreateNewSubBlock runs the full assembly pipeline described in spec.md
// §4.7 against tip and returns the finished template, or an AssemblyError
// if the post-assembly self-check fails.
func (a *Assembler) CreateNewSubBlock(tip ChainTip, prevBlockHash chainhash.Hash, minerScript []byte, nBits uint32) (*Template, error) {
	if a.pool == nil {
		return nil, assemblyErrorf(ErrMempoolUnavailable, "assembler has no mempool bound")
	}
	if tip.Height < 0 {
		return nil, assemblyErrorf(ErrMempoolUnavailable, "no chain tip available (height %d)", tip.Height)
	}

	height := tip.Height + 1
	lockTimeCutoff := adjustedTimeMicros(a.timeSrc)
	if tip.MTPRuleActive {
		lockTimeCutoff = tip.MedianTimePast
	}

	accountant := NewAccountant(a.cfg.BlockMaxSize, a.cfg.Activations, height)
	tips := a.tips.Tips()
	if err := accountant.ReserveInitial(minerScript, tips, a.cfg.CoinbaseReserve); err != nil {
		return nil, assemblyErrorf(ErrAssemblyFailed, "reserve initial: %v", err)
	}

	// The whole pipeline below reads through one Snapshot rather than
	// a.pool directly, so every phase — priority, then score or package —
	// observes the same pool state even if a concurrent AddEntry or
	// RemoveEntry lands mid-assembly, per spec.md §5.
	snapshot := a.pool.NewSnapshot()
	defer snapshot.Release()

	now := a.timeSrc()
	filter := NewFilter(accountant, a.finality, snapshot.RespendOracle(), a.cfg.Activations, height, lockTimeCutoff, now)

	inBlock := newInBlockSet()

	priority := NewPrioritySelector(snapshot, filter, accountant, a.cfg.BlockPrioritySize, height, a.cfg.PrintPriority)
	priorityResult := priority.Run(inBlock)

	var feeResult Result
	switch a.cfg.Strategy {
	case StrategyPackage:
		pkg := NewPackageSelector(snapshot, filter, accountant, a.finality, a.cfg.MinRelayFeeRate,
			a.cfg.BlockMinSize, a.cfg.BlockMaxSize, height, lockTimeCutoff)
		feeResult = pkg.Run(inBlock)
	default:
		score := NewScoreSelector(snapshot, filter, accountant)
		feeResult = score.Run(inBlock)
	}

	selected := make([]*mempool.Entry, 0, len(priorityResult.Placed)+len(feeResult.Placed))
	selected = append(selected, priorityResult.Placed...)
	selected = append(selected, feeResult.Placed...)

	sort.Slice(selected, func(i, j int) bool {
		return bytes.Compare(selected[i].Hash[:], selected[j].Hash[:]) < 0
	})

	proofBase, err := BuildProofBase(ProofBaseInput{
		Height:      height,
		MinerScript: minerScript,
		Tips:        tips,
		Activations: a.cfg.Activations,
	})
	if err != nil {
		return nil, assemblyErrorf(ErrAssemblyFailed, "build final proof-base: %v", err)
	}

	return a.finishTemplate(proofBase, selected, accountant, height, prevBlockHash, nBits, now, tip.MedianTimePast)
}
