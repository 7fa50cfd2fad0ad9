// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

func TestAdjustedTimeMicrosConvertsToSeconds(t *testing.T) {
	got := adjustedTimeMicros(func() int64 { return 5_500_000 })
	require.Equal(t, int64(5), got)
}

func TestUpdateBlockTimeConvertsToSecondsWhenAheadOfMTP(t *testing.T) {
	require.Equal(t, uint32(5), UpdateBlockTime(5_999_999, 0))
}

// TestUpdateBlockTimeClampsToMedianTimePastWhenClockLags mirrors
// miner_common.cpp's UpdateTime: a local clock that lags the chain tip's
// median-time-past must not produce a non-monotonic header timestamp.
func TestUpdateBlockTimeClampsToMedianTimePastWhenClockLags(t *testing.T) {
	require.Equal(t, uint32(101), UpdateBlockTime(5_000_000, 100))
}

func TestComputeVersionReturnsBaseline(t *testing.T) {
	require.Equal(t, int32(0x20000000), computeVersion(100))
}

func TestLegacySigOpCountCountsOutputAndInputScripts(t *testing.T) {
	tx := newFilterTx(1)
	// newFilterTx's scripts (OP_TRUE output, empty sigScript) carry no
	// sig-op opcodes.
	require.Equal(t, 0, legacySigOpCount(tx))
}

func newTestAssembler(t *testing.T, maxBlockSize uint32) *Assembler {
	t.Helper()
	cfg := Config{
		BlockMaxSize:    maxBlockSize,
		CoinbaseReserve: chainparam.CoinbaseReserveMinimum,
		Activations:     chainparam.ActivationHeights{},
	}
	return New(nil, nil, alwaysFinal{}, nil, func() int64 { return 1_000_000 }, cfg)
}

func TestFinishTemplateFillsFeesAndHeader(t *testing.T) {
	a := newTestAssembler(t, 1000000)

	proofBase, err := BuildProofBase(ProofBaseInput{Height: 1, MinerScript: []byte{0x51}})
	require.NoError(t, err)

	e1 := newTestEntry(1, 500, 0, 1000)
	e2 := newTestEntry(2, 500, 0, 2000)

	accountant := NewAccountant(1000000, chainparam.ActivationHeights{}, 1)

	prevHash := chainhash.HashH([]byte("prev"))
	tmpl, err := a.finishTemplate(proofBase, []*mempool.Entry{e1, e2}, accountant, 1, prevHash, 0x1d00ffff, 3_000_000, 0)
	require.NoError(t, err)

	require.Equal(t, 3, len(tmpl.Transactions))
	require.Equal(t, proofBase, tmpl.Transactions[0])
	require.Equal(t, int64(-3000), tmpl.Fees[0])
	require.Equal(t, int64(1000), tmpl.Fees[1])
	require.Equal(t, int64(2000), tmpl.Fees[2])
	require.Equal(t, int64(3000), tmpl.TotalFees())

	require.Equal(t, int64(3000), proofBase.MsgTx().TxOut[0].Value)

	require.Equal(t, prevHash, tmpl.Header.PrevBlock)
	require.Equal(t, uint32(0x1d00ffff), tmpl.Header.Bits)
	require.Equal(t, uint32(3), tmpl.Header.Timestamp)
	require.Equal(t, calcMerkleRoot(tmpl.Transactions), tmpl.Header.MerkleRoot)
}

func TestFinishTemplateCarriesExpeditedValidationFlag(t *testing.T) {
	a := newTestAssembler(t, 1000000)
	a.cfg.ExpeditedValidation = true

	proofBase, err := BuildProofBase(ProofBaseInput{Height: 1, MinerScript: []byte{0x51}})
	require.NoError(t, err)
	accountant := NewAccountant(1000000, chainparam.ActivationHeights{}, 1)

	tmpl, err := a.finishTemplate(proofBase, nil, accountant, 1, chainhash.Hash{}, 0, 0, 0)
	require.NoError(t, err)
	require.True(t, tmpl.ExpeditedValidation)
}

func TestFinishTemplateUsesConfiguredVersionOverride(t *testing.T) {
	a := newTestAssembler(t, 1000000)
	a.cfg.BlockVersion = 4

	proofBase, err := BuildProofBase(ProofBaseInput{Height: 1, MinerScript: []byte{0x51}})
	require.NoError(t, err)
	accountant := NewAccountant(1000000, chainparam.ActivationHeights{}, 1)

	tmpl, err := a.finishTemplate(proofBase, nil, accountant, 1, chainhash.Hash{}, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int32(4), tmpl.Header.Version)
}

func TestFinishTemplatePropagatesValidityCheckFailure(t *testing.T) {
	a := newTestAssembler(t, 1000000)
	a.validity = rejectValidity{}

	proofBase, err := BuildProofBase(ProofBaseInput{Height: 1, MinerScript: []byte{0x51}})
	require.NoError(t, err)
	accountant := NewAccountant(1000000, chainparam.ActivationHeights{}, 1)

	_, err = a.finishTemplate(proofBase, nil, accountant, 1, chainhash.Hash{}, 0, 0, 0)
	require.Error(t, err)

	assemblyErr, ok := err.(AssemblyError)
	require.True(t, ok)
	require.Equal(t, ErrAssemblyFailed, assemblyErr.ErrorCode)
}

type rejectValidity struct{}

func (rejectValidity) CheckSubBlockValidity(*Template, int32) error {
	return errAlwaysInvalid
}

var errAlwaysInvalid = assemblyErrorf(ErrAssemblyFailed, "rejected by test stub")
