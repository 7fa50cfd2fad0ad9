// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
)

func TestBuildProofBaseDeterministic(t *testing.T) {
	in := ProofBaseInput{
		Height:      500001,
		MinerScript: []byte{0x51},
		Tips:        []chainhash.Hash{chainhash.HashH([]byte("tip1"))},
		Activations: chainparam.ActivationHeights{},
	}

	a, err := BuildProofBase(in)
	require.NoError(t, err)
	b, err := BuildProofBase(in)
	require.NoError(t, err)

	require.Equal(t, a.MsgTx().SerializeSize(), b.MsgTx().SerializeSize())
	require.True(t, a.Hash().IsEqual(b.Hash()))
}

func TestBuildProofBaseEmbedsOneInputPerTip(t *testing.T) {
	tips := []chainhash.Hash{chainhash.HashH([]byte("a")), chainhash.HashH([]byte("b")), chainhash.HashH([]byte("c"))}
	tx, err := BuildProofBase(ProofBaseInput{
		Height:      100,
		MinerScript: []byte{0x51},
		Tips:        tips,
	})
	require.NoError(t, err)

	// vin[0] is the coinbase (miner-script) input; one more input per tip
	// follows.
	require.Len(t, tx.MsgTx().TxIn, 1+len(tips))
	for i, tip := range tips {
		require.Equal(t, tip, tx.MsgTx().TxIn[i+1].PreviousOutPoint.Hash)
	}
}

func TestBuildProofBaseEmptyTipsAddsSyntheticInput(t *testing.T) {
	tx, err := BuildProofBase(ProofBaseInput{Height: 100, MinerScript: []byte{0x51}})
	require.NoError(t, err)
	require.Len(t, tx.MsgTx().TxIn, 2)
}

func TestBuildProofBasePadsToMinTxSizeAfterActivation(t *testing.T) {
	tx, err := BuildProofBase(ProofBaseInput{
		Height:      600000,
		MinerScript: []byte{0x51},
		Activations: chainparam.ActivationHeights{Nov2018Height: 500000},
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, tx.MsgTx().SerializeSize(), chainparam.MinTxSize)
}

func TestBuildProofBaseSkipsPaddingBeforeActivation(t *testing.T) {
	tx, err := BuildProofBase(ProofBaseInput{
		Height:      100,
		MinerScript: []byte{0x51},
		Activations: chainparam.ActivationHeights{Nov2018Height: 500000},
	})
	require.NoError(t, err)
	// The unpadded proof-base here is already 130 bytes, so the check is
	// that vin[0].scriptSig carries no padding push.
	wantScriptSig, err := coinbaseScriptSig([]byte{0x51})
	require.NoError(t, err)
	require.Equal(t, wantScriptSig, tx.MsgTx().TxIn[0].SignatureScript)
}

func TestCoinbaseScriptSigAppendsFlagsWhenRoomAllows(t *testing.T) {
	minerScript := []byte{0x51}
	scriptSig, err := coinbaseScriptSig(minerScript)
	require.NoError(t, err)
	require.Equal(t, minerScript, scriptSig[:len(minerScript)])
	require.Greater(t, len(scriptSig), len(minerScript))
}

func TestCoinbaseScriptSigTruncatesFlagsToFitBudget(t *testing.T) {
	longMinerScript := make([]byte, chainparam.MaxCoinbaseScriptSigSize)
	for i := range longMinerScript {
		longMinerScript[i] = 0x01
	}

	// A miner script that alone consumes the whole budget must leave no
	// room for the coinbase flags tag at all.
	scriptSig, err := coinbaseScriptSig(longMinerScript)
	require.NoError(t, err)
	require.Equal(t, longMinerScript, scriptSig)
}
