// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
)

// nullOutPointIndexWithTips is the index field used for vin[0]'s always-
// null outpoint (the conventional coinbase null outpoint).
const nullOutPointIndexWithTips = 0xffffffff

// nullOutPointIndexNoTips is the constant index used for the synthetic
// second input appended when the tip list is empty, chosen only so its
// outpoint differs from vin[0]'s.
const nullOutPointIndexNoTips = 0

// ProofBaseInput carries everything BuildProofBase needs to produce a
// deterministic proof-base transaction (C2).
type ProofBaseInput struct {
	// Height gates the Nov2018Active min-tx-size padding rule; it is not
	// otherwise embedded in the proof-base (spec.md §4.2/§6 does not
	// include a BIP34-style height push).
	Height int32

	// MinerScript is the miner-supplied script both the scriptSig
	// prefix and the sole output pay to.
	MinerScript []byte

	// Tips is the DAG tip hash list to embed as reference inputs.
	Tips []chainhash.Hash

	Activations chainparam.ActivationHeights

	// AssemblyStage is purely documentary here: BuildProofBase behaves
	// identically whether called for sizing or for the final build,
	// which is exactly the byte-compatibility property the two-phase
	// design in spec.md §9 depends on.
	AssemblyStage bool
}

// BuildProofBase constructs the proof-base transaction described in
// spec.md §4.2/§6. Given the same input it always returns a byte-identical
// result.
func BuildProofBase(in ProofBaseInput) (*btcutil.Tx, error) {
	msgTx := wire.NewMsgTx(wire.TxVersion)

	scriptSig, err := coinbaseScriptSig(in.MinerScript)
	if err != nil {
		return nil, err
	}

	msgTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: nullOutPointIndexWithTips},
		SignatureScript:  scriptSig,
		Sequence:         wire.MaxTxInSequenceNum,
	})

	if len(in.Tips) == 0 {
		msgTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: nullOutPointIndexNoTips},
			Sequence:         wire.MaxTxInSequenceNum,
		})
	} else {
		for _, tip := range in.Tips {
			msgTx.AddTxIn(&wire.TxIn{
				PreviousOutPoint: wire.OutPoint{Hash: tip, Index: 0},
				Sequence:         wire.MaxTxInSequenceNum,
			})
		}
	}

	pkScript, err := txscript.NewScriptBuilder().AddData(in.MinerScript).Script()
	if err != nil {
		return nil, err
	}
	msgTx.AddTxOut(&wire.TxOut{Value: 0, PkScript: pkScript})

	tx := btcutil.NewTx(msgTx)

	if in.Activations.Nov2018Active(in.Height) {
		if err := padToMinTxSize(tx); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

// coinbaseScriptSig builds vin[0].scriptSig: minerScript followed by
// chainparam.CoinbaseFlags, truncated as needed to respect
// chainparam.MaxCoinbaseScriptSigSize, per spec.md §4.2/§6.
func coinbaseScriptSig(minerScript []byte) ([]byte, error) {
	budget := chainparam.MaxCoinbaseScriptSigSize - len(minerScript)
	flags := chainparam.CoinbaseFlags
	if budget < 0 {
		budget = 0
	}
	if len(flags) > budget {
		flags = flags[:budget]
	}

	scriptSig := make([]byte, 0, len(minerScript)+len(flags))
	scriptSig = append(scriptSig, minerScript...)
	scriptSig = append(scriptSig, flags...)
	return scriptSig, nil
}

// padToMinTxSize pads vin[0].scriptSig with zero bytes so tx's serialized
// size is at least chainparam.MinTxSize, per spec.md §3/§4.2.
func padToMinTxSize(tx *btcutil.Tx) error {
	size := tx.MsgTx().SerializeSize()
	if size >= chainparam.MinTxSize {
		return nil
	}

	needed := chainparam.MinTxSize - size - 1
	if needed < 0 {
		needed = 0
	}

	padding := make([]byte, needed)
	builder := txscript.NewScriptBuilder()
	builder.AddOps(tx.MsgTx().TxIn[0].SignatureScript)
	builder.AddData(padding)
	padded, err := builder.Script()
	if err != nil {
		return err
	}
	tx.MsgTx().TxIn[0].SignatureScript = padded
	return nil
}
