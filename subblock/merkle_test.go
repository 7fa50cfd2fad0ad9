// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestCalcMerkleRootEmpty(t *testing.T) {
	root := calcMerkleRoot(nil)
	require.Equal(t, chainhash.Hash{}, root)
}

func TestCalcMerkleRootSingleTx(t *testing.T) {
	tx := newFilterTx(1)
	root := calcMerkleRoot([]*btcutil.Tx{tx})
	require.Equal(t, *tx.Hash(), root)
}

func TestCalcMerkleRootEvenCount(t *testing.T) {
	a := newFilterTx(1)
	b := newFilterTx(2)
	root := calcMerkleRoot([]*btcutil.Tx{a, b})

	var buf [chainhash.HashSize * 2]byte
	ha, hb := *a.Hash(), *b.Hash()
	copy(buf[:chainhash.HashSize], ha[:])
	copy(buf[chainhash.HashSize:], hb[:])
	want := chainhash.DoubleHashH(buf[:])

	require.Equal(t, want, root)
}

func TestCalcMerkleRootOddCountDuplicatesLast(t *testing.T) {
	a := newFilterTx(1)
	b := newFilterTx(2)
	c := newFilterTx(3)

	oddRoot := calcMerkleRoot([]*btcutil.Tx{a, b, c})
	evenRoot := calcMerkleRoot([]*btcutil.Tx{a, b, c, c})

	require.Equal(t, evenRoot, oddRoot)
}

func TestCalcMerkleRootDeterministic(t *testing.T) {
	a := newFilterTx(1)
	b := newFilterTx(2)
	c := newFilterTx(3)

	r1 := calcMerkleRoot([]*btcutil.Tx{a, b, c})
	r2 := calcMerkleRoot([]*btcutil.Tx{a, b, c})
	require.Equal(t, r1, r2)
}
