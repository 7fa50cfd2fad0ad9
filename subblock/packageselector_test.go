// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// TestPackageSelectorCPFPUplift is spec.md §8's CPFP-uplift property: a
// low-fee parent paired with a high-fee child is admitted as one group
// even though the parent alone would never clear the relay floor.
func TestPackageSelectorCPFPUplift(t *testing.T) {
	pool := mempool.New()
	a := newTestAccountant(t, 1000000)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	parent := newTestEntry(1, 1000, 0, 10) // fee rate 0.01 sat/byte, below any relay floor
	pool.AddEntry(parent, nil)
	child := newTestEntry(2, 1000, 0, 10000) // fee rate 10 sat/byte
	pool.AddEntry(child, chainhashOf(parent))

	sel := NewPackageSelector(pool, f, a, alwaysFinal{}, 1.0, 0, 1000000, 100, 0)
	result := sel.Run(newInBlockSet())

	require.Len(t, result.Placed, 2)
	placedHashes := map[[32]byte]bool{}
	for _, e := range result.Placed {
		placedHashes[e.Hash] = true
	}
	require.True(t, placedHashes[parent.Hash])
	require.True(t, placedHashes[child.Hash])
}

// TestPackageSelectorEarlyTermination mirrors the early-termination rule:
// once a package's ancestor fee rate drops below minRelayFee and the
// block already has blockMinSize bytes, nothing further is considered.
func TestPackageSelectorEarlyTermination(t *testing.T) {
	pool := mempool.New()
	a := newTestAccountant(t, 1000000)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	good := newTestEntry(1, 1000, 0, 10000) // 10 sat/byte, clears the floor
	pool.AddEntry(good, nil)
	starved := newTestEntry(2, 1000, 0, 1) // far below the 1 sat/byte floor
	pool.AddEntry(starved, nil)

	a.Commit(500, 0, 0) // pretend the block already has some content

	sel := NewPackageSelector(pool, f, a, alwaysFinal{}, 1.0, 0, 1000000, 100, 0)
	result := sel.Run(newInBlockSet())

	require.Len(t, result.Placed, 1)
	require.Equal(t, good.Hash, result.Placed[0].Hash)
}

// TestPackageSelectorAllOrNothingOnOversizePackage confirms invariant §8.8:
// a package that would not fit whole is skipped entirely, never partially
// admitted.
func TestPackageSelectorAllOrNothingOnOversizePackage(t *testing.T) {
	pool := mempool.New()
	a := newTestAccountant(t, 1200)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	// parent's own fee rate is far below the relay floor, so it is never
	// individually admissible; child's fee rate is high, so the
	// combined ancestor package is what gets a chance — and it does not
	// fit in the remaining budget once the header/coinbase reserve is
	// charged.
	parent := newTestEntry(1, 1000, 0, 1)
	pool.AddEntry(parent, nil)
	child := newTestEntry(2, 200, 0, 20000)
	pool.AddEntry(child, chainhashOf(parent))

	sel := NewPackageSelector(pool, f, a, alwaysFinal{}, 1.0, 0, 1200, 100, 0)
	result := sel.Run(newInBlockSet())

	require.Empty(t, result.Placed)
}

// TestPackageSelectorStopsAfterPackageFailureLimit covers spec.md §8 seed
// scenario 4: once the block is more than half full, five consecutive
// oversize packages exhaust chainparam.PackageFailureLimit and the phase
// bails out entirely — a smaller, easily-fitting candidate ordered right
// behind them in the ancestor-score index is never even tried.
func TestPackageSelectorStopsAfterPackageFailureLimit(t *testing.T) {
	pool := mempool.New()
	a := NewAccountant(2000, chainparam.ActivationHeights{}, 500000)
	require.NoError(t, a.ReserveInitial([]byte{0x51}, nil, chainparam.CoinbaseReserveMinimum))
	// Push the block comfortably past the 50%-full threshold that gates
	// packageFailures counting.
	a.Commit(900, 0, 0)
	require.Greater(t, a.BlockSize(), uint32(1000))

	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	// Five high-score (2 sat/byte) but oversize (900-byte) packages: each
	// clears the relay floor comfortably, so early termination never
	// fires, but none fits in the ~815 bytes of remaining budget.
	for seed := int64(1); seed <= 5; seed++ {
		e := newTestEntry(seed, 900, 0, 1800)
		pool.AddEntry(e, nil)
	}

	// A small, easily-fitting package with a lower fee rate (1 sat/byte),
	// ordered after the five above in descending ancestor-score order.
	fitting := newTestEntry(6, 100, 0, 100)
	pool.AddEntry(fitting, nil)

	sel := NewPackageSelector(pool, f, a, alwaysFinal{}, 1.0, 0, 2000, 100, 0)
	result := sel.Run(newInBlockSet())

	require.Empty(t, result.Placed)
}

func TestPackageSelectorSkipsNonFinalPackage(t *testing.T) {
	pool := mempool.New()
	a := newTestAccountant(t, 1000000)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	e := newTestEntry(1, 500, 0, 5000)
	pool.AddEntry(e, nil)

	sel := NewPackageSelector(pool, f, a, rejectFinal{}, 1.0, 0, 1000000, 100, 0)
	result := sel.Run(newInBlockSet())
	require.Empty(t, result.Placed)
}
