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

func TestScoreSelectorOrdersByMiningScoreDescending(t *testing.T) {
	pool := mempool.New()
	a := newTestAccountant(t, 1000000)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	low := newTestEntry(1, 1000, 0, 1000)  // score 1.0
	high := newTestEntry(2, 1000, 0, 5000) // score 5.0
	pool.AddEntry(low, nil)
	pool.AddEntry(high, nil)

	sel := NewScoreSelector(pool, f, a)
	result := sel.Run(newInBlockSet())

	require.Len(t, result.Placed, 2)
	require.Equal(t, high.Hash, result.Placed[0].Hash)
	require.Equal(t, low.Hash, result.Placed[1].Hash)
}

// TestScoreSelectorDefersHigherScoreChild mirrors spec.md §8's dependency
// deferral property for the fee phase: a high-score child must wait behind
// its low-score unconfirmed parent, which itself comes after a
// higher-score unrelated tx.
func TestScoreSelectorDefersHigherScoreChild(t *testing.T) {
	pool := mempool.New()
	a := newTestAccountant(t, 1000000)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	parent := newTestEntry(1, 1000, 0, 1000) // score 1.0, weakest
	pool.AddEntry(parent, nil)

	child := newTestEntry(2, 1000, 0, 10000) // score 10.0
	pool.AddEntry(child, chainhashOf(parent))

	unrelated := newTestEntry(3, 1000, 0, 5000) // score 5.0
	pool.AddEntry(unrelated, nil)

	sel := NewScoreSelector(pool, f, a)
	result := sel.Run(newInBlockSet())

	require.Len(t, result.Placed, 3)
	// child is skipped on its first try (parent unresolved), unrelated is
	// placed next, then parent, then child once cleared.
	require.Equal(t, unrelated.Hash, result.Placed[0].Hash)
	require.Equal(t, parent.Hash, result.Placed[1].Hash)
	require.Equal(t, child.Hash, result.Placed[2].Hash)
}

// TestScoreSelectorCPFPUplift demonstrates that a low-fee parent, when
// paired with a high-fee child, is still admitted ahead of the child by
// the score phase because dependency order is enforced regardless of
// score — the ancestor-package uplift itself belongs to the package
// selector (C6), exercised separately in packageselector_test.go.
func TestScoreSelectorCPFPUplift(t *testing.T) {
	pool := mempool.New()
	a := newTestAccountant(t, 1000000)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	parent := newTestEntry(1, 1000, 0, 100) // very low fee rate
	pool.AddEntry(parent, nil)
	child := newTestEntry(2, 1000, 0, 50000) // very high fee rate
	pool.AddEntry(child, chainhashOf(parent))

	sel := NewScoreSelector(pool, f, a)
	result := sel.Run(newInBlockSet())

	require.Len(t, result.Placed, 2)
	require.Equal(t, parent.Hash, result.Placed[0].Hash)
	require.Equal(t, child.Hash, result.Placed[1].Hash)
}

// TestScoreSelectorNearFullBailOut mirrors spec.md §8's near-full
// bail-out property: once a rejected candidate lands within the
// last-100-bytes margin of the cap, the accountant latches Finished and
// the phase stops admitting anything further.
func TestScoreSelectorNearFullBailOut(t *testing.T) {
	pool := mempool.New()
	a := NewAccountant(1000, chainparam.ActivationHeights{}, 100)
	f := NewFilter(a, alwaysFinal{}, nil, chainparam.ActivationHeights{}, 100, 0, 0)

	fits := newTestEntry(1, 950, 0, 10000) // score 10.526
	tooBig := newTestEntry(2, 200, 0, 100) // score 0.5, would overflow the cap
	pool.AddEntry(fits, nil)
	pool.AddEntry(tooBig, nil)

	sel := NewScoreSelector(pool, f, a)
	result := sel.Run(newInBlockSet())

	require.Len(t, result.Placed, 1)
	require.Equal(t, fits.Hash, result.Placed[0].Hash)
	require.True(t, a.Finished())
}
