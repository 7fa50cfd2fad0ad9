// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"bytes"
	"container/heap"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// scoreItem is an entry parked on the "cleared" heap: one whose last
// mempool-parent blocker was just placed, so it must be retried ahead of
// any still-untried entry in the descending mining-score index (it
// necessarily carries a higher score than anything not yet tried).
type scoreItem struct {
	entry *mempool.Entry
}

type clearedHeap []*scoreItem

func (h clearedHeap) Len() int { return len(h) }
func (h clearedHeap) Less(i, j int) bool {
	si, sj := h[i].entry.MiningScore(), h[j].entry.MiningScore()
	if si != sj {
		return si > sj
	}
	return bytes.Compare(h[i].entry.Hash[:], h[j].entry.Hash[:]) < 0
}
func (h clearedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *clearedHeap) Push(x interface{}) {
	*h = append(*h, x.(*scoreItem))
}
func (h *clearedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ScoreSelector fills the fee region of the sub-block by single-tx mining
// score (modified fee / size), with dependency deferral (C5).
type ScoreSelector struct {
	pool       mempool.PoolReader
	filter     *Filter
	accountant *Accountant
}

// NewScoreSelector returns a score selector.
func NewScoreSelector(pool mempool.PoolReader, filter *Filter, accountant *Accountant) *ScoreSelector {
	return &ScoreSelector{pool: pool, filter: filter, accountant: accountant}
}

// Run executes the score phase against inBlock, committing accepted
// entries to both accountant and inBlock as it goes.
func (s *ScoreSelector) Run(inBlock *inBlockSet) Result {
	var result Result

	index := s.pool.MiningScoreOrder()
	idx := 0

	cleared := &clearedHeap{}
	heap.Init(cleared)

	waiting := make(map[chainhash.Hash][]*mempool.Entry)

	nextFromIndex := func() (*mempool.Entry, bool) {
		for idx < len(index) {
			e := index[idx]
			idx++
			return e, true
		}
		return nil, false
	}

	for {
		if s.accountant.Finished() {
			break
		}

		var e *mempool.Entry
		if cleared.Len() > 0 {
			e = heap.Pop(cleared).(*scoreItem).entry
		} else {
			var ok bool
			e, ok = nextFromIndex()
			if !ok {
				break
			}
		}

		if inBlock.has(e.Hash) {
			continue
		}
		if !allParentsInBlock(e, inBlock) {
			waiting[e.Hash] = append(waiting[e.Hash], e)
			continue
		}

		if !s.filter.TestForBlock(e) {
			continue
		}

		s.accountant.Commit(uint32(e.Size), uint32(e.SigOps), e.ModifiedFee)
		inBlock.add(e.Hash)
		result.Placed = append(result.Placed, e)

		for _, child := range e.Children() {
			if parked, ok := waiting[child.Hash]; ok {
				delete(waiting, child.Hash)
				for _, p := range parked {
					heap.Push(cleared, &scoreItem{entry: p})
				}
			}
		}
	}

	return result
}
