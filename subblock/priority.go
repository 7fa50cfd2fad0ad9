// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import (
	"bytes"
	"container/heap"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Greg-Griffith/BitcoinUnlimited/chainparam"
	"github.com/Greg-Griffith/BitcoinUnlimited/mempool"
)

// priorityItem is one entry on the priority max-heap, carrying the
// priority value it was pushed with so re-pushes after a parent clears
// use the value computed at push time (mirroring the source's txPrioItem).
type priorityItem struct {
	entry    *mempool.Entry
	priority float64
}

// priorityHeap is a container/heap max-heap ordered by priority, tie-broken
// by ascending tx hash so the pop order is a deterministic total order
// given the mempool snapshot, per spec.md §5.
type priorityHeap []*priorityItem

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return bytes.Compare(h[i].entry.Hash[:], h[j].entry.Hash[:]) < 0
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x interface{}) {
	*h = append(*h, x.(*priorityItem))
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// inBlockSet tracks the mempool-entry handles already placed in the
// template under construction, per spec.md §3's "in-block set".
type inBlockSet struct {
	members map[chainhash.Hash]struct{}
}

func newInBlockSet() *inBlockSet {
	return &inBlockSet{members: make(map[chainhash.Hash]struct{})}
}

func (s *inBlockSet) has(hash chainhash.Hash) bool {
	_, ok := s.members[hash]
	return ok
}

func (s *inBlockSet) add(hash chainhash.Hash) {
	s.members[hash] = struct{}{}
}

// allParentsInBlock reports whether every mempool-resident parent of e is
// already in inBlock.
func allParentsInBlock(e *mempool.Entry, inBlock *inBlockSet) bool {
	for _, p := range e.Parents() {
		if !inBlock.has(p.Hash) {
			return false
		}
	}
	return true
}

// PrioritySelector fills the initial priority-reserved region of the
// sub-block by coin-age priority, with dependency deferral (C4).
type PrioritySelector struct {
	pool              mempool.PoolReader
	filter            *Filter
	accountant        *Accountant
	blockPrioritySize uint32
	height            int32
	printPriority     bool
}

// NewPrioritySelector returns a priority selector that will fill up to
// blockPrioritySize bytes; a zero value disables the phase entirely, per
// spec.md §4.4/§8. printPriority mirrors the printpriority configuration
// knob: when set, every placed transaction's priority is logged as it is
// selected.
func NewPrioritySelector(pool mempool.PoolReader, filter *Filter, accountant *Accountant, blockPrioritySize uint32,
	height int32, printPriority bool) *PrioritySelector {

	return &PrioritySelector{
		pool:              pool,
		filter:            filter,
		accountant:        accountant,
		blockPrioritySize: blockPrioritySize,
		height:            height,
		printPriority:     printPriority,
	}
}

// Result is what a fee-region-filling phase, and the priority phase,
// return: the ordered set of entries committed to the in-block set, in
// the order they were placed.
type Result struct {
	Placed []*mempool.Entry
}

// Run executes the priority phase against inBlock, committing accepted
// entries to both accountant and inBlock as it goes.
func (s *PrioritySelector) Run(inBlock *inBlockSet) Result {
	var result Result
	if s.blockPrioritySize == 0 {
		return result
	}

	h := &priorityHeap{}
	heap.Init(h)
	waiting := make(map[chainhash.Hash][]*priorityItem)

	for _, e := range s.pool.InsertionHashOrder() {
		// e.Priority already includes e.PriorityDelta; ApplyDeltas adds the
		// pool's recorded delta, so it is given the priority without it.
		priority, _ := s.pool.ApplyDeltas(e.Hash, e.Priority(s.height)-e.PriorityDelta, e.ModifiedFee)
		heap.Push(h, &priorityItem{entry: e, priority: priority})
	}

	for h.Len() > 0 {
		if s.accountant.Finished() {
			break
		}

		item := heap.Pop(h).(*priorityItem)
		e := item.entry

		if inBlock.has(e.Hash) {
			continue
		}
		if !allParentsInBlock(e, inBlock) {
			waiting[e.Hash] = append(waiting[e.Hash], item)
			continue
		}

		if !s.filter.TestForBlock(e) {
			continue
		}

		s.accountant.Commit(uint32(e.Size), uint32(e.SigOps), e.ModifiedFee)
		inBlock.add(e.Hash)
		result.Placed = append(result.Placed, e)

		if s.printPriority {
			log.Infof("priority %.1f fee %v size %v txid %v", item.priority, e.ModifiedFee, e.Size, e.Hash)
		}

		for _, child := range e.Children() {
			if parked, ok := waiting[child.Hash]; ok {
				delete(waiting, child.Hash)
				for _, p := range parked {
					heap.Push(h, p)
				}
			}
		}

		// Terminate the phase once the reserved region is full or the
		// last-placed transaction dropped below the free-relay
		// priority threshold: anything lower is better served by the
		// fee-based phase that follows.
		if s.accountant.BlockSize() >= s.blockPrioritySize || item.priority < chainparam.MinHighPriority {
			break
		}
	}

	return result
}
