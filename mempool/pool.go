// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool implements the concrete, concurrency-safe transaction
// pool that the sub-block assembler reads: the insertion-hash, mining-score,
// and ancestor-score orderings from spec.md §3/§6, plus the parent/child
// link bookkeeping the assembler's dependency-deferral logic depends on.
//
// Persistence, orphan handling, and full transaction validation are outside
// this package's scope (spec.md's Non-goals) — entries arrive pre-validated
// via AddEntry.
package mempool

import (
	"bytes"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/btree"
)

// scoreKey orders entries ascending by a float score, tie-broken by tx hash
// so the ordering is total and deterministic. btree.Descend then yields
// entries in descending score order, matching the mining-score and
// ancestor-score index contracts in spec.md §3.
type scoreKey struct {
	score float64
	hash  chainhash.Hash
}

func lessScoreKey(a, b scoreKey) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return bytes.Compare(a.hash[:], b.hash[:]) < 0
}

type indexedEntry struct {
	key   scoreKey
	entry *Entry
}

func lessIndexedEntry(a, b indexedEntry) bool {
	return lessScoreKey(a.key, b.key)
}

// Pool is the concrete mempool. All exported methods are safe for
// concurrent use.
type Pool struct {
	mtx sync.RWMutex

	byHash map[chainhash.Hash]*Entry

	scoreIndex    *btree.BTreeG[indexedEntry]
	ancestorIndex *btree.BTreeG[indexedEntry]

	deltas map[chainhash.Hash]delta

	respend *RespendOracle
}

type delta struct {
	fee      int64
	priority float64
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		byHash:        make(map[chainhash.Hash]*Entry),
		scoreIndex:    btree.NewG(32, lessIndexedEntry),
		ancestorIndex: btree.NewG(32, lessIndexedEntry),
		deltas:        make(map[chainhash.Hash]delta),
		respend:       NewRespendOracle(4096),
	}
}

// Size returns the number of transactions currently in the pool.
func (p *Pool) Size() int {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return len(p.byHash)
}

// Lookup returns the entry for hash, or nil if it is not in the pool.
func (p *Pool) Lookup(hash chainhash.Hash) *Entry {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.byHash[hash]
}

// ApplyDeltas applies any operator-supplied fee/priority override for hash
// on top of the base values, mirroring the source's applyDeltas.
func (p *Pool) ApplyDeltas(hash chainhash.Hash, priority float64, fee int64) (float64, int64) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.applyDeltasLocked(hash, priority, fee)
}

func (p *Pool) applyDeltasLocked(hash chainhash.Hash, priority float64, fee int64) (float64, int64) {
	if d, ok := p.deltas[hash]; ok {
		return priority + d.priority, fee + d.fee
	}
	return priority, fee
}

// PrioritiseTransaction records a persistent fee/priority delta for hash,
// applied by every subsequent ApplyDeltas call.
func (p *Pool) PrioritiseTransaction(hash chainhash.Hash, priorityDelta float64, feeDelta int64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	d := p.deltas[hash]
	d.priority += priorityDelta
	d.fee += feeDelta
	p.deltas[hash] = d
	if e, ok := p.byHash[hash]; ok {
		e.PriorityDelta += priorityDelta
		e.ModifiedFee += feeDelta
		e.Ancestors.Fee += feeDelta
		p.reindexLocked(e)
	}

	log.Tracef("Prioritised transaction %v (priority delta: %v, fee delta: %v)", hash, priorityDelta, feeDelta)
}

// AddEntry inserts e into the pool, wiring it to any already-resident
// parents/children by outpoint-derived hash sets supplied by the caller
// (the mempool's own conflict/UTXO bookkeeping is out of this package's
// scope; callers determine parentage from the transactions they hand in).
func (p *Pool) AddEntry(e *Entry, parentHashes []chainhash.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	e.parents = make(map[chainhash.Hash]*Entry)
	e.children = make(map[chainhash.Hash]*Entry)

	for _, ph := range parentHashes {
		parent, ok := p.byHash[ph]
		if !ok {
			continue
		}
		e.parents[ph] = parent
		parent.children[e.Hash] = e
	}

	// Sum over the distinct ancestor set so an ancestor reachable through
	// more than one parent is counted once.
	e.Ancestors = AncestorSummary{}
	for _, a := range p.calculateMempoolAncestorsLocked(e, nil) {
		e.Ancestors.Size += a.Size
		e.Ancestors.Fee += a.ModifiedFee
		e.Ancestors.SigOps += a.SigOps
		e.Ancestors.Count++
	}

	p.byHash[e.Hash] = e
	p.insertIndicesLocked(e)

	log.Debugf("Accepted transaction %v (pool size: %v)", e.Hash, len(p.byHash))
}

// RemoveEntry removes hash from the pool. It does not attempt to remove
// dependent children; callers are expected to have already removed or
// confirmed them, matching the "no dangling dependencies" invariant.
func (p *Pool) RemoveEntry(hash chainhash.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	for _, parent := range e.parents {
		delete(parent.children, hash)
	}
	for _, child := range e.children {
		delete(child.parents, hash)
	}
	p.removeIndicesLocked(e)
	delete(p.byHash, hash)

	log.Debugf("Removed transaction %v (pool size: %v)", hash, len(p.byHash))
}

func (p *Pool) insertIndicesLocked(e *Entry) {
	p.scoreIndex.ReplaceOrInsert(indexedEntry{
		key:   scoreKey{score: e.MiningScore(), hash: e.Hash},
		entry: e,
	})
	p.ancestorIndex.ReplaceOrInsert(indexedEntry{
		key:   scoreKey{score: e.Ancestors.Score(), hash: e.Hash},
		entry: e,
	})
}

func (p *Pool) removeIndicesLocked(e *Entry) {
	p.scoreIndex.Delete(indexedEntry{key: scoreKey{score: e.MiningScore(), hash: e.Hash}})
	p.ancestorIndex.Delete(indexedEntry{key: scoreKey{score: e.Ancestors.Score(), hash: e.Hash}})
}

// reindexLocked repositions e in both score indices after its fee/priority
// changed. Callers must hold p.mtx.
func (p *Pool) reindexLocked(e *Entry) {
	// The old keys are unrecoverable once the delta has already been
	// applied to e, so this is only safe to call immediately after
	// mutating e and before anything else reads the indices; scan-based
	// removal keeps the implementation simple since deltas are rare
	// relative to reads.
	p.scoreIndex.Ascend(func(item indexedEntry) bool {
		if item.entry == e {
			p.scoreIndex.Delete(item)
			return false
		}
		return true
	})
	p.ancestorIndex.Ascend(func(item indexedEntry) bool {
		if item.entry == e {
			p.ancestorIndex.Delete(item)
			return false
		}
		return true
	})
	p.insertIndicesLocked(e)
}

// InsertionHashOrder returns every entry ordered ascending by tx hash.
func (p *Pool) InsertionHashOrder() []*Entry {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.insertionHashOrderLocked()
}

func (p *Pool) insertionHashOrderLocked() []*Entry {
	out := make([]*Entry, 0, len(p.byHash))
	for _, e := range p.byHash {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Hash[:], out[j].Hash[:]) < 0
	})
	return out
}

// MiningScoreOrder returns every entry ordered descending by single-tx
// mining score (modified fee / size).
func (p *Pool) MiningScoreOrder() []*Entry {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.miningScoreOrderLocked()
}

func (p *Pool) miningScoreOrderLocked() []*Entry {
	out := make([]*Entry, 0, p.scoreIndex.Len())
	p.scoreIndex.Descend(func(item indexedEntry) bool {
		out = append(out, item.entry)
		return true
	})
	return out
}

// AncestorScoreOrder returns every entry ordered descending by ancestor
// score (best achievable Σfee/Σsize over the tx and its unconfirmed
// ancestors).
func (p *Pool) AncestorScoreOrder() []*Entry {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.ancestorScoreOrderLocked()
}

func (p *Pool) ancestorScoreOrderLocked() []*Entry {
	out := make([]*Entry, 0, p.ancestorIndex.Len())
	p.ancestorIndex.Descend(func(item indexedEntry) bool {
		out = append(out, item.entry)
		return true
	})
	return out
}

// GetMemPoolParents returns e's mempool-resident parents.
func (p *Pool) GetMemPoolParents(e *Entry) []*Entry {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return e.Parents()
}

// GetMemPoolChildren returns e's mempool-resident children.
func (p *Pool) GetMemPoolChildren(e *Entry) []*Entry {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return e.Children()
}

// CalculateMempoolAncestors performs a bounded walk of e's unconfirmed
// ancestors, stopping recursion at any entry already present in
// inBlockStop. It always includes e itself. This is the short-circuited
// ancestor walk the package selector (C6) relies on to avoid re-walking
// the whole ancestor set on every candidate.
func (p *Pool) CalculateMempoolAncestors(e *Entry, inBlockStop map[chainhash.Hash]struct{}) map[chainhash.Hash]*Entry {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.calculateMempoolAncestorsLocked(e, inBlockStop)
}

func (p *Pool) calculateMempoolAncestorsLocked(e *Entry, inBlockStop map[chainhash.Hash]struct{}) map[chainhash.Hash]*Entry {
	out := make(map[chainhash.Hash]*Entry)
	var walk func(cur *Entry)
	walk = func(cur *Entry) {
		if _, seen := out[cur.Hash]; seen {
			return
		}
		out[cur.Hash] = cur
		for _, parent := range cur.parents {
			if _, stopped := inBlockStop[parent.Hash]; stopped {
				continue
			}
			walk(parent)
		}
	}
	walk(e)
	return out
}

// RespendOracle returns the pool's double-spend-suspicion oracle.
func (p *Pool) RespendOracle() *RespendOracle {
	return p.respend
}

// PoolReader is the read-only accessor surface the sub-block assembler's
// selection phases need. *Pool implements it by locking independently on
// every call; *Snapshot implements it by reusing a single lock acquired
// once for a whole assembly run, per spec.md §5's requirement that every
// mempool read within one createNewSubBlock call observe a single
// consistent snapshot.
type PoolReader interface {
	InsertionHashOrder() []*Entry
	MiningScoreOrder() []*Entry
	AncestorScoreOrder() []*Entry
	ApplyDeltas(hash chainhash.Hash, priority float64, fee int64) (float64, int64)
	CalculateMempoolAncestors(e *Entry, inBlockStop map[chainhash.Hash]struct{}) map[chainhash.Hash]*Entry
	RespendOracle() *RespendOracle
}

// Snapshot is a PoolReader backed by a single RLock held for the
// Snapshot's whole lifetime, so a caller that drives several read phases
// off of it — the priority, score, and package selectors in one assembly
// run — sees one consistent view of the pool throughout, immune to
// concurrent AddEntry/RemoveEntry/PrioritiseTransaction calls landing
// mid-assembly. Release must be called exactly once.
type Snapshot struct {
	p *Pool
}

// NewSnapshot acquires p's read lock and returns a Snapshot over it.
func (p *Pool) NewSnapshot() *Snapshot {
	p.mtx.RLock()
	return &Snapshot{p: p}
}

// Release releases the read lock acquired by NewSnapshot.
func (s *Snapshot) Release() {
	s.p.mtx.RUnlock()
}

func (s *Snapshot) InsertionHashOrder() []*Entry {
	return s.p.insertionHashOrderLocked()
}

func (s *Snapshot) MiningScoreOrder() []*Entry {
	return s.p.miningScoreOrderLocked()
}

func (s *Snapshot) AncestorScoreOrder() []*Entry {
	return s.p.ancestorScoreOrderLocked()
}

func (s *Snapshot) ApplyDeltas(hash chainhash.Hash, priority float64, fee int64) (float64, int64) {
	return s.p.applyDeltasLocked(hash, priority, fee)
}

func (s *Snapshot) CalculateMempoolAncestors(e *Entry, inBlockStop map[chainhash.Hash]struct{}) map[chainhash.Hash]*Entry {
	return s.p.calculateMempoolAncestorsLocked(e, inBlockStop)
}

func (s *Snapshot) RespendOracle() *RespendOracle {
	return s.p.respend
}
