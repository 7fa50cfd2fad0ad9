// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package slptoken

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/syndtr/goleveldb/leveldb"
)

// entryFlags mirrors blockchain.txoFlags: a bitmask of cache-entry state.
type entryFlags uint8

const (
	// flagDirty indicates the entry's state (potentially) deviates from
	// what's in the store and must be written on the next flush.
	flagDirty entryFlags = 1 << iota

	// flagFresh marks an entry that a Spend erases from the cache
	// outright instead of writing a tombstone. Add sets it on an entry
	// that was not already DIRTY, and Get sets it on an entry loaded from
	// the store; for the latter, the store's copy is not deleted by a
	// later BatchWrite.
	flagFresh

	// flagSpent indicates the token has been spent and should be erased
	// from the store on the next flush.
	flagSpent
)

type cacheEntry struct {
	token Token
	flags entryFlags
}

// defaultFragmentBytes bounds the size of a single underlying write batch
// during BatchWrite, breaking a large flush into fragments so it does not
// spike memory the way one giant batch would.
const defaultFragmentBytes = 4 * 1024 * 1024

// approxEntryBytes is a fixed per-entry accounting size used to decide
// when a batch fragment is full; token records are small and fixed-size
// so a constant estimate is sufficient.
const approxEntryBytes = chainhash.HashSize + 9 + 36

// Cache is the DIRTY/FRESH token cache overlay over Store (C8). It is
// guarded by a single reader-writer lock, cs_slp_utxo in the source,
// exactly as spec.md §5 describes: readers take shared access, and a
// reader that misses the cache releases the shared lock, takes the
// exclusive lock, re-probes, and only then populates from the store.
type Cache struct {
	mtx   sync.RWMutex
	store *Store

	entries map[wire.OutPoint]*cacheEntry

	// FragmentBytes bounds a single write-batch fragment during
	// BatchWrite. Defaults to defaultFragmentBytes when zero.
	FragmentBytes int
}

// NewCache returns a cache overlaying store.
func NewCache(store *Store) *Cache {
	return &Cache{
		store:   store,
		entries: make(map[wire.OutPoint]*cacheEntry),
	}
}

// Get returns the token for outpoint, or nil if it does not exist or has
// been spent. It implements the lock-escalation discipline from spec.md
// §4.8/§5/§9: probe under shared lock; on miss, escalate to exclusive
// lock, load from the store, insert as FRESH, and return.
func (c *Cache) Get(outpoint wire.OutPoint) (*Token, error) {
	c.mtx.RLock()
	if e, ok := c.entries[outpoint]; ok {
		c.mtx.RUnlock()
		if e.flags&flagSpent != 0 {
			return nil, nil
		}
		tok := e.token
		return &tok, nil
	}
	c.mtx.RUnlock()

	c.mtx.Lock()
	defer c.mtx.Unlock()

	// Re-probe: another writer may have populated this outpoint between
	// the unlock above and taking the exclusive lock.
	if e, ok := c.entries[outpoint]; ok {
		if e.flags&flagSpent != 0 {
			return nil, nil
		}
		tok := e.token
		return &tok, nil
	}

	tok, err := c.store.Get(outpoint)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}

	c.entries[outpoint] = &cacheEntry{token: *tok, flags: flagFresh}
	return tok, nil
}

// Add inserts or overwrites the token for outpoint, marking it DIRTY.
// If the entry did not already exist as DIRTY, it is also marked FRESH,
// per spec.md §4.8.
func (c *Cache) Add(outpoint wire.OutPoint, tok Token) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	existing, ok := c.entries[outpoint]
	fresh := !ok || existing.flags&flagDirty == 0

	flags := flagDirty
	if fresh {
		flags |= flagFresh
	}
	c.entries[outpoint] = &cacheEntry{token: tok, flags: flags}

	log.Tracef("Added SLP token entry %v (token %v, amount %v)", outpoint, tok.TokenID, tok.Amount)
}

// Spend marks outpoint as spent. A FRESH entry (see flagFresh) is erased
// from the cache outright; anything else is marked DIRTY and recorded as
// spent so BatchWrite erases it from the store.
func (c *Cache) Spend(outpoint wire.OutPoint) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	e, ok := c.entries[outpoint]
	if !ok {
		e = &cacheEntry{}
		c.entries[outpoint] = e
	}

	if e.flags&flagFresh != 0 {
		delete(c.entries, outpoint)
		log.Tracef("Spent FRESH SLP token entry %v, erased outright", outpoint)
		return
	}

	e.flags |= flagDirty | flagSpent
	log.Tracef("Spent SLP token entry %v, marked for tombstone on next flush", outpoint)
}

// FlushMode controls whether BatchWrite evicts flushed entries from
// memory after a successful write, matching the "chain-near-synced"
// condition in spec.md §4.8.
type FlushMode int

const (
	// FlushKeepCache leaves flushed entries resident (still useful while
	// the chain is far from tip and further writes are imminent).
	FlushKeepCache FlushMode = iota

	// FlushEvict discards flushed entries from the cache to cap memory,
	// appropriate once the chain is near-synced.
	FlushEvict
)

// BatchWrite flushes every DIRTY entry to the store, in batches no larger
// than FragmentBytes (defaultFragmentBytes if unset), and optionally
// advances the stored best-block hash once every fragment has been
// written successfully. The best-block hash is never advanced on a
// failed write, preserving the "store ∪ dirty-in-cache" invariant from
// spec.md §3.
func (c *Cache) BatchWrite(mode FlushMode, bestBlock *chainhash.Hash) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	fragmentBytes := c.FragmentBytes
	if fragmentBytes <= 0 {
		fragmentBytes = defaultFragmentBytes
	}

	// Sanity bookkeeping pass, grounded on slpvalidation.cpp's explicit
	// amount-overflow checks: sum the amount being flushed per token using
	// Token.AddAmount's overflow guard, so a corrupted cache that would
	// overflow a token's total is caught here and the whole flush is
	// aborted rather than partially written.
	totals := make(map[chainhash.Hash]Token)
	for _, e := range c.entries {
		if e.flags&flagDirty == 0 || e.flags&flagSpent != 0 {
			continue
		}
		total, ok := totals[e.token.TokenID]
		if !ok {
			total = Token{TokenID: e.token.TokenID}
		}
		total, err := total.AddAmount(e.token.Amount)
		if err != nil {
			return fmt.Errorf("slptoken: flush aborted for token %v: %w", e.token.TokenID, err)
		}
		totals[e.token.TokenID] = total
	}
	for tokenID, total := range totals {
		log.Debugf("Flushing token %v: %d units across dirty outputs", tokenID, total.Amount)
	}

	batch := new(leveldb.Batch)
	batchBytes := 0
	flushedKeys := make([]wire.OutPoint, 0, len(c.entries))

	flushFragment := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := c.store.WriteBatch(batch); err != nil {
			return err
		}
		batch = new(leveldb.Batch)
		batchBytes = 0
		return nil
	}

	for outpoint, e := range c.entries {
		if e.flags&flagDirty == 0 {
			continue
		}

		if e.flags&flagSpent != 0 {
			batch.Delete(TokenKey(outpoint))
		} else {
			batch.Put(TokenKey(outpoint), e.token.Serialize())
		}
		batchBytes += approxEntryBytes
		flushedKeys = append(flushedKeys, outpoint)

		if batchBytes >= fragmentBytes {
			if err := flushFragment(); err != nil {
				return err
			}
		}
	}

	if bestBlock != nil {
		batch.Put(BestBlockKey(), bestBlock[:])
	}
	if err := flushFragment(); err != nil {
		return err
	}

	for _, outpoint := range flushedKeys {
		e, ok := c.entries[outpoint]
		if !ok {
			continue
		}
		if e.flags&flagSpent != 0 {
			delete(c.entries, outpoint)
			continue
		}
		e.flags &^= flagDirty | flagFresh
		if mode == FlushEvict {
			delete(c.entries, outpoint)
		}
	}

	return nil
}

// Len returns the number of entries currently resident in the cache.
func (c *Cache) Len() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return len(c.entries)
}
