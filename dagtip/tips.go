// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package dagtip tracks the current leaf sub-blocks of the weak-block DAG.
// Graph maintenance itself (how a tip is validated, when it is superseded
// by a descendant) is the DAG ancestry engine's job and is out of scope
// here (spec.md §1); this package only offers the proof-base builder a
// small, deterministic collaborator to snapshot tips from.
package dagtip

import (
	"bytes"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Set is a thread-safe collection of DAG tip hashes.
type Set struct {
	mtx  sync.RWMutex
	tips map[chainhash.Hash]struct{}
}

// New returns an empty tip set.
func New() *Set {
	return &Set{tips: make(map[chainhash.Hash]struct{})}
}

// Add records hash as a current tip.
func (s *Set) Add(hash chainhash.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.tips[hash] = struct{}{}
}

// Remove drops hash from the tip set, typically because it has been
// superseded by a descendant sub-block.
func (s *Set) Remove(hash chainhash.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.tips, hash)
}

// Tips returns a stable, sorted snapshot of the current tip set. Sorting
// makes proof-base construction deterministic across two calls against an
// unchanged tip set, matching the two-phase-build byte-compatibility
// requirement in spec.md §4.2/§9.
func (s *Set) Tips() []chainhash.Hash {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]chainhash.Hash, 0, len(s.tips))
	for h := range s.tips {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Len returns the number of current tips.
func (s *Set) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.tips)
}
