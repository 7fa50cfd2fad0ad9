// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package slptoken

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Store is the durable key-value token database underneath the cache,
// backed by goleveldb the way database/ffldb backs the main chain
// database in the pack.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (creating if necessary) a token store at path.
func OpenStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get fetches the token stored for outpoint. It returns (nil, nil) on a
// miss.
func (s *Store) Get(outpoint wire.OutPoint) (*Token, error) {
	data, err := s.db.Get(TokenKey(outpoint), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tok, err := DeserializeToken(data)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// BestBlock returns the stored best-block hash, or the zero hash if none
// has been recorded yet.
func (s *Store) BestBlock() (chainhash.Hash, error) {
	var hash chainhash.Hash
	data, err := s.db.Get(BestBlockKey(), nil)
	if err == leveldb.ErrNotFound {
		return hash, nil
	}
	if err != nil {
		return hash, err
	}
	copy(hash[:], data)
	return hash, nil
}

// WriteBatch applies a batch of puts/deletes atomically, matching the
// batched flush from spec.md §4.8.
func (s *Store) WriteBatch(batch *leveldb.Batch) error {
	return s.db.Write(batch, nil)
}
