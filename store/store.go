// Package store provides the authenticated, versioned key-value state
// behind a breezy application.
//
// Writes are buffered in memory and only reach the Merkle Patricia
// trie on Commit, which produces the new state root and advances the
// persisted chain state by one height. Reads observe the buffer first
// and fall back to the committed trie.
package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/sirupsen/logrus"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/types"
)

// EmptyRoot is the root hash of a trie with no entries.
var EmptyRoot = hex.EncodeToString(ethtypes.EmptyRootHash[:])

// op is a buffered mutation. A nil value with del set is a delete.
type op struct {
	del   bool
	value []byte
}

// Store is an authenticated key-value store with a write buffer.
//
// Store is not safe for concurrent use; the engine drives it from a
// single worker.
type Store struct {
	path    string
	cache   int
	handles int
	log     logrus.FieldLogger

	diskdb ethdb.Database
	triedb *triedb.Database
	trie   *trie.Trie
	root   common.Hash
	state  types.ChainState
	buffer map[string]op
	opened bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for commit and open events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithCache sets the LevelDB cache size in megabytes and the number
// of open file handles.
func WithCache(megabytes, handles int) Option {
	return func(s *Store) {
		s.cache = megabytes
		s.handles = handles
	}
}

// New creates a store backed by a LevelDB database at path. An empty
// path selects an in-memory database. The store must be opened before
// use.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:    path,
		cache:   16,
		handles: 16,
		log:     logrus.StandardLogger(),
		buffer:  make(map[string]op),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "store")
	return s
}

// NewMemory creates a store backed by an in-memory database.
func NewMemory(opts ...Option) *Store {
	return New("", opts...)
}

// Open loads the persisted chain state, initializing it on first run,
// and opens the trie at the persisted root. Open on an open store is a
// no-op.
func (s *Store) Open() error {
	if s.opened {
		return nil
	}

	var (
		db  ethdb.Database
		err error
	)
	if s.path == "" {
		db = rawdb.NewMemoryDatabase()
	} else {
		kv, err := leveldb.New(s.path, s.cache, s.handles, "breezy/store/", false)
		if err != nil {
			return fmt.Errorf("open store %s: %w", s.path, err)
		}
		db = rawdb.NewDatabase(kv)
	}

	state, found, err := readChainState(db)
	if err != nil {
		db.Close()
		return breezy.Halt(0, fmt.Errorf("open store: %w", err))
	}
	if !found {
		state = types.ChainState{Height: 0, AppHash: EmptyRoot}
		if err := writeChainState(db, state); err != nil {
			db.Close()
			return fmt.Errorf("open store: %w", err)
		}
	}

	root, err := parseRoot(state.AppHash)
	if err != nil {
		db.Close()
		return breezy.Halt(state.Height, fmt.Errorf("open store: %w", err))
	}

	tdb := triedb.NewDatabase(db, nil)
	tr, err := trie.New(trie.TrieID(root), tdb)
	if err != nil {
		tdb.Close()
		db.Close()
		return breezy.Halt(state.Height, fmt.Errorf("open trie at %s: %w", state.AppHash, err))
	}

	s.diskdb, s.triedb, s.trie = db, tdb, tr
	s.root, s.state = root, state
	s.opened = true

	s.log.WithFields(logrus.Fields{
		"height": state.Height,
		"root":   state.AppHash,
		"fresh":  !found,
	}).Info("store opened")
	return nil
}

// IsOpen reports whether Open has succeeded.
func (s *Store) IsOpen() bool { return s.opened }

// Set buffers a put. An empty value is buffered as a delete.
func (s *Store) Set(key, value []byte) error {
	if !s.opened {
		return breezy.ErrNotOpen
	}
	s.buffer[string(key)] = newOp(value)
	return nil
}

// Delete buffers a delete.
func (s *Store) Delete(key []byte) error {
	if !s.opened {
		return breezy.ErrNotOpen
	}
	s.buffer[string(key)] = op{del: true}
	return nil
}

// Get returns the value for key, or nil, nil if it does not exist.
// A buffered delete hides a committed value.
func (s *Store) Get(key []byte) ([]byte, error) {
	if !s.opened {
		return nil, breezy.ErrNotOpen
	}
	if o, ok := s.buffer[string(key)]; ok {
		return o.get(), nil
	}
	v, err := s.trie.Get(crypto.Keccak256(key))
	if err != nil {
		return nil, fmt.Errorf("trie get: %w", err)
	}
	return v, nil
}

// Commit applies every buffered operation to the trie as one batch,
// persists the new chain state and returns the new root.
//
// On error nothing observable changes: height, root, committed trie
// and buffer are left as they were.
func (s *Store) Commit() (string, error) {
	if !s.opened {
		return "", breezy.ErrNotOpen
	}

	working, err := trie.New(trie.TrieID(s.root), s.triedb)
	if err != nil {
		return "", fmt.Errorf("commit: open working trie: %w", err)
	}
	keys := make([]string, 0, len(s.buffer))
	for k := range s.buffer {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o := s.buffer[k]
		hk := crypto.Keccak256([]byte(k))
		if o.del {
			err = working.Delete(hk)
		} else {
			err = working.Update(hk, o.value)
		}
		if err != nil {
			return "", fmt.Errorf("commit: apply %q: %w", k, err)
		}
	}

	root, nodes := working.Commit(false)
	next := types.ChainState{
		Height:  s.state.Height + 1,
		AppHash: hex.EncodeToString(root[:]),
	}
	if nodes != nil {
		if err := s.triedb.Update(root, s.root, next.Height, trienode.NewWithNodeSet(nodes), nil); err != nil {
			return "", fmt.Errorf("commit: update trie db: %w", err)
		}
	}
	if err := s.triedb.Commit(root, false); err != nil {
		return "", fmt.Errorf("commit: flush trie nodes: %w", err)
	}
	if err := writeChainState(s.diskdb, next); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	committed, err := trie.New(trie.TrieID(root), s.triedb)
	if err != nil {
		return "", fmt.Errorf("commit: reopen trie: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"height": next.Height,
		"root":   next.AppHash,
		"ops":    len(keys),
	}).Debug("store committed")

	s.trie, s.root, s.state = committed, root, next
	s.buffer = make(map[string]op)
	return next.AppHash, nil
}

// RootHash returns the committed root. Buffered writes are not
// reflected.
func (s *Store) RootHash() string {
	if !s.opened {
		return EmptyRoot
	}
	return s.state.AppHash
}

// Height returns the number of commits since genesis.
func (s *Store) Height() uint64 { return s.state.Height }

// ChainState returns the last persisted chain state.
func (s *Store) ChainState() types.ChainState { return s.state }

// Pending returns the number of buffered operations.
func (s *Store) Pending() int { return len(s.buffer) }

// Close releases the backing databases. Buffered writes are dropped.
func (s *Store) Close() error {
	if !s.opened {
		return nil
	}
	s.opened = false
	s.buffer = make(map[string]op)
	return errors.Join(s.triedb.Close(), s.diskdb.Close())
}

func newOp(value []byte) op {
	if len(value) == 0 {
		return op{del: true}
	}
	return op{value: append([]byte(nil), value...)}
}

func (o op) get() []byte {
	if o.del {
		return nil
	}
	return append([]byte(nil), o.value...)
}

func parseRoot(appHash string) (common.Hash, error) {
	b, err := hex.DecodeString(appHash)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("corrupt chain state root %q", appHash)
	}
	return common.BytesToHash(b), nil
}
