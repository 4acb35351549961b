package store

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/blockberries/breezy/types"
)

// chainStateKey holds the cramberry-encoded ChainState. Trie nodes
// are keyed by 32-byte hashes, so the key cannot collide with them.
var chainStateKey = []byte("__breezy_chain_state__")

func readChainState(db ethdb.KeyValueReader) (types.ChainState, bool, error) {
	ok, err := db.Has(chainStateKey)
	if err != nil {
		return types.ChainState{}, false, fmt.Errorf("read chain state: %w", err)
	}
	if !ok {
		return types.ChainState{}, false, nil
	}
	raw, err := db.Get(chainStateKey)
	if err != nil {
		return types.ChainState{}, false, fmt.Errorf("read chain state: %w", err)
	}
	var cs types.ChainState
	if err := cramberry.Unmarshal(raw, &cs); err != nil {
		return types.ChainState{}, false, fmt.Errorf("decode chain state: %w", err)
	}
	return cs, true, nil
}

func writeChainState(db ethdb.KeyValueWriter, cs types.ChainState) error {
	raw, err := cramberry.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode chain state: %w", err)
	}
	if err := db.Put(chainStateKey, raw); err != nil {
		return fmt.Errorf("write chain state: %w", err)
	}
	return nil
}
