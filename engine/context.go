package engine

import (
	"fmt"
	"time"

	"github.com/blockberries/breezy/codec"
	"github.com/blockberries/breezy/envelope"
	"github.com/blockberries/breezy/types"
)

// Reader is the read capability shared by every context.
type Reader interface {
	// Get returns the raw value for key, or nil if it does not exist.
	Get(key []byte) ([]byte, error)
	// GetValue decodes the value for key into v and reports whether
	// the key existed.
	GetValue(key []byte, v any) (bool, error)
}

// Writer adds mutation to Reader. Writes are buffered until commit and
// are visible to later reads through the same context.
type Writer interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// SetValue stores the canonical encoding of v under key.
	SetValue(key []byte, v any) error
}

// kv is the backing of a context: the store itself or a staged overlay.
type kv interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

type reader struct {
	kv kv
}

func (r reader) Get(key []byte) ([]byte, error) {
	return r.kv.Get(key)
}

func (r reader) GetValue(key []byte, v any) (bool, error) {
	raw, err := r.kv.Get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := codec.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode value at %q: %w", key, err)
	}
	return true, nil
}

type writer struct {
	reader
}

func (w writer) Set(key, value []byte) error {
	return w.kv.Set(key, value)
}

func (w writer) Delete(key []byte) error {
	return w.kv.Delete(key)
}

func (w writer) SetValue(key []byte, v any) error {
	raw, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value at %q: %w", key, err)
	}
	return w.kv.Set(key, raw)
}

// TxContext is the write context handed to admission and route
// handlers. It is bound to one decoded envelope.
type TxContext struct {
	writer
	env    *envelope.Envelope
	height uint64
	events []types.Event
}

var _ Writer = (*TxContext)(nil)

// Envelope returns the envelope being processed. Handlers must not
// modify it.
func (tc *TxContext) Envelope() *envelope.Envelope { return tc.env }

// Height returns the last committed height.
func (tc *TxContext) Height() uint64 { return tc.height }

// Emit appends an event to the transaction result.
func (tc *TxContext) Emit(e types.Event) { tc.events = append(tc.events, e) }

// GenesisContext is the write context handed to the genesis handler.
// It writes straight into the store buffer.
type GenesisContext struct {
	writer
	req types.InitChainRequest
}

var _ Writer = (*GenesisContext)(nil)

// ChainID returns the chain identifier from InitChain.
func (gc *GenesisContext) ChainID() string { return gc.req.ChainID }

// AppState returns the raw genesis application state.
func (gc *GenesisContext) AppState() []byte { return gc.req.AppState }

// GenesisTime returns the chain start time set by the runtime.
func (gc *GenesisContext) GenesisTime() time.Time { return gc.req.Time.ToTime() }

// QueryContext is the read-only context handed to query handlers.
//
// Reads go through the block buffer, so a query issued between
// DeliverTx and Commit sees the block's pending writes. Height still
// reports the last committed height.
type QueryContext struct {
	reader
	height uint64
}

var _ Reader = (*QueryContext)(nil)

// Height returns the last committed height. Pending writes of the
// current block are visible but not reflected here.
func (qc *QueryContext) Height() uint64 { return qc.height }
