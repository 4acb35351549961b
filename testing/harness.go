package breezytest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/codec"
	"github.com/blockberries/breezy/engine"
	"github.com/blockberries/breezy/envelope"
	"github.com/blockberries/breezy/server"
	"github.com/blockberries/breezy/store"
	"github.com/blockberries/breezy/types"
)

// Block records one committed block driven through the harness.
type Block struct {
	Height  uint64
	Root    string
	Txs     []types.Tx
	Results []types.TxResult
}

// Harness drives an application through the lifecycle guard and fails
// the test on any transport-level error.
type Harness struct {
	t      *testing.T
	srv    *server.Server
	height uint64
	blocks []Block
}

// NewHarness creates a test harness wrapping the given application.
func NewHarness(t *testing.T, app breezy.Application) *Harness {
	t.Helper()
	return &Harness{t: t, srv: server.New(app, server.WithLogger(QuietLogger()))}
}

// NewEngine builds an engine over an in-memory store and lets register
// install handlers. The store is closed when the test ends.
func NewEngine(t *testing.T, register func(*engine.Registry), opts ...engine.Option) *engine.Engine {
	t.Helper()
	st := store.NewMemory(store.WithLogger(QuietLogger()))
	t.Cleanup(func() { st.Close() })

	reg := engine.NewRegistry()
	if register != nil {
		register(reg)
	}
	opts = append([]engine.Option{engine.WithLogger(QuietLogger())}, opts...)
	return engine.New(st, reg, opts...)
}

// NewEngineHarness wraps NewEngine in a harness.
func NewEngineHarness(t *testing.T, register func(*engine.Registry), opts ...engine.Option) (*Harness, *engine.Engine) {
	t.Helper()
	e := NewEngine(t, register, opts...)
	return NewHarness(t, e), e
}

// QuietLogger returns a logger that discards output.
func QuietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Server returns the underlying server for direct access.
func (h *Harness) Server() *server.Server {
	return h.srv
}

// InitChain runs genesis with the given request.
func (h *Harness) InitChain(req types.InitChainRequest) {
	h.t.Helper()
	if _, err := h.srv.InitChain(context.Background(), req); err != nil {
		h.t.Fatalf("InitChain failed: %v", err)
	}
}

// Genesis runs genesis with DefaultInitChain.
func (h *Harness) Genesis() {
	h.t.Helper()
	h.InitChain(DefaultInitChain())
}

// Info returns the committed chain state.
func (h *Harness) Info() types.InfoResponse {
	h.t.Helper()
	resp, err := h.srv.Info(context.Background(), types.InfoRequest{Version: "test"})
	if err != nil {
		h.t.Fatalf("Info failed: %v", err)
	}
	h.height = resp.LastBlockHeight
	return resp
}

// CheckTx submits a transaction for admission checking.
func (h *Harness) CheckTx(tx types.Tx) types.TxResult {
	h.t.Helper()
	res, err := h.srv.CheckTx(context.Background(), types.TxRequest{Tx: tx})
	if err != nil {
		h.t.Fatalf("CheckTx failed: %v", err)
	}
	return res
}

// DeliverTx applies a transaction without committing.
func (h *Harness) DeliverTx(tx types.Tx) types.TxResult {
	h.t.Helper()
	res, err := h.srv.DeliverTx(context.Background(), types.TxRequest{Tx: tx})
	if err != nil {
		h.t.Fatalf("DeliverTx failed: %v", err)
	}
	return res
}

// Commit commits the current block.
func (h *Harness) Commit() types.CommitResponse {
	h.t.Helper()
	resp, err := h.srv.Commit(context.Background())
	if err != nil {
		h.t.Fatalf("Commit failed: %v", err)
	}
	h.height++
	return resp
}

// DeliverAndCommit delivers txs in order and commits them as one
// block.
func (h *Harness) DeliverAndCommit(txs ...types.Tx) Block {
	h.t.Helper()
	b := Block{Txs: txs, Results: make([]types.TxResult, len(txs))}
	for i, tx := range txs {
		b.Results[i] = h.DeliverTx(tx)
	}
	b.Root = h.Commit().Data
	b.Height = h.height
	h.blocks = append(h.blocks, b)
	return b
}

// RunTx delivers a signed envelope in a block of its own, the way a
// single-node simulator would, and returns its result.
func (h *Harness) RunTx(env *envelope.Envelope) types.TxResult {
	h.t.Helper()
	tx, err := env.Encode()
	if err != nil {
		h.t.Fatalf("encode envelope: %v", err)
	}
	return h.DeliverAndCommit(tx).Results[0]
}

// Blocks returns the blocks committed through DeliverAndCommit and
// RunTx, oldest first.
func (h *Harness) Blocks() []Block {
	return h.blocks
}

// Query runs a query. A nil key sends empty data.
func (h *Harness) Query(path string, key any) types.QueryResult {
	h.t.Helper()
	var data []byte
	if key != nil {
		var err error
		if data, err = codec.Marshal(key); err != nil {
			h.t.Fatalf("encode query key: %v", err)
		}
	}
	res, err := h.srv.Query(context.Background(), types.QueryRequest{Path: path, Data: data})
	if err != nil {
		h.t.Fatalf("Query failed: %v", err)
	}
	return res
}

// QueryValue runs a query that must succeed and decodes its value
// into v.
func (h *Harness) QueryValue(path string, key any, v any) types.QueryResult {
	h.t.Helper()
	res := h.Query(path, key)
	if !res.OK() {
		h.t.Fatalf("query %s failed: code=%d log=%q", path, res.Code, res.Log)
	}
	if err := codec.Unmarshal(res.Value, v); err != nil {
		h.t.Fatalf("decode query value: %v", err)
	}
	return res
}

// MustAcceptTx asserts that a transaction passes admission.
func (h *Harness) MustAcceptTx(tx types.Tx) {
	h.t.Helper()
	res := h.CheckTx(tx)
	if !res.OK() {
		h.t.Fatalf("expected tx accepted, got code=%d log=%q", res.Code, res.Log)
	}
}

// MustRejectTx asserts that a transaction fails admission and returns
// the result for further checks.
func (h *Harness) MustRejectTx(tx types.Tx) types.TxResult {
	h.t.Helper()
	res := h.CheckTx(tx)
	if res.OK() {
		h.t.Fatal("expected tx rejected, got accepted")
	}
	return res
}

// --- Helper Factories ---

// DefaultInitChain returns a minimal InitChain request suitable for
// testing.
func DefaultInitChain() types.InitChainRequest {
	return types.InitChainRequest{
		ChainID: "test-chain",
		Time:    types.TimeToTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

// SignTx signs env with kp and returns the encoded transaction.
func SignTx(t *testing.T, kp envelope.KeyPair, env *envelope.Envelope) types.Tx {
	t.Helper()
	if err := env.Sign(kp.PrivateKey); err != nil {
		t.Fatalf("sign envelope: %v", err)
	}
	return env.MustEncode()
}

// MustKey derives a deterministic key pair from a hex seed.
func MustKey(t *testing.T, seedHex string) envelope.KeyPair {
	t.Helper()
	kp, err := envelope.KeyFromSeedHex(seedHex)
	if err != nil {
		t.Fatalf("key from seed: %v", err)
	}
	return kp
}
