// Package counter implements a minimal breezy application that
// counts transactions.
//
// Genesis stores {val: 1} under "count". Every envelope on the "one"
// route increments it; envelopes on "add" add their "value" field.
// The "getcount" query returns the value stored at the queried key.
package counter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/engine"
	"github.com/blockberries/breezy/envelope"
	"github.com/blockberries/breezy/store"
	"github.com/blockberries/breezy/types"
)

// Routes, types and query paths served by the counter.
const (
	RouteOne   = "one"
	RouteAdd   = "add"
	TypeEx     = "ex"
	QueryCount = "getcount"
	CountKey   = "count"
)

// Count is the stored counter record.
type Count struct {
	Val uint64 `cbor:"val"`
}

// AddMsg is the payload of an "add" envelope.
type AddMsg struct {
	Value uint64 `cbor:"value"`
}

// Register installs the counter handlers on reg.
func Register(reg *engine.Registry) {
	reg.OnInitChain(genesis)
	reg.OnTx(RouteOne, increment)
	reg.OnTx(RouteAdd, add)
	reg.OnQuery(QueryCount, queryCount)
}

// New creates a counter engine over st.
func New(st *store.Store, opts ...engine.Option) *engine.Engine {
	reg := engine.NewRegistry()
	Register(reg)
	return engine.New(st, reg, opts...)
}

func genesis(_ context.Context, gc *engine.GenesisContext) error {
	return gc.SetValue([]byte(CountKey), Count{Val: 1})
}

func increment(_ context.Context, tc *engine.TxContext) (types.TxResult, error) {
	return bump(tc, 1)
}

func add(_ context.Context, tc *engine.TxContext) (types.TxResult, error) {
	var msg AddMsg
	if err := tc.Envelope().Bind(&msg); err != nil {
		return types.TxResult{}, err
	}
	return bump(tc, msg.Value)
}

func bump(tc *engine.TxContext, by uint64) (types.TxResult, error) {
	var c Count
	ok, err := tc.GetValue([]byte(CountKey), &c)
	if err != nil {
		return types.TxResult{}, err
	}
	if !ok {
		return types.TxResult{}, fmt.Errorf("%w: counter not initialized", breezy.ErrInsufficientState)
	}
	c.Val += by
	if err := tc.SetValue([]byte(CountKey), c); err != nil {
		return types.TxResult{}, err
	}
	tc.Emit(types.NewEvent("increment",
		"by", strconv.FormatUint(by, 10),
		"total", strconv.FormatUint(c.Val, 10),
	))
	return types.TxResult{Code: types.CodeOK}, nil
}

func queryCount(_ context.Context, qc *engine.QueryContext, key any) (any, error) {
	k, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("count key must be a string, got %T", key)
	}
	var c Count
	found, err := qc.GetValue([]byte(k), &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, breezy.ErrNotFound
	}
	return c.Val, nil
}

// IncrementTx builds an encoded "one" envelope signed by kp.
func IncrementTx(kp envelope.KeyPair) (types.Tx, error) {
	return signed(kp, envelope.New(RouteOne, TypeEx, nil))
}

// AddTx builds an encoded "add" envelope signed by kp.
func AddTx(kp envelope.KeyPair, n uint64) (types.Tx, error) {
	data, err := envelope.PayloadOf(AddMsg{Value: n})
	if err != nil {
		return nil, err
	}
	return signed(kp, envelope.New(RouteAdd, TypeEx, data))
}

func signed(kp envelope.KeyPair, env *envelope.Envelope) (types.Tx, error) {
	if err := env.Sign(kp.PrivateKey); err != nil {
		return nil, err
	}
	return env.Encode()
}
