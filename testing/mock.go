// Package breezytest provides test utilities for breezy application
// development, including a configurable mock, a test harness and a
// lifecycle compliance suite.
package breezytest

import (
	"context"
	"encoding/hex"
	"sync/atomic"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/types"
)

// Compile-time check that MockApp satisfies the callback contract.
var _ breezy.Application = (*MockApp)(nil)

// MockApp is a configurable mock application for runtime and transport
// testing. All methods are configurable via function fields.
// Unconfigured methods accept every transaction, answer every query
// with "not found" and count commits as heights.
type MockApp struct {
	// Configurable handlers. If nil, defaults are used.
	InitChainFn func(context.Context, types.InitChainRequest) (types.InitChainResponse, error)
	InfoFn      func(context.Context, types.InfoRequest) (types.InfoResponse, error)
	CheckTxFn   func(context.Context, types.TxRequest) (types.TxResult, error)
	DeliverTxFn func(context.Context, types.TxRequest) (types.TxResult, error)
	CommitFn    func(context.Context) (types.CommitResponse, error)
	QueryFn     func(context.Context, types.QueryRequest) (types.QueryResult, error)

	// Call counters (atomic for concurrent access).
	InitChainCalls atomic.Int64
	InfoCalls      atomic.Int64
	CheckTxCalls   atomic.Int64
	DeliverTxCalls atomic.Int64
	CommitCalls    atomic.Int64
	QueryCalls     atomic.Int64

	height atomic.Uint64
}

// MockRoot is the root reported by the default Commit.
var MockRoot = hex.EncodeToString(make([]byte, 32))

func (m *MockApp) InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	m.InitChainCalls.Add(1)
	if m.InitChainFn != nil {
		return m.InitChainFn(ctx, req)
	}
	return types.InitChainResponse{}, nil
}

func (m *MockApp) Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error) {
	m.InfoCalls.Add(1)
	if m.InfoFn != nil {
		return m.InfoFn(ctx, req)
	}
	return types.InfoResponse{
		LastBlockHeight:  m.height.Load(),
		LastBlockAppHash: MockRoot,
		Version:          "mock",
	}, nil
}

func (m *MockApp) CheckTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	m.CheckTxCalls.Add(1)
	if m.CheckTxFn != nil {
		return m.CheckTxFn(ctx, req)
	}
	return types.TxResult{Code: types.CodeOK}, nil
}

func (m *MockApp) DeliverTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	m.DeliverTxCalls.Add(1)
	if m.DeliverTxFn != nil {
		return m.DeliverTxFn(ctx, req)
	}
	return types.TxResult{Code: types.CodeOK}, nil
}

func (m *MockApp) Commit(ctx context.Context) (types.CommitResponse, error) {
	m.CommitCalls.Add(1)
	if m.CommitFn != nil {
		return m.CommitFn(ctx)
	}
	m.height.Add(1)
	return types.CommitResponse{Data: MockRoot}, nil
}

func (m *MockApp) Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error) {
	m.QueryCalls.Add(1)
	if m.QueryFn != nil {
		return m.QueryFn(ctx, req)
	}
	return types.QueryResult{Code: types.CodeErr, Log: "not found", Height: m.height.Load()}, nil
}
