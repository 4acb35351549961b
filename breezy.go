// Package breezy defines the callback contract between an external
// consensus runtime and a deterministic ledger application.
//
// The runtime drives an [Application] through a fixed lifecycle:
// InitChain (or Info on restart), then a repeating cycle of CheckTx,
// DeliverTx and Commit. Query may be called at any time once the
// application is ready and never advances state.
//
// The engine package provides the standard implementation: a route
// registry dispatching signed envelopes to handlers over an
// authenticated key-value store.
package breezy

import (
	"context"

	"github.com/blockberries/breezy/types"
)

// Application is the callback contract every breezy application
// implements.
//
// The runtime guarantees the following call order:
//  1. Info is called on every startup; InitChain only on a fresh chain.
//  2. CheckTx and DeliverTx are called between two Commits.
//  3. Commit is called exactly once per block.
//  4. No two callbacks are issued concurrently to the same instance.
type Application interface {
	// InitChain is called once at genesis. The application opens its
	// store and loads genesis state into the write buffer.
	InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error)

	// Info reports the last committed height and app hash so the
	// runtime can detect replay or resync needs after a restart.
	Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error)

	// CheckTx gate-checks a transaction before it enters the mempool.
	//
	// Failures are reported in the result code, never as an error.
	CheckTx(ctx context.Context, req types.TxRequest) (types.TxResult, error)

	// DeliverTx applies a finalized, ordered transaction. State changes
	// are buffered until Commit.
	//
	// Failures are reported in the result code, never as an error.
	DeliverTx(ctx context.Context, req types.TxRequest) (types.TxResult, error)

	// Commit flushes buffered changes into the authenticated store and
	// returns the new state root. An error here is fatal: the height and
	// app hash must not have advanced.
	Commit(ctx context.Context) (types.CommitResponse, error)

	// Query answers an exact-key lookup against application state.
	Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error)
}

// Connection represents a transport-agnostic connection to a breezy
// application. Both gRPC clients and in-process adapters implement this.
type Connection interface {
	Application

	// Close terminates the connection.
	Close() error
}
