// Package local provides an in-process breezy connection.
//
// For applications compiled into the same binary as the runtime, this
// adapter wraps the application with lifecycle enforcement and callback
// serialization, with no serialization overhead.
package local

import (
	"context"
	"io"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/server"
	"github.com/blockberries/breezy/types"
)

// Compile-time interface check.
var _ breezy.Connection = (*Connection)(nil)

// Connection wraps a local application with lifecycle enforcement.
type Connection struct {
	srv     *server.Server
	closers []io.Closer
}

// Option configures a Connection.
type Option func(*Connection)

// WithServerOptions passes options to the wrapped server.Server.
func WithServerOptions(opts ...server.Option) Option {
	return func(c *Connection) {
		c.srv = server.New(c.srv.App(), opts...)
	}
}

// WithCloser registers a resource, typically the application store, to
// be closed by Close.
func WithCloser(cl io.Closer) Option {
	return func(c *Connection) { c.closers = append(c.closers, cl) }
}

// NewConnection creates an in-process connection wrapping the given
// application.
func NewConnection(app breezy.Application, opts ...Option) *Connection {
	c := &Connection{srv: server.New(app)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connection) InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	return c.srv.InitChain(ctx, req)
}

func (c *Connection) Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error) {
	return c.srv.Info(ctx, req)
}

func (c *Connection) CheckTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	return c.srv.CheckTx(ctx, req)
}

func (c *Connection) DeliverTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	return c.srv.DeliverTx(ctx, req)
}

func (c *Connection) Commit(ctx context.Context) (types.CommitResponse, error) {
	return c.srv.Commit(ctx)
}

func (c *Connection) Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error) {
	return c.srv.Query(ctx, req)
}

// Close closes every resource registered with WithCloser, in reverse
// order, and returns the first error.
func (c *Connection) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

// Server returns the underlying server for advanced use cases.
func (c *Connection) Server() *server.Server {
	return c.srv
}
