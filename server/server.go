package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/types"
)

// ErrHalted is returned for every callback after a failed commit.
var ErrHalted = errors.New("breezy: application halted")

// Server wraps a breezy application with lifecycle enforcement. It
// serializes all callbacks so an application that is not safe for
// concurrent use, such as engine.Engine, can be driven by several
// goroutines.
type Server struct {
	app   breezy.Application
	guard *LifecycleGuard
	log   logrus.FieldLogger

	mu         sync.Mutex
	halt       error
	lastCommit *types.CommitResponse
}

var _ breezy.Connection = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// New creates a new Server wrapping the given application.
func New(app breezy.Application, opts ...Option) *Server {
	s := &Server{
		app:   app,
		guard: NewLifecycleGuard(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "server")
	return s
}

// InitChain runs genesis and transitions to Ready.
func (s *Server) InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.halted(); err != nil {
		return types.InitChainResponse{}, err
	}
	s.guard.AcquireInitChain()

	resp, err := s.app.InitChain(ctx, req)
	if err != nil {
		return resp, err
	}
	s.guard.CompleteInitChain()
	return resp, nil
}

// Info reports committed state. The first successful Info makes the
// application Ready without genesis, as on restart.
func (s *Server) Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.halted(); err != nil {
		return types.InfoResponse{}, err
	}

	resp, err := s.app.Info(ctx, req)
	if err != nil {
		return resp, err
	}
	s.guard.CompleteInfo()
	return resp, nil
}

// CheckTx gate-checks a transaction for mempool admission.
func (s *Server) CheckTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.halted(); err != nil {
		return types.TxResult{}, err
	}
	s.guard.CheckReady()
	return s.app.CheckTx(ctx, req)
}

// DeliverTx applies a finalized transaction.
func (s *Server) DeliverTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.halted(); err != nil {
		return types.TxResult{}, err
	}
	s.guard.AcquireDeliver()
	return s.app.DeliverTx(ctx, req)
}

// Commit flushes the block. Any error halts the server.
func (s *Server) Commit(ctx context.Context) (types.CommitResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.halted(); err != nil {
		return types.CommitResponse{}, err
	}
	s.guard.AcquireCommit()

	resp, err := s.app.Commit(ctx)
	if err != nil {
		s.guard.FailCommit()
		s.halt = err
		s.log.WithError(err).Error("commit failed, halting")
		return resp, err
	}
	s.lastCommit = &resp
	s.guard.CompleteCommit()
	return resp, nil
}

// Query reads application state.
func (s *Server) Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.halted(); err != nil {
		return types.QueryResult{}, err
	}
	s.guard.CheckReady()
	return s.app.Query(ctx, req)
}

// LastCommit returns the most recent successful commit response, or
// nil before the first commit.
func (s *Server) LastCommit() *types.CommitResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommit
}

// State returns the lifecycle state name.
func (s *Server) State() string {
	return s.guard.State()
}

// Close is a no-op for the server wrapper.
func (s *Server) Close() error { return nil }

func (s *Server) halted() error {
	if s.halt == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrHalted, s.halt)
}

// App returns the wrapped application.
func (s *Server) App() breezy.Application {
	return s.app
}
