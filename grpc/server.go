package breezygrpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/server"
	"github.com/blockberries/breezy/types"
)

// Compile-time interface check.
var _ ApplicationServer = (*GRPCServer)(nil)

// GRPCServer exposes a breezy application as a gRPC service. Every call
// goes through server.Server, so callbacks are serialized and the
// lifecycle is enforced on the application side.
type GRPCServer struct {
	srv *server.Server
	log logrus.FieldLogger

	mu sync.Mutex
	gs *grpc.Server
}

// ServerOption configures a GRPCServer.
type ServerOption func(*GRPCServer)

// WithServerLogger sets the logger for the transport and the wrapped
// server.Server.
func WithServerLogger(l logrus.FieldLogger) ServerOption {
	return func(s *GRPCServer) { s.log = l }
}

// NewGRPCServer creates a gRPC server wrapping the given application.
func NewGRPCServer(app breezy.Application, opts ...ServerOption) *GRPCServer {
	s := &GRPCServer{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = server.New(app, server.WithLogger(s.log))
	s.log = s.log.WithField("component", "grpc")
	return s
}

// Register adds the breezy service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterApplicationServer(gs, s)
}

// Serve starts a gRPC server on the given listener. It blocks until
// the listener fails or Stop is called.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryLogger(s.log))}, opts...)
	gs := grpc.NewServer(opts...)
	s.Register(gs)

	s.mu.Lock()
	s.gs = gs
	s.mu.Unlock()

	s.log.WithField("addr", lis.Addr().String()).Info("serving application")
	return gs.Serve(lis)
}

// Stop gracefully stops a server started with Serve.
func (s *GRPCServer) Stop() {
	s.mu.Lock()
	gs := s.gs
	s.mu.Unlock()
	if gs != nil {
		gs.GracefulStop()
	}
}

// Server returns the underlying server for advanced use.
func (s *GRPCServer) Server() *server.Server {
	return s.srv
}

// UnaryLogger logs each call at debug level and failures at warn.
func UnaryLogger(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := log.WithFields(logrus.Fields{
			"method":  info.FullMethod,
			"elapsed": time.Since(start),
		})
		if err != nil {
			entry.WithField("code", status.Code(err)).WithError(err).Warn("call failed")
		} else {
			entry.Debug("call")
		}
		return resp, err
	}
}

func (s *GRPCServer) InitChain(ctx context.Context, req *types.InitChainRequest) (*types.InitChainResponse, error) {
	resp, err := s.srv.InitChain(ctx, *req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &resp, nil
}

func (s *GRPCServer) Info(ctx context.Context, req *types.InfoRequest) (*types.InfoResponse, error) {
	resp, err := s.srv.Info(ctx, *req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &resp, nil
}

func (s *GRPCServer) CheckTx(ctx context.Context, req *types.TxRequest) (*types.TxResult, error) {
	res, err := s.srv.CheckTx(ctx, *req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &res, nil
}

func (s *GRPCServer) DeliverTx(ctx context.Context, req *types.TxRequest) (*types.TxResult, error) {
	res, err := s.srv.DeliverTx(ctx, *req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &res, nil
}

func (s *GRPCServer) Commit(ctx context.Context, _ *CommitRequest) (*types.CommitResponse, error) {
	resp, err := s.srv.Commit(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &resp, nil
}

func (s *GRPCServer) Query(ctx context.Context, req *types.QueryRequest) (*types.QueryResult, error) {
	res, err := s.srv.Query(ctx, *req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &res, nil
}
