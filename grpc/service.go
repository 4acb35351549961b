package breezygrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/breezy/types"
)

const serviceName = "breezy.v1.Application"

// ApplicationServer is the server-side interface for the breezy gRPC
// service.
type ApplicationServer interface {
	InitChain(context.Context, *types.InitChainRequest) (*types.InitChainResponse, error)
	Info(context.Context, *types.InfoRequest) (*types.InfoResponse, error)
	CheckTx(context.Context, *types.TxRequest) (*types.TxResult, error)
	DeliverTx(context.Context, *types.TxRequest) (*types.TxResult, error)
	Commit(context.Context, *CommitRequest) (*types.CommitResponse, error)
	Query(context.Context, *types.QueryRequest) (*types.QueryResult, error)
}

// RegisterApplicationServer registers srv on a gRPC server.
func RegisterApplicationServer(s grpc.ServiceRegistrar, srv ApplicationServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary builds a method handler that decodes a Req and calls fn,
// running the server's interceptor chain when one is installed.
func unary[Req any, Resp any](method string, fn func(ApplicationServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(ApplicationServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, r any) (any, error) {
			return fn(srv.(ApplicationServer), ctx, r.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ApplicationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InitChain", Handler: unary("InitChain", ApplicationServer.InitChain)},
		{MethodName: "Info", Handler: unary("Info", ApplicationServer.Info)},
		{MethodName: "CheckTx", Handler: unary("CheckTx", ApplicationServer.CheckTx)},
		{MethodName: "DeliverTx", Handler: unary("DeliverTx", ApplicationServer.DeliverTx)},
		{MethodName: "Commit", Handler: unary("Commit", ApplicationServer.Commit)},
		{MethodName: "Query", Handler: unary("Query", ApplicationServer.Query)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "breezy/v1/application.cram",
}
