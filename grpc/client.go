package breezygrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/server"
	"github.com/blockberries/breezy/types"
)

// Compile-time interface check.
var _ breezy.Connection = (*Client)(nil)

// Client implements breezy.Connection for a remote application over
// gRPC using cramberry serialization.
//
// The client keeps its own lifecycle guard so ordering mistakes fail
// in the caller's process before anything goes on the wire.
type Client struct {
	cc    *grpc.ClientConn
	guard *server.LifecycleGuard
}

// Dial creates a client for the application at addr. The connection is
// established lazily on the first call.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("breezy client: dial %s: %w", addr, err)
	}
	return &Client{
		cc:    cc,
		guard: server.NewLifecycleGuard(),
	}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// invoke calls method and restores HaltError from the status trailer.
func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	var trailer metadata.MD
	err := c.cc.Invoke(ctx, fullMethod(method), req, resp, grpc.Trailer(&trailer))
	return fromStatus(err, trailer)
}

func (c *Client) InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	c.guard.AcquireInitChain()

	resp := new(types.InitChainResponse)
	if err := c.invoke(ctx, "InitChain", &req, resp); err != nil {
		return types.InitChainResponse{}, err
	}
	c.guard.CompleteInitChain()
	return *resp, nil
}

func (c *Client) Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error) {
	resp := new(types.InfoResponse)
	if err := c.invoke(ctx, "Info", &req, resp); err != nil {
		return types.InfoResponse{}, err
	}
	c.guard.CompleteInfo()
	return *resp, nil
}

func (c *Client) CheckTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	c.guard.CheckReady()

	resp := new(types.TxResult)
	if err := c.invoke(ctx, "CheckTx", &req, resp); err != nil {
		return types.TxResult{}, err
	}
	return *resp, nil
}

func (c *Client) DeliverTx(ctx context.Context, req types.TxRequest) (types.TxResult, error) {
	c.guard.AcquireDeliver()

	resp := new(types.TxResult)
	if err := c.invoke(ctx, "DeliverTx", &req, resp); err != nil {
		return types.TxResult{}, err
	}
	return *resp, nil
}

func (c *Client) Commit(ctx context.Context) (types.CommitResponse, error) {
	c.guard.AcquireCommit()

	resp := new(types.CommitResponse)
	if err := c.invoke(ctx, "Commit", &CommitRequest{}, resp); err != nil {
		if _, ok := breezy.IsHalt(err); ok {
			c.guard.FailCommit()
		} else {
			c.guard.CompleteCommit()
		}
		return types.CommitResponse{}, err
	}
	c.guard.CompleteCommit()
	return *resp, nil
}

func (c *Client) Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error) {
	c.guard.CheckReady()

	resp := new(types.QueryResult)
	if err := c.invoke(ctx, "Query", &req, resp); err != nil {
		return types.QueryResult{}, err
	}
	return *resp, nil
}

// State returns the client-side lifecycle state name.
func (c *Client) State() string {
	return c.guard.State()
}
