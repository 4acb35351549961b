package breezygrpc

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/blockberries/breezy"
)

// CommitRequest is the (empty) request for Application.Commit.
type CommitRequest struct{}

// haltHeightKey is the trailer carrying the height of a HaltError.
const haltHeightKey = "breezy-halt-height"

// toStatus maps an application error onto a gRPC status. A HaltError
// becomes Aborted with its height in the trailer.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if h, ok := breezy.IsHalt(err); ok {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(haltHeightKey, strconv.FormatUint(h.Height, 10)))
		return status.Error(codes.Aborted, h.Reason)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus reverses toStatus on the client side.
func fromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return err
	}
	var height uint64
	if v := trailer.Get(haltHeightKey); len(v) > 0 {
		height, _ = strconv.ParseUint(v[0], 10, 64)
	}
	return breezy.NewHaltError(height, st.Message())
}
