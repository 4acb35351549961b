// Package breezygrpc serves and consumes the breezy callbacks over
// gRPC. Messages are the structs in breezy/types encoded with
// cramberry; there is no protobuf schema.
package breezygrpc

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

// CramberryCodec is the gRPC wire codec for every breezy message.
// Clients force it per call; servers pick it up from the registry by
// the content-subtype "cramberry".
type CramberryCodec struct{}

// Name implements encoding.Codec.
func (CramberryCodec) Name() string { return "cramberry" }

// Marshal implements encoding.Codec.
func (CramberryCodec) Marshal(msg any) ([]byte, error) {
	out, err := cramberry.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("breezygrpc: encode %T: %w", msg, err)
	}
	return out, nil
}

// Unmarshal implements encoding.Codec.
func (CramberryCodec) Unmarshal(in []byte, msg any) error {
	if err := cramberry.Unmarshal(in, msg); err != nil {
		return fmt.Errorf("breezygrpc: decode %T: %w", msg, err)
	}
	return nil
}

func init() { encoding.RegisterCodec(CramberryCodec{}) }
