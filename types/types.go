// Package types defines the request, response and record types
// exchanged across the breezy callback contract.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration) are handled in the transport packages.
package types

// Result codes carried by TxResult and QueryResult.
const (
	CodeOK  uint32 = 0
	CodeErr uint32 = 1
)

// Tx is an opaque encoded transaction envelope.
// The consensus runtime never inspects its contents.
type Tx []byte

// ChainState is the persisted record of the last commit.
// Height counts commits since genesis; AppHash is the hex-encoded
// trie root after that commit.
type ChainState struct {
	Height  uint64 `cramberry:"1"`
	AppHash string `cramberry:"2"`
}
