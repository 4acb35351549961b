package types

import "time"

// Timestamp is a point in time as Unix seconds plus nanoseconds.
type Timestamp struct {
	Seconds int64 `cramberry:"1"`
	Nanos   int32 `cramberry:"2"`
}

// TimeToTimestamp converts t, dropping its location.
func TimeToTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// ToTime returns ts in UTC.
func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// InitChainRequest is sent once by the runtime at genesis.
type InitChainRequest struct {
	ChainID string    `cramberry:"1"`
	Time    Timestamp `cramberry:"2"`
	// Application-specific genesis state (opaque to the engine).
	AppState []byte `cramberry:"3"`
}

// InitChainResponse is the (empty) acknowledgment of InitChain.
type InitChainResponse struct{}

// InfoRequest is sent by the runtime on startup.
type InfoRequest struct {
	// Version of the runtime issuing the request.
	Version string `cramberry:"1"`
}

// InfoResponse reports the application's last committed state.
type InfoResponse struct {
	LastBlockHeight  uint64 `cramberry:"1"`
	LastBlockAppHash string `cramberry:"2"`
	Version          string `cramberry:"3"`
	Data             string `cramberry:"4"`
}

// TxRequest carries one encoded envelope for CheckTx or DeliverTx.
type TxRequest struct {
	Tx Tx `cramberry:"1"`
}

// TxResult is the outcome of checking or delivering a transaction.
type TxResult struct {
	// 0 = success. Non-zero = failure.
	Code uint32 `cramberry:"1"`
	// Human-readable result info (non-deterministic, for debugging).
	Log string `cramberry:"2"`
	// Handler-defined data returned from execution.
	Data []byte `cramberry:"3"`
	// Events emitted by the handler.
	Events []Event `cramberry:"4"`
}

// OK returns true if the transaction was accepted or applied.
func (r TxResult) OK() bool { return r.Code == CodeOK }

// CommitResponse carries the new state root after a commit.
type CommitResponse struct {
	// Hex-encoded trie root.
	Data string `cramberry:"1"`
}

// QueryRequest is an exact-key lookup routed by Path.
type QueryRequest struct {
	Path string `cramberry:"1"`
	// Encoded query key (same encoding as envelope payloads).
	Data []byte `cramberry:"2"`
}

// QueryResult is the application's response to a query.
type QueryResult struct {
	Code   uint32 `cramberry:"1"`
	Log    string `cramberry:"2"`
	Key    []byte `cramberry:"3"`
	Value  []byte `cramberry:"4"`
	Height uint64 `cramberry:"5"`
}

// OK returns true if the query found a value.
func (r QueryResult) OK() bool { return r.Code == CodeOK }
