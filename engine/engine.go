// Package engine implements breezy.Application over an authenticated
// store and a registry of route handlers.
//
// Every callback builds a fresh context. CheckTx and DeliverTx run
// their handler against a staged overlay of the store buffer: CheckTx
// always discards it, DeliverTx merges it only when the handler
// succeeds. Handler errors and panics never cross the callback
// boundary; they are reported as code 1.
package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/codec"
	"github.com/blockberries/breezy/envelope"
	"github.com/blockberries/breezy/store"
	"github.com/blockberries/breezy/types"
)

// Log messages returned for lookups that miss.
const (
	logNotFound        = "not found"
	logHandlerNotFound = "Handler not found for %s"
)

// Callback kinds reported to Metrics.
const (
	KindCheckTx   = "check_tx"
	KindDeliverTx = "deliver_tx"
	KindQuery     = "query"
)

// Metrics receives engine telemetry. metrics.Collector implements it.
type Metrics interface {
	Callback(kind string, code uint32)
	Commit(d time.Duration, height uint64, ops int, err error)
}

type nopMetrics struct{}

func (nopMetrics) Callback(string, uint32) {}
func (nopMetrics) Commit(time.Duration, uint64, int, error) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithVersion sets the version and data strings reported by Info.
func WithVersion(version, data string) Option {
	return func(e *Engine) {
		e.version = version
		e.data = data
	}
}

// Engine dispatches lifecycle callbacks to registered handlers.
//
// Engine is not safe for concurrent use. Wrap it in server.Server when
// the caller cannot guarantee one callback at a time.
type Engine struct {
	store   *store.Store
	reg     *Registry
	log     logrus.FieldLogger
	metrics Metrics
	version string
	data    string
}

var _ breezy.Application = (*Engine)(nil)

// New creates an engine over st and seals reg. A nil reg is treated as
// an empty registry.
func New(st *store.Store, reg *Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	reg.seal()
	e := &Engine{
		store:   st,
		reg:     reg,
		log:     logrus.StandardLogger(),
		metrics: nopMetrics{},
		version: "1.0.0",
		data:    "breezy",
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "engine")
	return e
}

// Store returns the engine's store.
func (e *Engine) Store() *store.Store { return e.store }

// InitChain opens the store if needed and runs the genesis handler
// directly against the store buffer.
func (e *Engine) InitChain(ctx context.Context, req types.InitChainRequest) (types.InitChainResponse, error) {
	if err := e.open(); err != nil {
		return types.InitChainResponse{}, err
	}
	if e.reg.genesis == nil {
		return types.InitChainResponse{}, nil
	}

	gc := &GenesisContext{writer: writer{reader{e.store}}, req: req}
	if err := e.protect(func() error { return e.reg.genesis(ctx, gc) }); err != nil {
		return types.InitChainResponse{}, fmt.Errorf("init chain %q: %w", req.ChainID, err)
	}
	e.log.WithFields(logrus.Fields{
		"chain_id": req.ChainID,
		"pending":  e.store.Pending(),
	}).Info("genesis loaded")
	return types.InitChainResponse{}, nil
}

// Info opens the store if needed and reports the committed chain state.
func (e *Engine) Info(ctx context.Context, req types.InfoRequest) (types.InfoResponse, error) {
	if err := e.open(); err != nil {
		return types.InfoResponse{}, err
	}
	cs := e.store.ChainState()
	return types.InfoResponse{
		LastBlockHeight:  cs.Height,
		LastBlockAppHash: cs.AppHash,
		Version:          e.version,
		Data:             e.data,
	}, nil
}

// CheckTx decodes and validates the envelope, then runs the admission
// handler if one is registered. Writes made by the handler are always
// discarded.
func (e *Engine) CheckTx(ctx context.Context, req types.TxRequest) (res types.TxResult, _ error) {
	defer func() { e.metrics.Callback(KindCheckTx, res.Code) }()

	env, err := envelope.Decode(req.Tx)
	if err != nil {
		return failed(err), nil
	}
	if err := env.Validate(); err != nil {
		return failed(err), nil
	}
	if e.reg.verify == nil {
		return types.TxResult{Code: types.CodeOK}, nil
	}

	staged := e.store.Stage()
	defer staged.Discard()
	res = e.runTx(ctx, e.reg.verify, env, staged)
	e.logTx(KindCheckTx, env, res)
	return res, nil
}

// DeliverTx decodes the envelope and runs the handler for its route.
// The handler's writes reach the store buffer only if it returns
// code 0 without error.
func (e *Engine) DeliverTx(ctx context.Context, req types.TxRequest) (res types.TxResult, _ error) {
	defer func() { e.metrics.Callback(KindDeliverTx, res.Code) }()

	env, err := envelope.Decode(req.Tx)
	if err != nil {
		return failed(err), nil
	}
	h, ok := e.reg.routes[env.Route]
	if !ok {
		return types.TxResult{Code: types.CodeErr, Log: fmt.Sprintf(logHandlerNotFound, env.Route)}, nil
	}

	staged := e.store.Stage()
	res = e.runTx(ctx, h, env, staged)
	if res.OK() {
		staged.Write()
	} else {
		staged.Discard()
	}
	e.logTx(KindDeliverTx, env, res)
	return res, nil
}

// Commit flushes the store. A failure is fatal and returned as a
// *breezy.HaltError; height and root are left unchanged.
func (e *Engine) Commit(ctx context.Context) (types.CommitResponse, error) {
	ops := e.store.Pending()
	start := time.Now()
	root, err := e.store.Commit()
	e.metrics.Commit(time.Since(start), e.store.Height(), ops, err)
	if err != nil {
		e.log.WithError(err).WithField("height", e.store.Height()+1).Error("commit failed")
		return types.CommitResponse{}, breezy.Halt(e.store.Height()+1, err)
	}

	e.log.WithFields(logrus.Fields{
		"height": e.store.Height(),
		"root":   root,
		"ops":    ops,
	}).Info("committed block")
	return types.CommitResponse{Data: root}, nil
}

// Query decodes the key from req.Data and runs the handler for
// req.Path against a read-only context.
func (e *Engine) Query(ctx context.Context, req types.QueryRequest) (res types.QueryResult, _ error) {
	defer func() { e.metrics.Callback(KindQuery, res.Code) }()

	h, ok := e.reg.queries[req.Path]
	if !ok {
		return notFound(), nil
	}

	var key any
	if len(req.Data) > 0 {
		if err := codec.Unmarshal(req.Data, &key); err != nil {
			return types.QueryResult{Code: types.CodeErr, Log: fmt.Errorf("%w: query key: %v", breezy.ErrDecode, err).Error()}, nil
		}
	}

	qc := &QueryContext{reader: reader{e.store}, height: e.store.Height()}
	var result any
	err := e.protect(func() error {
		var err error
		result, err = h(ctx, qc, key)
		return err
	})
	switch {
	case errors.Is(err, breezy.ErrNotFound):
		return notFound(), nil
	case err != nil:
		return types.QueryResult{Code: types.CodeErr, Log: err.Error()}, nil
	case isEmpty(result):
		return notFound(), nil
	}

	value, err := codec.Marshal(result)
	if err != nil {
		return types.QueryResult{Code: types.CodeErr, Log: err.Error()}, nil
	}
	return types.QueryResult{
		Code:   types.CodeOK,
		Key:    req.Data,
		Value:  value,
		Height: qc.height,
	}, nil
}

func (e *Engine) open() error {
	if e.store.IsOpen() {
		return nil
	}
	return e.store.Open()
}

// runTx invokes h with a TxContext over staged. Emitted events are
// appended to the handler's result.
func (e *Engine) runTx(ctx context.Context, h TxHandler, env *envelope.Envelope, staged *store.Cache) types.TxResult {
	tc := &TxContext{
		writer: writer{reader{staged}},
		env:    env,
		height: e.store.Height(),
	}
	var res types.TxResult
	err := e.protect(func() error {
		var err error
		res, err = h(ctx, tc)
		return err
	})
	if err != nil {
		return failed(err)
	}
	res.Events = append(res.Events, tc.events...)
	return res
}

// protect runs fn, converting a panic into an error.
func (e *Engine) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", r).Error("handler panicked")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}

func (e *Engine) logTx(kind string, env *envelope.Envelope, res types.TxResult) {
	e.log.WithFields(logrus.Fields{
		"kind":   kind,
		"route":  env.Route,
		"type":   env.Type,
		"sender": env.Sender,
		"code":   res.Code,
	}).Debug(res.Log)
}

func failed(err error) types.TxResult {
	return types.TxResult{Code: types.CodeErr, Log: err.Error()}
}

func notFound() types.QueryResult {
	return types.QueryResult{Code: types.CodeErr, Log: logNotFound}
}

// isEmpty reports whether a query result counts as absent: nil, a nil
// pointer or interface, a zero-length string, slice or map, numeric
// zero or false. Structs are always present.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return rv.IsZero()
	}
	return false
}
