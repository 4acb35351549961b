package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/types"
)

// TxHandler processes one envelope. It is used both for the admission
// handler and for route handlers. Expected domain failures are
// returned as errors; the engine reports them as code 1.
type TxHandler func(ctx context.Context, tc *TxContext) (types.TxResult, error)

// QueryHandler answers a query for the decoded key. Returning nil, an
// empty string, slice or map, numeric zero, false or breezy.ErrNotFound
// yields a "not found" response. Structs are always reported.
type QueryHandler func(ctx context.Context, qc *QueryContext, key any) (any, error)

// GenesisHandler seeds state during InitChain.
type GenesisHandler func(ctx context.Context, gc *GenesisContext) error

// Registry maps routes and query paths to handlers. It is filled during
// setup and sealed when passed to New; registering on a sealed registry
// panics.
type Registry struct {
	genesis GenesisHandler
	verify  TxHandler
	routes  map[string]TxHandler
	queries map[string]QueryHandler
	sealed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		routes:  make(map[string]TxHandler),
		queries: make(map[string]QueryHandler),
	}
}

// OnInitChain sets the genesis handler.
func (r *Registry) OnInitChain(h GenesisHandler) {
	r.mustOpen("OnInitChain")
	r.genesis = h
}

// OnVerifyTx sets or replaces the single admission handler.
func (r *Registry) OnVerifyTx(h TxHandler) {
	r.mustOpen("OnVerifyTx")
	r.verify = h
}

// OnTx registers or overwrites the handler for route.
func (r *Registry) OnTx(route string, h TxHandler) {
	r.mustOpen("OnTx")
	r.routes[route] = h
}

// OnQuery registers or overwrites the handler for a query path.
func (r *Registry) OnQuery(path string, h QueryHandler) {
	r.mustOpen("OnQuery")
	r.queries[path] = h
}

// Routes returns the registered routes in sorted order.
func (r *Registry) Routes() []string {
	out := make([]string, 0, len(r.routes))
	for k := range r.routes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sealed reports whether the registry has been handed to an engine.
func (r *Registry) Sealed() bool { return r.sealed }

func (r *Registry) seal() { r.sealed = true }

func (r *Registry) mustOpen(op string) {
	if r.sealed {
		panic(fmt.Sprintf("engine: %s called on a sealed registry", op))
	}
}

// TypeMux dispatches a route by Envelope.Type.
type TypeMux struct {
	handlers map[string]TxHandler
}

// NewTypeMux creates an empty TypeMux.
func NewTypeMux() *TypeMux {
	return &TypeMux{handlers: make(map[string]TxHandler)}
}

// Handle registers h for envelope type typ and returns m for chaining.
func (m *TypeMux) Handle(typ string, h TxHandler) *TypeMux {
	m.handlers[typ] = h
	return m
}

// Serve is a TxHandler that forwards to the handler for the envelope's
// type, failing with breezy.ErrUnknownType if there is none.
func (m *TypeMux) Serve(ctx context.Context, tc *TxContext) (types.TxResult, error) {
	typ := tc.Envelope().Type
	h, ok := m.handlers[typ]
	if !ok {
		return types.TxResult{}, fmt.Errorf("%w %q on route %q", breezy.ErrUnknownType, typ, tc.Envelope().Route)
	}
	return h(ctx, tc)
}
