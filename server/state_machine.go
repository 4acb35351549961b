// Package server wraps a breezy application with lifecycle enforcement
// and callback serialization.
package server

import (
	"fmt"
	"sync/atomic"
)

// lifecycleState represents a state in the callback lifecycle.
type lifecycleState uint32

const (
	// stateInit: waiting for InitChain or Info. Nothing else allowed.
	stateInit lifecycleState = iota
	// stateReady: no block in progress. CheckTx, Query, DeliverTx and
	// Commit are allowed.
	stateReady
	// stateDelivering: at least one DeliverTx since the last Commit.
	stateDelivering
	// stateCommitting: Commit has been called and not yet returned.
	stateCommitting
	// stateHalted: Commit failed. The application must be restarted.
	stateHalted
)

func (s lifecycleState) String() string {
	switch s {
	case stateInit:
		return "Init"
	case stateReady:
		return "Ready"
	case stateDelivering:
		return "Delivering"
	case stateCommitting:
		return "Committing"
	case stateHalted:
		return "Halted"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// LifecycleGuard enforces the callback lifecycle. Misordered calls are
// programming errors in the runtime and panic.
//
// The guard does not serialize callers; Server holds a mutex around
// every transition.
type LifecycleGuard struct {
	state atomic.Uint32
	// genesisDone is set once InitChain succeeds.
	genesisDone atomic.Bool
	// started is set once the first block begins.
	started atomic.Bool
}

// NewLifecycleGuard creates a guard in the Init state.
func NewLifecycleGuard() *LifecycleGuard {
	g := &LifecycleGuard{}
	g.state.Store(uint32(stateInit))
	return g
}

func (g *LifecycleGuard) load() lifecycleState {
	return lifecycleState(g.state.Load())
}

// State returns the current lifecycle state.
func (g *LifecycleGuard) State() string {
	return g.load().String()
}

// AcquireInitChain checks that InitChain is allowed: at most once, and
// before the first block.
func (g *LifecycleGuard) AcquireInitChain() {
	state := g.load()
	if g.genesisDone.Load() || g.started.Load() || (state != stateInit && state != stateReady) {
		panic(fmt.Sprintf("breezy: InitChain called in state %s after genesis or first block", state))
	}
}

// CompleteInitChain transitions to Ready.
func (g *LifecycleGuard) CompleteInitChain() {
	g.genesisDone.Store(true)
	g.state.Store(uint32(stateReady))
}

// CompleteInfo transitions Init → Ready. In any other state it is a
// no-op.
func (g *LifecycleGuard) CompleteInfo() {
	g.state.CompareAndSwap(uint32(stateInit), uint32(stateReady))
}

// CheckReady verifies that read-side calls are allowed. Panics before
// InitChain or Info has completed.
func (g *LifecycleGuard) CheckReady() {
	if g.load() == stateInit {
		panic("breezy: callback before InitChain or Info completed")
	}
}

// AcquireDeliver transitions Ready or Delivering → Delivering.
func (g *LifecycleGuard) AcquireDeliver() {
	state := g.load()
	if state != stateReady && state != stateDelivering {
		panic(fmt.Sprintf("breezy: DeliverTx called in state %s (expected Ready or Delivering)", state))
	}
	g.started.Store(true)
	g.state.Store(uint32(stateDelivering))
}

// AcquireCommit transitions Ready or Delivering → Committing. An empty
// block commits straight from Ready.
func (g *LifecycleGuard) AcquireCommit() {
	state := g.load()
	if state != stateReady && state != stateDelivering {
		panic(fmt.Sprintf("breezy: Commit called in state %s (expected Ready or Delivering)", state))
	}
	g.started.Store(true)
	g.state.Store(uint32(stateCommitting))
}

// CompleteCommit transitions Committing → Ready.
func (g *LifecycleGuard) CompleteCommit() {
	g.state.Store(uint32(stateReady))
}

// FailCommit transitions Committing → Halted.
func (g *LifecycleGuard) FailCommit() {
	g.state.Store(uint32(stateHalted))
}

// IsReady returns true if the guard is in the Ready state.
func (g *LifecycleGuard) IsReady() bool {
	return g.load() == stateReady
}

// IsHalted returns true once a commit has failed.
func (g *LifecycleGuard) IsHalted() bool {
	return g.load() == stateHalted
}
