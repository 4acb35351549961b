package server

import (
	"testing"
)

func expectPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for %s", what)
		}
	}()
	fn()
}

func TestLifecycleGuard_HappyPath(t *testing.T) {
	g := NewLifecycleGuard()

	// Init → Ready (InitChain)
	g.AcquireInitChain()
	g.CompleteInitChain()

	if !g.IsReady() {
		t.Fatal("expected Ready after InitChain")
	}

	// Ready → Delivering, twice in one block.
	g.AcquireDeliver()
	g.AcquireDeliver()
	if g.State() != "Delivering" {
		t.Fatalf("expected Delivering, got %s", g.State())
	}

	// Delivering → Committing → Ready
	g.AcquireCommit()
	g.CompleteCommit()

	if !g.IsReady() {
		t.Fatal("expected Ready after commit")
	}

	// An empty block commits straight from Ready.
	g.AcquireCommit()
	g.CompleteCommit()

	if !g.IsReady() {
		t.Fatal("expected Ready after empty block")
	}
}

func TestLifecycleGuard_InfoThenInitChain(t *testing.T) {
	g := NewLifecycleGuard()
	g.CompleteInfo()
	if !g.IsReady() {
		t.Fatal("expected Ready after Info")
	}

	// A fresh chain still gets its genesis after Info.
	g.AcquireInitChain()
	g.CompleteInitChain()

	// Info later is a no-op.
	g.AcquireDeliver()
	g.CompleteInfo()
	if g.State() != "Delivering" {
		t.Fatalf("Info changed state to %s", g.State())
	}
}

func TestLifecycleGuard_ReadyBeforeInit(t *testing.T) {
	g := NewLifecycleGuard()
	expectPanic(t, "CheckReady before init", g.CheckReady)
	expectPanic(t, "DeliverTx before init", g.AcquireDeliver)
	expectPanic(t, "Commit before init", g.AcquireCommit)
}

func TestLifecycleGuard_DoubleInitChain(t *testing.T) {
	g := NewLifecycleGuard()
	g.AcquireInitChain()
	g.CompleteInitChain()

	expectPanic(t, "double InitChain", g.AcquireInitChain)
}

func TestLifecycleGuard_InitChainAfterFirstBlock(t *testing.T) {
	g := NewLifecycleGuard()
	g.CompleteInfo()
	g.AcquireCommit()
	g.CompleteCommit()

	expectPanic(t, "InitChain after first block", g.AcquireInitChain)
}

func TestLifecycleGuard_FailCommit(t *testing.T) {
	g := NewLifecycleGuard()
	g.CompleteInfo()
	g.AcquireDeliver()
	g.AcquireCommit()
	g.FailCommit()

	if !g.IsHalted() {
		t.Fatalf("expected Halted, got %s", g.State())
	}
	expectPanic(t, "DeliverTx after halt", g.AcquireDeliver)
	expectPanic(t, "Commit after halt", g.AcquireCommit)
}

func TestLifecycleGuard_State(t *testing.T) {
	g := NewLifecycleGuard()

	if g.State() != "Init" {
		t.Errorf("expected Init, got %s", g.State())
	}

	g.AcquireInitChain()
	g.CompleteInitChain()

	if g.State() != "Ready" {
		t.Errorf("expected Ready, got %s", g.State())
	}
}
