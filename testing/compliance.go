package breezytest

import (
	"context"
	"sync"
	"testing"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/types"
)

// RunComplianceSuite runs a standard compliance test suite against a
// breezy application to verify correct lifecycle behavior.
//
// The factory function should return a fresh application instance,
// backed by fresh state, for each test.
func RunComplianceSuite(t *testing.T, factory func(t *testing.T) breezy.Application) {
	t.Helper()

	t.Run("fresh_info", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		info := h.Info()
		if info.LastBlockHeight != 0 {
			t.Errorf("fresh app should report height 0, got %d", info.LastBlockHeight)
		}
		if info.LastBlockAppHash == "" {
			t.Error("fresh app should report a root hash")
		}
	})

	t.Run("genesis_then_info", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Info()
		h.Genesis()
		if got := h.Info().LastBlockHeight; got != 0 {
			t.Errorf("genesis must not advance height, got %d", got)
		}
	})

	t.Run("commit_cycle", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Genesis()

		for i := uint64(1); i <= 5; i++ {
			b := h.DeliverAndCommit()
			if b.Root == "" {
				t.Errorf("height %d: empty root", i)
			}
		}
		if got := h.Info().LastBlockHeight; got != 5 {
			t.Errorf("expected height 5 after five commits, got %d", got)
		}
	})

	t.Run("empty_blocks_deterministic", func(t *testing.T) {
		// Commit the same empty blocks on two instances, verify
		// identical roots.
		h1 := NewHarness(t, factory(t))
		h1.Genesis()
		h2 := NewHarness(t, factory(t))
		h2.Genesis()

		for i := uint64(1); i <= 3; i++ {
			b1 := h1.DeliverAndCommit()
			b2 := h2.DeliverAndCommit()
			if b1.Root != b2.Root {
				t.Errorf("height %d: non-deterministic: %s != %s", i, b1.Root, b2.Root)
			}
		}
	})

	t.Run("garbage_tx_rejected", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Genesis()

		garbage := types.Tx{0xde, 0xad, 0xbe, 0xef}
		if res := h.CheckTx(garbage); res.OK() {
			t.Error("CheckTx accepted garbage")
		}
		if res := h.DeliverTx(garbage); res.OK() {
			t.Error("DeliverTx accepted garbage")
		}
		if res := h.CheckTx(nil); res.OK() {
			t.Error("CheckTx accepted an empty tx")
		}
	})

	t.Run("rejected_tx_keeps_root", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Genesis()
		before := h.DeliverAndCommit().Root
		after := h.DeliverAndCommit(types.Tx{0x00}).Root
		if before != after {
			t.Errorf("rejected tx changed root: %s -> %s", before, after)
		}
	})

	t.Run("unknown_query_path", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Genesis()
		res := h.Query("__compliance/unknown", "key")
		if res.Code != types.CodeErr || res.Log != "not found" {
			t.Errorf("expected not found, got code=%d log=%q", res.Code, res.Log)
		}
	})

	t.Run("concurrent_callbacks_after_genesis", func(t *testing.T) {
		h := NewHarness(t, factory(t))
		h.Genesis()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				if _, err := h.Server().CheckTx(context.Background(), types.TxRequest{Tx: types.Tx{0x01}}); err != nil {
					t.Errorf("concurrent CheckTx failed: %v", err)
				}
			}()
			go func() {
				defer wg.Done()
				if _, err := h.Server().Query(context.Background(), types.QueryRequest{Path: "__compliance/unknown"}); err != nil {
					t.Errorf("concurrent Query failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})
}
