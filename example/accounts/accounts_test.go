package accounts

import (
	"strings"
	"testing"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/codec"
	"github.com/blockberries/breezy/engine"
	"github.com/blockberries/breezy/envelope"
	breezytest "github.com/blockberries/breezy/testing"
	"github.com/blockberries/breezy/types"
)

const (
	bobSeed     = "a12133c8e2422999ceca9113eb26bf62b197ac1a9052b395655c6db4b6c1b005"
	aliceSeed   = "9cef276d41fcf0b1c6d9fdea32a1e83733dc221356a8eef1bcc359b234ba2c92"
	strangerHex = "265087745d9b2790549a04e1a6d081fb5eec9ded850dbc635aba418143ba67cd"
)

type fixture struct {
	h     *breezytest.Harness
	bob   envelope.KeyPair
	alice envelope.KeyPair
}

func setup(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		bob:   breezytest.MustKey(t, bobSeed),
		alice: breezytest.MustKey(t, aliceSeed),
	}
	f.h, _ = breezytest.NewEngineHarness(t, func(reg *engine.Registry) {
		Register(reg, FromKey(f.bob, "Bob"), FromKey(f.alice, "Alice"))
	})
	f.h.Genesis()
	f.h.Commit()
	return f
}

func (f fixture) account(t *testing.T, address string) Account {
	t.Helper()
	var a Account
	f.h.QueryValue(QueryAccount, address, &a)
	return a
}

func TestAccounts_Compliance(t *testing.T) {
	breezytest.RunComplianceSuite(t, func(t *testing.T) breezy.Application {
		return breezytest.NewEngine(t, func(reg *engine.Registry) {
			Register(reg, FromKey(breezytest.MustKey(t, bobSeed), "Bob"))
		})
	})
}

func TestAccounts_Genesis(t *testing.T) {
	f := setup(t)
	a := f.account(t, f.bob.Address)
	if a.Address != f.bob.Address || a.Name != "Bob" {
		t.Fatalf("unexpected account %+v", a)
	}
	if a.Balance != InitialBalance {
		t.Fatalf("expected balance %d, got %d", InitialBalance, a.Balance)
	}
	if a.PublicKey != f.bob.PublicKeyHex() {
		t.Fatal("public key not stored")
	}
}

func TestAccounts_GenesisFromAppState(t *testing.T) {
	carol := breezytest.MustKey(t, strangerHex)
	state, err := codec.Marshal(GenesisState{Accounts: []Account{FromKey(carol, "Carol")}})
	if err != nil {
		t.Fatal(err)
	}

	h, _ := breezytest.NewEngineHarness(t, func(reg *engine.Registry) { Register(reg) })
	req := breezytest.DefaultInitChain()
	req.AppState = state
	h.InitChain(req)

	var a Account
	h.QueryValue(QueryAccount, carol.Address, &a)
	if a.Name != "Carol" || a.Balance != InitialBalance {
		t.Fatalf("unexpected account %+v", a)
	}
}

func TestAccounts_AuthenticateRegisteredSender(t *testing.T) {
	f := setup(t)
	env := envelope.New("hello", "any", envelope.Payload{"one": 1})
	f.h.MustAcceptTx(breezytest.SignTx(t, f.bob, env))
}

func TestAccounts_AuthenticateUnregisteredSender(t *testing.T) {
	f := setup(t)
	stranger := breezytest.MustKey(t, strangerHex)
	env := envelope.New("hello", "any", envelope.Payload{"one": 2})

	res := f.h.MustRejectTx(breezytest.SignTx(t, stranger, env))
	if res.Code != types.CodeErr {
		t.Fatalf("expected code 1, got %d", res.Code)
	}
	if !strings.Contains(res.Log, "not found") || !strings.Contains(res.Log, stranger.Address) {
		t.Fatalf("expected sender not found, got %q", res.Log)
	}
}

func TestAccounts_AuthenticateForgedSender(t *testing.T) {
	f := setup(t)
	stranger := breezytest.MustKey(t, strangerHex)

	// Signed by a stranger but claiming to be Bob.
	env := envelope.New("hello", "any", envelope.Payload{"one": 3})
	if err := env.Sign(stranger.PrivateKey); err != nil {
		t.Fatal(err)
	}
	env.Sender = f.bob.Address

	res := f.h.MustRejectTx(env.MustEncode())
	if res.Log != ErrBadSignature.Error() {
		t.Fatalf("expected bad signature, got %q", res.Log)
	}
}

func TestAccounts_Create(t *testing.T) {
	f := setup(t)
	carol := breezytest.MustKey(t, strangerHex)

	data, _ := envelope.PayloadOf(CreateMsg{Address: carol.Address, PubKey: carol.PublicKeyHex(), Name: "Carol"})
	res := f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeCreate, data)))
	if !res.OK() {
		t.Fatalf("create failed: %s", res.Log)
	}

	a := f.account(t, carol.Address)
	if a.Balance != InitialBalance || a.Name != "Carol" {
		t.Fatalf("unexpected account %+v", a)
	}

	// Carol can now pass admission.
	f.h.MustAcceptTx(breezytest.SignTx(t, carol, envelope.New("hello", "any", nil)))

	// Creating the same account twice fails.
	res = f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeCreate, data)))
	if res.OK() || !strings.Contains(res.Log, "already exists") {
		t.Fatalf("expected duplicate create to fail, got %+v", res)
	}
}

func TestAccounts_CreateRequiresSenderAccount(t *testing.T) {
	f := setup(t)
	carol := breezytest.MustKey(t, strangerHex)

	data, _ := envelope.PayloadOf(CreateMsg{Address: carol.Address, PubKey: carol.PublicKeyHex()})
	res := f.h.RunTx(signed(t, carol, envelope.New(Route, TypeCreate, data)))
	if res.OK() {
		t.Fatal("expected create by unknown sender to fail")
	}
	if r := f.h.Query(QueryAccount, carol.Address); r.OK() {
		t.Fatal("failed create left an account behind")
	}
}

func TestAccounts_CreateBadPayload(t *testing.T) {
	f := setup(t)

	res := f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeCreate, envelope.Payload{"address": "abc", "pubkey": "zz"})))
	if res.OK() || !strings.Contains(res.Log, "bad public key") {
		t.Fatalf("expected bad public key, got %+v", res)
	}
	res = f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeCreate, envelope.Payload{"pubkey": f.bob.PublicKeyHex()})))
	if res.OK() || !strings.Contains(res.Log, "missing account address") {
		t.Fatalf("expected missing address, got %+v", res)
	}
}

func TestAccounts_Transfer(t *testing.T) {
	f := setup(t)

	data, _ := envelope.PayloadOf(TransferMsg{To: f.alice.Address, Amount: 100})
	res := f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeTransfer, data)))
	if !res.OK() {
		t.Fatalf("transfer failed: %s", res.Log)
	}
	if len(res.Events) != 1 || res.Events[0].Kind != "transfer" {
		t.Fatalf("expected transfer event, got %+v", res.Events)
	}

	if b := f.account(t, f.bob.Address).Balance; b != 9900 {
		t.Errorf("expected payer balance 9900, got %d", b)
	}
	if b := f.account(t, f.alice.Address).Balance; b != 10100 {
		t.Errorf("expected payee balance 10100, got %d", b)
	}
}

func TestAccounts_TransferInsufficient(t *testing.T) {
	f := setup(t)
	root := f.h.Info().LastBlockAppHash

	data, _ := envelope.PayloadOf(TransferMsg{To: f.alice.Address, Amount: InitialBalance + 1})
	res := f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeTransfer, data)))
	if res.OK() || !strings.Contains(res.Log, breezy.ErrInsufficientState.Error()) {
		t.Fatalf("expected insufficient balance, got %+v", res)
	}
	if got := f.h.Info().LastBlockAppHash; got != root {
		t.Fatal("failed transfer changed the root")
	}
}

func TestAccounts_TransferToUnknown(t *testing.T) {
	f := setup(t)

	data, _ := envelope.PayloadOf(TransferMsg{To: "nobody", Amount: 1})
	res := f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeTransfer, data)))
	if res.OK() || !strings.Contains(res.Log, "account nobody not found") {
		t.Fatalf("expected unknown payee, got %+v", res)
	}
	if b := f.account(t, f.bob.Address).Balance; b != InitialBalance {
		t.Fatalf("payer debited on failed transfer: %d", b)
	}
}

func TestAccounts_UnknownType(t *testing.T) {
	f := setup(t)
	res := f.h.RunTx(signed(t, f.bob, envelope.New(Route, "delete", nil)))
	if res.OK() || !strings.Contains(res.Log, breezy.ErrUnknownType.Error()) {
		t.Fatalf("expected unknown type, got %+v", res)
	}
}

func TestAccounts_QueryMissing(t *testing.T) {
	f := setup(t)
	if r := f.h.Query(QueryAccount, "nobody"); r.Log != "not found" {
		t.Fatalf("expected not found, got %+v", r)
	}
	if r := f.h.Query(QueryAccount, 7); r.Code != types.CodeErr {
		t.Fatalf("expected non-string key to fail, got %+v", r)
	}
}

func TestAccounts_SimulatedBlocks(t *testing.T) {
	f := setup(t)
	before := len(f.h.Blocks())

	data, _ := envelope.PayloadOf(TransferMsg{To: f.alice.Address, Amount: 5})
	f.h.RunTx(signed(t, f.bob, envelope.New(Route, TypeTransfer, data)))
	f.h.RunTx(signed(t, f.alice, envelope.New(Route, TypeTransfer, data)))

	blocks := f.h.Blocks()
	if len(blocks)-before != 2 {
		t.Fatalf("expected 2 new blocks, got %d", len(blocks)-before)
	}
	last := blocks[len(blocks)-1]
	if last.Height != 3 {
		t.Fatalf("expected last block at height 3, got %d", last.Height)
	}
	if last.Root != f.h.Info().LastBlockAppHash {
		t.Fatal("block root does not match committed root")
	}
}

func signed(t *testing.T, kp envelope.KeyPair, env *envelope.Envelope) *envelope.Envelope {
	t.Helper()
	if err := env.Sign(kp.PrivateKey); err != nil {
		t.Fatal(err)
	}
	return env
}
