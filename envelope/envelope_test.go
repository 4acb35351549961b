package envelope

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/blockberries/breezy"
	"github.com/blockberries/cramberry/pkg/cramberry"
)

func mustKey(t *testing.T) KeyPair {
	t.Helper()
	kp, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return kp
}

func TestEnvelope_EncodeDecodeRoundTrip(t *testing.T) {
	kp := mustKey(t)
	e := New("example", "create", Payload{
		"name":  "dave",
		"attrs": map[string]any{"role": "admin", "team": "core"},
	})
	if err := e.Sign(kp.PrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	b, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, e) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, e)
	}
	if !got.Verify(kp.PublicKey) {
		t.Fatal("decoded envelope failed verification")
	}
}

func TestEnvelope_RoundTripUnsigned(t *testing.T) {
	e := New("one", "ex", nil)
	got, err := Decode(e.MustEncode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, e) {
		t.Fatalf("round trip mismatch: got %#v, want %#v", got, e)
	}
}

func TestEnvelope_EncodeDeterministic(t *testing.T) {
	e := &Envelope{
		Route: "bank", Type: "send",
		Data:   Payload{"to": "bob", "amount": 5, "memo": map[string]any{"b": 1, "a": 2}},
		Sender: "aa", Sig: "bb", Nonce: "cc",
	}
	first := e.MustEncode()
	for i := 0; i < 20; i++ {
		if !bytes.Equal(first, e.MustEncode()) {
			t.Fatal("encoding is not deterministic")
		}
	}
}

func TestEnvelope_SignSetsFields(t *testing.T) {
	kp := mustKey(t)
	e := New("hello", "any", Payload{"one": 1})
	if err := e.Sign(kp.PrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(e.Nonce) != 2*nonceSize {
		t.Errorf("expected %d hex nonce chars, got %q", 2*nonceSize, e.Nonce)
	}
	if e.Sender != kp.Address {
		t.Errorf("sender %q != key address %q", e.Sender, kp.Address)
	}
	if len(e.Sender) != 40 {
		t.Errorf("expected 20-byte hex address, got %q", e.Sender)
	}
	if e.Sig == "" {
		t.Error("expected signature to be set")
	}

	prevNonce := e.Nonce
	if err := e.Sign(kp.PrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if e.Nonce == prevNonce {
		t.Error("expected a fresh nonce on re-signing")
	}
}

func TestEnvelope_VerifyWrongKey(t *testing.T) {
	signer := mustKey(t)
	other := mustKey(t)

	e := New("hello", "any", Payload{"one": 1})
	if err := e.Sign(signer.PrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !e.Verify(signer.PublicKey) {
		t.Fatal("expected verification with signer key")
	}
	if !e.VerifyHex(signer.PublicKeyHex()) {
		t.Fatal("expected verification with hex signer key")
	}
	if e.Verify(other.PublicKey) {
		t.Fatal("expected verification with another key to fail")
	}
	if e.VerifyHex("not-hex") {
		t.Fatal("expected malformed hex key to fail")
	}
}

func TestEnvelope_VerifyDetectsTamperedData(t *testing.T) {
	kp := mustKey(t)
	e := New("bank", "send", Payload{"amount": 10})
	if err := e.Sign(kp.PrivateKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	e.Data["amount"] = 1000
	if e.Verify(kp.PublicKey) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestEnvelope_HashIgnoresKeyOrder(t *testing.T) {
	a := &Envelope{Nonce: "01", Data: Payload{"x": 1, "y": map[string]any{"p": 1, "q": 2}}}
	b := &Envelope{Nonce: "01", Data: Payload{"y": map[string]any{"q": 2, "p": 1}, "x": 1}}
	ha, err := a.Hash()
	if err != nil {
		t.Fatal(err)
	}
	hb, err := b.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ha, hb) {
		t.Fatal("hash depends on map key order")
	}
	if len(ha) != 20 {
		t.Fatalf("expected 160-bit digest, got %d bytes", len(ha))
	}

	b.Nonce = "02"
	hb, _ = b.Hash()
	if bytes.Equal(ha, hb) {
		t.Fatal("hash must cover the nonce")
	}
}

func TestEnvelope_Validate(t *testing.T) {
	full := Envelope{Route: "r", Type: "t", Sender: "s", Sig: "g"}
	if err := full.Validate(); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}

	cases := map[string]func(e *Envelope){
		"route":     func(e *Envelope) { e.Route = "" },
		"type":      func(e *Envelope) { e.Type = "" },
		"sender":    func(e *Envelope) { e.Sender = "" },
		"signature": func(e *Envelope) { e.Sig = "" },
	}
	for name, clear := range cases {
		e := full
		clear(&e)
		err := e.Validate()
		if !errors.Is(err, breezy.ErrMalformedEnvelope) {
			t.Errorf("missing %s: expected ErrMalformedEnvelope, got %v", name, err)
		}
	}

	// Nonce and Data are not required.
	full.Nonce = ""
	full.Data = nil
	if err := full.Validate(); err != nil {
		t.Fatalf("nonce/data should be optional, got %v", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, breezy.ErrDecode) {
		t.Errorf("empty input: expected ErrDecode, got %v", err)
	}

	b := (&Envelope{Route: "r", Type: "t", Nonce: "0a0b0c0d0e0f"}).MustEncode()
	if _, err := Decode(b[:len(b)-1]); !errors.Is(err, breezy.ErrDecode) {
		t.Errorf("truncated input: expected ErrDecode, got %v", err)
	}

	bad, err := cramberry.Marshal(wireEnvelope{Data: []byte{0xff}, Route: "r"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(bad); !errors.Is(err, breezy.ErrDecode) {
		t.Errorf("corrupt payload: expected ErrDecode, got %v", err)
	}
}

func TestDecode_RejectsEveryTruncation(t *testing.T) {
	kp := mustKey(t)
	e := New("bank", "send", Payload{"to": "bob"})
	if err := e.Sign(kp.PrivateKey); err != nil {
		t.Fatal(err)
	}
	b := e.MustEncode()
	for n := 1; n < len(b); n++ {
		if got, err := Decode(b[:n]); !errors.Is(err, breezy.ErrDecode) {
			t.Fatalf("len %d: expected ErrDecode, decoded %+v (err %v)", n, got, err)
		}
	}
	if _, err := Decode(append(append([]byte(nil), b...), 0x00)); !errors.Is(err, breezy.ErrDecode) {
		t.Errorf("trailing byte: expected ErrDecode, got %v", err)
	}
	if _, err := Decode(b); err != nil {
		t.Fatalf("full encoding should decode: %v", err)
	}
}

func TestEnvelope_RoundTripInvalidUTF8(t *testing.T) {
	kp := mustKey(t)
	e := New("account", "create", Payload{"name": "\xff\xfe"})
	if err := e.Sign(kp.PrivateKey); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(e.MustEncode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Data["name"] != "\xff\xfe" {
		t.Fatalf("payload changed: %q", got.Data["name"])
	}
	if !got.Verify(kp.PublicKey) {
		t.Fatal("signature should verify after round trip")
	}
}

func TestEnvelope_BindAndPayloadOf(t *testing.T) {
	type transfer struct {
		To     string `cbor:"to"`
		Amount uint64 `cbor:"amount"`
	}
	p, err := PayloadOf(transfer{To: "bob", Amount: 25})
	if err != nil {
		t.Fatalf("PayloadOf: %v", err)
	}
	if p["to"] != "bob" {
		t.Fatalf("unexpected payload: %#v", p)
	}

	e := New("bank", "send", p)
	decoded, err := Decode(e.MustEncode())
	if err != nil {
		t.Fatal(err)
	}
	var got transfer
	if err := decoded.Bind(&got); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if got.To != "bob" || got.Amount != 25 {
		t.Fatalf("unexpected bound value: %+v", got)
	}
}

func TestKeyFromSeedHex(t *testing.T) {
	seed := "265087745d9b2790549a04e1a6d081fb5eec9ded850dbc635aba418143ba67cd"
	a, err := KeyFromSeedHex(seed)
	if err != nil {
		t.Fatalf("KeyFromSeedHex: %v", err)
	}
	b, err := KeyFromSeedHex(seed)
	if err != nil {
		t.Fatal(err)
	}
	if a.Address != b.Address || !bytes.Equal(a.PublicKey, b.PublicKey) {
		t.Fatal("seed derivation is not deterministic")
	}
	if _, err := KeyFromSeedHex("abcd"); err == nil {
		t.Fatal("expected short seed to fail")
	}
}
