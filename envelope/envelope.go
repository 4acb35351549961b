// Package envelope implements the signed transaction wrapper carried
// in every CheckTx and DeliverTx request.
//
// An envelope is built unsigned by a submitter, signed once, encoded
// for transport and decoded by the engine. Handlers read it but never
// mutate it.
package envelope

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/blockberries/breezy"
	"github.com/blockberries/breezy/codec"
	"github.com/blockberries/cramberry/pkg/cramberry"
	"golang.org/x/crypto/ripemd160"
)

// nonceSize is the number of random bytes drawn per signature.
const nonceSize = 6

// Payload is the structured, handler-interpreted body of an envelope.
type Payload map[string]any

// Envelope is a routed, signed transaction.
type Envelope struct {
	// Route selects the registered handler.
	Route string
	// Type is a sub-dispatch hint interpreted by the handler.
	Type string
	Data Payload
	// Sender is the hex address derived from the signing key.
	Sender string
	// Sig is the hex ed25519 signature over Hash.
	Sig string
	// Nonce is random hex generated at signing time.
	Nonce string
}

// wireEnvelope fixes the binary field order of an encoded envelope.
type wireEnvelope struct {
	Data   []byte `cramberry:"1"`
	Route  string `cramberry:"2"`
	Type   string `cramberry:"3"`
	Sender string `cramberry:"4"`
	Sig    string `cramberry:"5"`
	Nonce  string `cramberry:"6"`
}

// New creates an unsigned envelope.
func New(route, typ string, data Payload) *Envelope {
	return &Envelope{Route: route, Type: typ, Data: data}
}

// Hash returns the RIPEMD-160 digest of the nonce followed by the
// canonical encoding of Data.
func (e *Envelope) Hash() ([]byte, error) {
	data, err := codec.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("hash envelope: %w", err)
	}
	h := ripemd160.New()
	h.Write([]byte(e.Nonce))
	h.Write(data)
	return h.Sum(nil), nil
}

// Sign draws a fresh nonce, signs the hash with priv and sets Nonce,
// Sig and Sender. On error the envelope is left unchanged.
func (e *Envelope) Sign(priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("sign envelope: bad private key length %d", len(priv))
	}
	raw := make([]byte, nonceSize)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("sign envelope: nonce: %w", err)
	}

	prev := e.Nonce
	e.Nonce = hex.EncodeToString(raw)
	digest, err := e.Hash()
	if err != nil {
		e.Nonce = prev
		return err
	}

	pub := priv.Public().(ed25519.PublicKey)
	e.Sig = hex.EncodeToString(ed25519.Sign(priv, digest))
	e.Sender = AddressOf(pub)
	return nil
}

// Verify reports whether Sig is a valid signature of Hash under pub.
func (e *Envelope) Verify(pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(e.Sig)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	digest, err := e.Hash()
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, digest, sig)
}

// VerifyHex is Verify for a hex-encoded public key.
func (e *Envelope) VerifyHex(pubHex string) bool {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return false
	}
	return e.Verify(ed25519.PublicKey(pub))
}

// Validate checks that the fields required for admission are present.
// It does not check the signature.
func (e *Envelope) Validate() error {
	switch {
	case e.Route == "":
		return fmt.Errorf("%w: missing route", breezy.ErrMalformedEnvelope)
	case e.Type == "":
		return fmt.Errorf("%w: missing type", breezy.ErrMalformedEnvelope)
	case e.Sender == "":
		return fmt.Errorf("%w: missing sender", breezy.ErrMalformedEnvelope)
	case e.Sig == "":
		return fmt.Errorf("%w: missing signature", breezy.ErrMalformedEnvelope)
	}
	return nil
}

// Encode returns the deterministic binary form of the envelope.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := codec.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	out, err := cramberry.Marshal(wireEnvelope{
		Data:   data,
		Route:  e.Route,
		Type:   e.Type,
		Sender: e.Sender,
		Sig:    e.Sig,
		Nonce:  e.Nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out, nil
}

// MustEncode is Encode for envelopes known to be encodable, such as
// those built in tests and examples. It panics on error.
func (e *Envelope) MustEncode() []byte {
	b, err := e.Encode()
	if err != nil {
		panic(err)
	}
	return b
}

// Decode parses an envelope produced by Encode.
func Decode(b []byte) (*Envelope, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", breezy.ErrDecode)
	}
	var w wireEnvelope
	if err := cramberry.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", breezy.ErrDecode, err)
	}
	// Only the exact bytes Encode would produce are accepted. This
	// rejects truncated input that still parses field by field.
	canon, err := cramberry.Marshal(w)
	if err != nil || !bytes.Equal(canon, b) {
		return nil, fmt.Errorf("%w: envelope: not in canonical form", breezy.ErrDecode)
	}
	e := &Envelope{
		Route:  w.Route,
		Type:   w.Type,
		Sender: w.Sender,
		Sig:    w.Sig,
		Nonce:  w.Nonce,
	}
	if len(w.Data) > 0 {
		if err := codec.Unmarshal(w.Data, &e.Data); err != nil {
			return nil, fmt.Errorf("%w: envelope data: %v", breezy.ErrDecode, err)
		}
	}
	return e, nil
}

// Bind decodes Data into v, typically a pointer to a struct with cbor
// field tags.
func (e *Envelope) Bind(v any) error {
	if err := codec.Convert(e.Data, v); err != nil {
		return fmt.Errorf("%w: bind %s/%s payload: %v", breezy.ErrDecode, e.Route, e.Type, err)
	}
	return nil
}

// PayloadOf converts a struct (or any map-shaped value) into a Payload.
func PayloadOf(v any) (Payload, error) {
	var p Payload
	if err := codec.Convert(v, &p); err != nil {
		return nil, err
	}
	return p, nil
}
