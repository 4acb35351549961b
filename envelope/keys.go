package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160"
)

// KeyPair is an ed25519 signing key with its derived address.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	Address    string
}

// GenerateKey creates a random key pair.
func GenerateKey() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	return KeyPair{PrivateKey: priv, PublicKey: pub, Address: AddressOf(pub)}, nil
}

// KeyFromSeed derives a key pair from a 32-byte seed.
func KeyFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, fmt.Errorf("key from seed: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{PrivateKey: priv, PublicKey: pub, Address: AddressOf(pub)}, nil
}

// KeyFromSeedHex is KeyFromSeed for a hex-encoded seed.
func KeyFromSeedHex(s string) (KeyPair, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return KeyPair{}, fmt.Errorf("key from seed: %w", err)
	}
	return KeyFromSeed(seed)
}

// PublicKeyHex returns the hex encoding of the public key.
func (k KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(k.PublicKey)
}

// AddressOf returns the hex RIPEMD-160 digest of pub.
func AddressOf(pub ed25519.PublicKey) string {
	h := ripemd160.New()
	h.Write(pub)
	return hex.EncodeToString(h.Sum(nil))
}
