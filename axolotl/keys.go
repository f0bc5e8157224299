// Package axolotl holds the Curve25519 and post-quantum key material a linked
// device publishes to the service.
package axolotl

import (
	"errors"
	"fmt"

	"github.com/signal-golang/siglink/crypto"
	"github.com/signal-golang/siglink/curve25519sign"
	"golang.org/x/crypto/curve25519"
)

// DjbType is the type byte prefixed to serialized Curve25519 public keys.
const DjbType = 0x05

// ErrBadPublicKey is raised when a given public key is not in the expected
// format.
var ErrBadPublicKey = errors.New("public key not formatted correctly")

// ECPublicKey is a Curve25519 public key.
type ECPublicKey struct {
	key [32]byte
}

// ECPrivateKey is a clamped Curve25519 private key.
type ECPrivateKey struct {
	key [32]byte
}

// ECKeyPair is a Curve25519 key pair.
type ECKeyPair struct {
	PrivateKey *ECPrivateKey
	PublicKey  *ECPublicKey
}

func (k *ECPublicKey) Key() *[32]byte {
	return &k.key
}

// Serialize returns the type-prefixed 33 byte encoding.
func (k *ECPublicKey) Serialize() []byte {
	return append([]byte{DjbType}, k.key[:]...)
}

func (k *ECPrivateKey) Key() *[32]byte {
	return &k.key
}

// DecodePoint parses a type-prefixed public key.
func DecodePoint(b []byte) (*ECPublicKey, error) {
	if len(b) != 33 || b[0] != DjbType {
		return nil, ErrBadPublicKey
	}
	k := &ECPublicKey{}
	copy(k.key[:], b[1:])
	return k, nil
}

// NewECPrivateKey parses a raw 32 byte private key.
func NewECPrivateKey(b []byte) (*ECPrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key is %d, not 32 bytes", len(b))
	}
	k := &ECPrivateKey{}
	copy(k.key[:], b)
	clamp(&k.key)
	return k, nil
}

// PublicKey derives the public key.
func (k *ECPrivateKey) PublicKey() *ECPublicKey {
	pub, err := curve25519.X25519(k.key[:], curve25519.Basepoint)
	if err != nil {
		// the base point is never low order
		panic(err)
	}
	p := &ECPublicKey{}
	copy(p.key[:], pub)
	return p
}

// NewECKeyPair generates a fresh key pair.
func NewECKeyPair() *ECKeyPair {
	priv := &ECPrivateKey{}
	crypto.RandBytes(priv.key[:])
	clamp(&priv.key)
	return &ECKeyPair{PrivateKey: priv, PublicKey: priv.PublicKey()}
}

// Agreement computes the X25519 shared secret with their public key.
func (k *ECPrivateKey) Agreement(their *ECPublicKey) ([]byte, error) {
	return curve25519.X25519(k.key[:], their.key[:])
}

// Sign returns an XEdDSA signature of message.
func (k *ECPrivateKey) Sign(message []byte) []byte {
	var random [64]byte
	crypto.RandBytes(random[:])
	sig := curve25519sign.Sign(&k.key, message, random)
	return sig[:]
}

// Verify checks an XEdDSA signature made by the owner of k.
func (k *ECPublicKey) Verify(message, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}
	var sig [64]byte
	copy(sig[:], signature)
	return curve25519sign.Verify(k.key, message, &sig)
}

func clamp(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// IdentityKeyPair is a long-lived account identity.
type IdentityKeyPair struct {
	PublicKey  *ECPublicKey
	PrivateKey *ECPrivateKey
}

// NewIdentityKeyPair builds an identity from its serialized public key and raw
// private key, checking that the two belong together.
func NewIdentityKeyPair(public, private []byte) (*IdentityKeyPair, error) {
	pub, err := DecodePoint(public)
	if err != nil {
		return nil, err
	}
	priv, err := NewECPrivateKey(private)
	if err != nil {
		return nil, err
	}
	if *priv.PublicKey().Key() != *pub.Key() {
		return nil, errors.New("identity private key does not match public key")
	}
	return &IdentityKeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// GenerateIdentityKeyPair creates a fresh identity.
func GenerateIdentityKeyPair() *IdentityKeyPair {
	kp := NewECKeyPair()
	return &IdentityKeyPair{PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey}
}
