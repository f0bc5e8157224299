package curve25519sign

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/curve25519"
)

func keyPair(t *testing.T) (priv, pub [32]byte) {
	t.Helper()
	if _, err := rand.Read(priv[:]); err != nil {
		t.Fatal(err)
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		t.Fatal(err)
	}
	copy(pub[:], p)
	return priv, pub
}

func TestSignVerify(t *testing.T) {
	priv, pub := keyPair(t)
	var random [64]byte
	rand.Read(random[:])

	msg := []byte("signed pre-key public bytes")
	sig := Sign(&priv, msg, random)
	assert.True(t, Verify(pub, msg, sig))

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 1
	assert.False(t, Verify(pub, tampered, sig))

	_, otherPub := keyPair(t)
	assert.False(t, Verify(otherPub, msg, sig))
}

func TestVerifyDoesNotModifySignature(t *testing.T) {
	priv, pub := keyPair(t)
	var random [64]byte
	sig := Sign(&priv, []byte("m"), random)
	before := *sig
	Verify(pub, []byte("m"), sig)
	assert.Equal(t, before, *sig)
}
