// Package curve25519sign implements XEdDSA signatures made with Curve25519
// identity keys.
package curve25519sign

import (
	"crypto/sha512"

	"github.com/signal-golang/ed25519"
	"github.com/signal-golang/ed25519/edwards25519"
)

// Sign signs message with the Curve25519 private key. random must be 64 bytes
// of fresh randomness.
func Sign(privateKey *[32]byte, message []byte, random [64]byte) *[64]byte {
	a := *privateKey
	a[0] &= 248
	a[31] &= 127
	a[31] |= 64

	// Ed25519 public key from the Curve25519 private scalar
	var A edwards25519.ExtendedGroupElement
	var publicKey [32]byte
	edwards25519.GeScalarMultBase(&A, &a)
	A.ToBytes(&publicKey)

	diversifier := [32]byte{
		0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	var r [64]byte
	hash := sha512.New()
	hash.Write(diversifier[:])
	hash.Write(a[:])
	hash.Write(message)
	hash.Write(random[:])
	hash.Sum(r[:0])

	var rReduced [32]byte
	edwards25519.ScReduce(&rReduced, &r)
	var R edwards25519.ExtendedGroupElement
	edwards25519.GeScalarMultBase(&R, &rReduced)

	var encodedR [32]byte
	R.ToBytes(&encodedR)

	// S = r + H(R ‖ A ‖ msg) * a  (mod L)
	var hramDigest [64]byte
	hash.Reset()
	hash.Write(encodedR[:])
	hash.Write(publicKey[:])
	hash.Write(message)
	hash.Sum(hramDigest[:0])
	var hramDigestReduced [32]byte
	edwards25519.ScReduce(&hramDigestReduced, &hramDigest)

	var s [32]byte
	edwards25519.ScMulAdd(&s, &hramDigestReduced, &a, &rReduced)

	signature := new([64]byte)
	copy(signature[:], encodedR[:])
	copy(signature[32:], s[:])
	signature[63] |= publicKey[31] & 0x80

	return signature
}

// Verify checks an XEdDSA signature against a Curve25519 public key.
func Verify(publicKey [32]byte, message []byte, signature *[64]byte) bool {
	publicKey[31] &= 0x7F

	// birational map from the Montgomery u coordinate to Edwards y
	var edY, one, montX, montXMinusOne, montXPlusOne edwards25519.FieldElement
	edwards25519.FeFromBytes(&montX, &publicKey)
	edwards25519.FeOne(&one)
	edwards25519.FeSub(&montXMinusOne, &montX, &one)
	edwards25519.FeAdd(&montXPlusOne, &montX, &one)
	edwards25519.FeInvert(&montXPlusOne, &montXPlusOne)
	edwards25519.FeMul(&edY, &montXMinusOne, &montXPlusOne)

	var aEd [32]byte
	edwards25519.FeToBytes(&aEd, &edY)

	sig := *signature
	aEd[31] |= sig[63] & 0x80
	sig[63] &= 0x7F

	return ed25519.Verify(&aEd, message, &sig)
}
