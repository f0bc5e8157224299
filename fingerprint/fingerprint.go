// Based on https://gist.github.com/nanu-c/f885b928b9e43a7167258dd70dc186d6 from nanu-c
// which is based on libsignal's NumericFingerprintGenerator.

// Package fingerprint computes the safety numbers two accounts compare to
// verify each other's identity keys.
package fingerprint

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/signal-golang/siglink/axolotl"
)

const (
	Iterations = 5200

	fingerprintVersion uint16 = 0
)

// Identity is one side of a safety number: the account's stable identifier
// (the ACI bytes) and its identity keys.
type Identity struct {
	StableID []byte
	Keys     []*axolotl.ECPublicKey
}

// Compute returns the iterated SHA-512 fingerprint of an identity.
func Compute(id Identity) []byte {
	publicKey := logicalKeyBytes(id.Keys)
	hash := make([]byte, 2, 2+len(publicKey)+len(id.StableID))
	binary.BigEndian.PutUint16(hash, fingerprintVersion)
	hash = append(hash, publicKey...)
	hash = append(hash, id.StableID...)

	digest := sha512.New()
	for i := 0; i < Iterations; i++ {
		digest.Write(hash)
		digest.Write(publicKey)
		hash = digest.Sum(nil)
		digest.Reset()
	}
	return hash
}

func logicalKeyBytes(keys []*axolotl.ECPublicKey) []byte {
	serialized := make([][]byte, len(keys))
	for i, k := range keys {
		serialized[i] = k.Serialize()
	}
	sort.Slice(serialized, func(i, j int) bool {
		return bytes.Compare(serialized[i], serialized[j]) < 0
	})
	return bytes.Join(serialized, nil)
}

// Numbers renders the first 30 bytes of a fingerprint as six blocks of
// five digits.
func Numbers(fingerprint []byte) []string {
	chunks := make([]string, 6)
	for i := range chunks {
		chunks[i] = encodedChunk(fingerprint, i*5)
	}
	return chunks
}

func encodedChunk(hash []byte, offset int) string {
	chunk := uint64(hash[offset])<<32 |
		uint64(hash[offset+1])<<24 |
		uint64(hash[offset+2])<<16 |
		uint64(hash[offset+3])<<8 |
		uint64(hash[offset+4])
	return fmt.Sprintf("%05d", chunk%100000)
}

// SafetyNumber is the 60 digit number both parties see, in twelve blocks.
// It is the same whichever side computes it.
func SafetyNumber(local, remote Identity) string {
	l := Numbers(Compute(local))
	r := Numbers(Compute(remote))
	if strings.Join(l, "") > strings.Join(r, "") {
		l, r = r, l
	}
	return strings.Join(append(l, r...), " ")
}
