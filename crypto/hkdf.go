package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFderiveSecrets expands inputKeyMaterial into outputLength bytes with
// HKDF-SHA256 and an all-zero salt, which is what an absent salt means.
func HKDFderiveSecrets(inputKeyMaterial, info []byte, outputLength int) ([]byte, error) {
	salt := make([]byte, sha256.Size)
	prekey := hkdf.Extract(sha256.New, inputKeyMaterial, salt)
	reader := hkdf.Expand(sha256.New, prekey, info)
	secret := make([]byte, outputLength)
	if _, err := io.ReadFull(reader, secret); err != nil {
		return nil, fmt.Errorf("hkdf expand %d bytes: %w", outputLength, err)
	}
	return secret, nil
}
