package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

func TestAesRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	RandBytes(key)
	for _, size := range []int{0, 1, 15, 16, 17, 100} {
		plain := bytes.Repeat([]byte{0xab}, size)
		ct, err := AesEncrypt(key, plain)
		require.NoError(t, err)
		assert.Equal(t, 0, len(ct)%16)

		got, err := AesDecrypt(key, ct)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestAesDecryptLeavesInputIntact(t *testing.T) {
	key := make([]byte, 32)
	ct, err := AesEncrypt(key, []byte("hello"))
	require.NoError(t, err)
	orig := append([]byte(nil), ct...)
	_, err = AesDecrypt(key, ct)
	require.NoError(t, err)
	assert.Equal(t, orig, ct)
}

func TestUnpadPKCS7(t *testing.T) {
	got, err := UnpadPKCS7([]byte{1, 2, 3, 3, 3, 3})
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	for _, bad := range [][]byte{
		{},
		{1, 2, 0},
		{1, 2, 17},
		{1, 2, 3, 2, 3},
		{4, 4, 4},
	} {
		_, err := UnpadPKCS7(bad)
		assert.Error(t, err, "input %v", bad)
	}
}

func TestAesCTRIsSymmetric(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 16)
	RandBytes(key)
	ct, err := AesCTR(key, iv, []byte("My Laptop"))
	require.NoError(t, err)
	assert.Len(t, ct, 9)
	pt, err := AesCTR(key, iv, ct)
	require.NoError(t, err)
	assert.Equal(t, "My Laptop", string(pt))
}

func TestMAC(t *testing.T) {
	key := []byte("key")
	msg := []byte("The quick brown fox jumps over the lazy dog")
	// known answer
	want, _ := hex.DecodeString("f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8")
	assert.Equal(t, want, HmacSHA256(key, msg))
	assert.Equal(t, want, HmacSHA256(key, msg[:10], msg[10:]))

	signed := AppendMAC(key, msg)
	assert.True(t, VerifyMAC(key, signed[:len(msg)], signed[len(msg):]))
	signed[0] ^= 1
	assert.False(t, VerifyMAC(key, signed[:len(msg)], signed[len(msg):]))
}

func TestHKDFMatchesNilSalt(t *testing.T) {
	ikm := []byte("input key material")
	info := []byte("info")
	got, err := HKDFderiveSecrets(ikm, info, 64)
	require.NoError(t, err)

	want := make([]byte, 64)
	_, err = io.ReadFull(hkdf.New(sha256.New, ikm, nil, info), want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
