package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// ErrBadPadding is returned when PKCS7 padding does not verify.
var ErrBadPadding = errors.New("invalid PKCS7 padding")

// RandBytes fills data from the CSPRNG
func RandBytes(data []byte) {
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		panic(err)
	}
}

// AesEncrypt encrypts the given plaintext under the given key in AES-CBC mode
// with a random IV, returning IV ‖ ciphertext.
func AesEncrypt(key, plaintext []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	RandBytes(iv)
	ciphertext, err := AesCBCEncrypt(key, iv, plaintext)
	if err != nil {
		return nil, err
	}
	return append(iv, ciphertext...), nil
}

// AesCBCEncrypt PKCS7-pads plaintext and encrypts it under key and iv.
func AesCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, 0, len(plaintext)+pad)
	padded = append(padded, plaintext...)
	padded = append(padded, bytes.Repeat([]byte{byte(pad)}, pad)...)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// AesDecrypt decrypts IV ‖ ciphertext under the given key in AES-CBC mode
func AesDecrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 2*aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}
	return AesCBCDecrypt(key, ciphertext[:aes.BlockSize], ciphertext[aes.BlockSize:])
}

// AesCBCDecrypt decrypts ciphertext under key and iv and strips PKCS7 padding.
// The input is left untouched.
func AesCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		log.Debugln("[siglink] aesDecrypt ciphertext not multiple of AES blocksize", len(ciphertext)%aes.BlockSize)
		return nil, errors.New("ciphertext not multiple of AES blocksize")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return UnpadPKCS7(plaintext)
}

// UnpadPKCS7 removes PKCS7 padding
func UnpadPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(b) {
		return nil, fmt.Errorf("%w: pad value %d", ErrBadPadding, pad)
	}
	for _, p := range b[len(b)-pad:] {
		if int(p) != pad {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-pad], nil
}

// AesCTR applies the AES-CTR keystream for key and iv to data. The counter is
// the whole 128-bit block, big endian.
func AesCTR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

// HmacSHA256 computes HMAC-SHA256 of the concatenated parts
func HmacSHA256(key []byte, parts ...[]byte) []byte {
	m := hmac.New(sha256.New, key)
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}

// VerifyMAC verifies a HMAC-SHA256 MAC on a message
func VerifyMAC(key, b, mac []byte) bool {
	return hmac.Equal(HmacSHA256(key, b), mac)
}

// AppendMAC returns the given message with a HMAC-SHA256 MAC appended
func AppendMAC(key, b []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(b)
	return m.Sum(b)
}
