package backup

import (
	"errors"

	"github.com/signal-golang/siglink/crypto"
	"github.com/signal-golang/siglink/signalerr"
)

const (
	ivLength  = 16
	macLength = 32
)

var (
	ErrTooShort = errors.New("encrypted backup too short")
	ErrBadMAC   = errors.New("backup HMAC verification failed")
)

// Decrypt authenticates and decrypts IV ‖ ciphertext ‖ HMAC. Nothing is
// decrypted unless the HMAC matches.
func Decrypt(keys Keys, data []byte) ([]byte, error) {
	if len(data) < ivLength+macLength {
		return nil, signalerr.Wrap(signalerr.CryptoError, ErrTooShort, "decrypting backup")
	}
	signed := data[:len(data)-macLength]
	if !crypto.VerifyMAC(keys.HMACKey[:], signed, data[len(data)-macLength:]) {
		return nil, signalerr.Wrap(signalerr.CryptoError, ErrBadMAC, "decrypting backup")
	}
	plaintext, err := crypto.AesCBCDecrypt(keys.AESKey[:], signed[:ivLength], signed[ivLength:])
	if err != nil {
		return nil, signalerr.Wrap(signalerr.CryptoError, err, "decrypting backup")
	}
	return plaintext, nil
}

// Encrypt is the inverse of Decrypt. It is what the primary device does
// before uploading the archive.
func Encrypt(keys Keys, plaintext []byte) ([]byte, error) {
	ivct, err := crypto.AesEncrypt(keys.AESKey[:], plaintext)
	if err != nil {
		return nil, err
	}
	return crypto.AppendMAC(keys.HMACKey[:], ivct), nil
}
