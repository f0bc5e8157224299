package registration

import (
	"bytes"
	"encoding/base64"
	"errors"

	"github.com/signal-golang/siglink/axolotl"
	"github.com/signal-golang/siglink/crypto"
	signalservice "github.com/signal-golang/siglink/protobuf"
)

// ErrBadDeviceName is returned when a device name's synthetic IV does not
// match its decrypted contents.
var ErrBadDeviceName = errors.New("device name synthetic IV mismatch")

func deviceNameKeys(secret []byte) (authKey, cipherKey []byte) {
	return crypto.HmacSHA256(secret, []byte("auth")), crypto.HmacSHA256(secret, []byte("cipher"))
}

// EncryptDeviceName encrypts name so that the holder of the account's ACI
// identity key can read it, returning the base64 DeviceName message.
func EncryptDeviceName(name string, identity *axolotl.ECPublicKey) (string, error) {
	ephemeral := axolotl.NewECKeyPair()
	secret, err := ephemeral.PrivateKey.Agreement(identity)
	if err != nil {
		return "", err
	}
	authKey, cipherKey := deviceNameKeys(secret)
	plaintext := []byte(name)
	siv := crypto.HmacSHA256(authKey, plaintext)[:16]
	key := crypto.HmacSHA256(cipherKey, siv)
	ciphertext, err := crypto.AesCTR(key, make([]byte, 16), plaintext)
	if err != nil {
		return "", err
	}
	dn := &signalservice.DeviceName{
		EphemeralPublic: ephemeral.PublicKey.Serialize(),
		SyntheticIv:     siv,
		Ciphertext:      ciphertext,
	}
	return base64.StdEncoding.EncodeToString(dn.Marshal()), nil
}

// DecryptDeviceName reverses EncryptDeviceName with the identity private key.
func DecryptDeviceName(encoded string, identity *axolotl.ECPrivateKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	dn := &signalservice.DeviceName{}
	if err := dn.Unmarshal(raw); err != nil {
		return "", err
	}
	ephemeral, err := axolotl.DecodePoint(dn.EphemeralPublic)
	if err != nil {
		return "", err
	}
	if len(dn.SyntheticIv) != 16 {
		return "", ErrBadDeviceName
	}
	secret, err := identity.Agreement(ephemeral)
	if err != nil {
		return "", err
	}
	authKey, cipherKey := deviceNameKeys(secret)
	key := crypto.HmacSHA256(cipherKey, dn.SyntheticIv)
	plaintext, err := crypto.AesCTR(key, make([]byte, 16), dn.Ciphertext)
	if err != nil {
		return "", err
	}
	if !bytes.Equal(crypto.HmacSHA256(authKey, plaintext)[:16], dn.SyntheticIv) {
		return "", ErrBadDeviceName
	}
	return string(plaintext), nil
}
