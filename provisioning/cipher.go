package provisioning

import (
	"errors"

	"github.com/signal-golang/siglink/axolotl"
	"github.com/signal-golang/siglink/crypto"
	signalservice "github.com/signal-golang/siglink/protobuf"
)

const (
	provisioningVersion = 1
	provisioningInfo    = "TextSecure Provisioning Message"
	macLength           = 32
	ivLength            = 16
)

var (
	ErrBadVersion = errors.New("unknown provisioning message version")
	ErrBadMAC     = errors.New("provisioning message MAC mismatch")
	ErrTooShort   = errors.New("provisioning message too short")
)

// Cipher decrypts provisioning envelopes addressed to an ephemeral key pair.
type Cipher struct {
	keyPair *axolotl.ECKeyPair
}

func NewCipher(kp *axolotl.ECKeyPair) *Cipher {
	return &Cipher{keyPair: kp}
}

// PublicKey is the serialized key advertised in the provisioning URL.
func (c *Cipher) PublicKey() []byte {
	return c.keyPair.PublicKey.Serialize()
}

func deriveProvisioningKeys(secret []byte) (aesKey, macKey []byte, err error) {
	derived, err := crypto.HKDFderiveSecrets(secret, []byte(provisioningInfo), 64)
	if err != nil {
		return nil, nil, err
	}
	return derived[:32], derived[32:], nil
}

// Decrypt unwraps an envelope into the provisioning message. The MAC is
// checked before any decryption.
func (c *Cipher) Decrypt(env *signalservice.ProvisionEnvelope) (*signalservice.ProvisionMessage, error) {
	theirs, err := axolotl.DecodePoint(env.PublicKey)
	if err != nil {
		return nil, err
	}
	body := env.Body
	if len(body) < 1+ivLength+macLength {
		return nil, ErrTooShort
	}
	if body[0] != provisioningVersion {
		return nil, ErrBadVersion
	}
	secret, err := c.keyPair.PrivateKey.Agreement(theirs)
	if err != nil {
		return nil, err
	}
	aesKey, macKey, err := deriveProvisioningKeys(secret)
	if err != nil {
		return nil, err
	}
	signed := body[:len(body)-macLength]
	if !crypto.VerifyMAC(macKey, signed, body[len(body)-macLength:]) {
		return nil, ErrBadMAC
	}
	iv := body[1 : 1+ivLength]
	plaintext, err := crypto.AesCBCDecrypt(aesKey, iv, signed[1+ivLength:])
	if err != nil {
		return nil, err
	}
	pm := &signalservice.ProvisionMessage{}
	if err := pm.Unmarshal(plaintext); err != nil {
		return nil, err
	}
	return pm, nil
}

// Encrypt seals a provisioning message for the holder of theirs. It is what
// a primary device does and is used to drive the handshake in tests.
func Encrypt(pm *signalservice.ProvisionMessage, theirs *axolotl.ECPublicKey) (*signalservice.ProvisionEnvelope, error) {
	ours := axolotl.NewECKeyPair()
	secret, err := ours.PrivateKey.Agreement(theirs)
	if err != nil {
		return nil, err
	}
	aesKey, macKey, err := deriveProvisioningKeys(secret)
	if err != nil {
		return nil, err
	}
	ivct, err := crypto.AesEncrypt(aesKey, pm.Marshal())
	if err != nil {
		return nil, err
	}
	body := append([]byte{provisioningVersion}, ivct...)
	return &signalservice.ProvisionEnvelope{
		PublicKey: ours.PublicKey.Serialize(),
		Body:      crypto.AppendMAC(macKey, body),
	}, nil
}
