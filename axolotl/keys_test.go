package axolotl

import (
	"crypto/mlkem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAgreement(t *testing.T) {
	alice := NewECKeyPair()
	bob := NewECKeyPair()

	s1, err := alice.PrivateKey.Agreement(bob.PublicKey)
	require.NoError(t, err)
	s2, err := bob.PrivateKey.Agreement(alice.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Len(t, s1, 32)
}

func TestDecodePoint(t *testing.T) {
	kp := NewECKeyPair()
	ser := kp.PublicKey.Serialize()
	assert.Len(t, ser, 33)
	assert.Equal(t, byte(DjbType), ser[0])

	pub, err := DecodePoint(ser)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey.Key(), pub.Key())

	_, err = DecodePoint(ser[1:])
	assert.Equal(t, ErrBadPublicKey, err)
	ser[0] = 0x06
	_, err = DecodePoint(ser)
	assert.Equal(t, ErrBadPublicKey, err)
}

func TestNewIdentityKeyPair(t *testing.T) {
	id := GenerateIdentityKeyPair()
	got, err := NewIdentityKeyPair(id.PublicKey.Serialize(), id.PrivateKey.Key()[:])
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey.Key(), got.PublicKey.Key())

	other := NewECKeyPair()
	_, err = NewIdentityKeyPair(other.PublicKey.Serialize(), id.PrivateKey.Key()[:])
	assert.Error(t, err)

	_, err = NewIdentityKeyPair(id.PublicKey.Serialize(), []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSignedPreKeyRecord(t *testing.T) {
	id := GenerateIdentityKeyPair()
	rec := NewSignedPreKeyRecord(7, id)
	assert.Equal(t, uint32(7), rec.ID)
	assert.True(t, id.PublicKey.Verify(rec.Public, rec.Signature))

	b, err := rec.Serialize()
	require.NoError(t, err)
	loaded, err := LoadSignedPreKeyRecord(b)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)

	kp, err := loaded.KeyPair()
	require.NoError(t, err)
	assert.Equal(t, rec.Public, kp.PublicKey.Serialize())
	assert.Equal(t, kp.PrivateKey.PublicKey().Key(), kp.PublicKey.Key())
}

func TestKyberPreKeyRecord(t *testing.T) {
	id := GenerateIdentityKeyPair()
	rec, err := NewKyberPreKeyRecord(3, id, true)
	require.NoError(t, err)
	assert.Equal(t, byte(KyberType), rec.Public[0])
	assert.Len(t, rec.Public, 1+mlkem.EncapsulationKeySize1024)
	assert.True(t, rec.LastResort)
	assert.True(t, id.PublicKey.Verify(rec.Public, rec.Signature))

	b, err := rec.Serialize()
	require.NoError(t, err)
	loaded, err := LoadKyberPreKeyRecord(b)
	require.NoError(t, err)
	dk, err := loaded.DecapsulationKey()
	require.NoError(t, err)
	assert.Equal(t, rec.Public[1:], dk.EncapsulationKey().Bytes())
}
