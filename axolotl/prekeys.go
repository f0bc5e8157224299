package axolotl

import (
	"crypto/mlkem"
	"encoding/json"
	"errors"
	"time"
)

// KyberType is the type byte prefixed to serialized 1024-bit post-quantum
// public keys.
const KyberType = 0x08

// SignedPreKeyRecord is a Curve25519 pre-key signed by the identity key.
type SignedPreKeyRecord struct {
	ID        uint32 `json:"id"`
	Timestamp uint64 `json:"timestamp"`
	Public    []byte `json:"public"`
	Private   []byte `json:"private"`
	Signature []byte `json:"signature"`
}

// KyberPreKeyRecord is a post-quantum KEM pre-key signed by the identity key.
// Seed is the 64 byte decapsulation key seed.
type KyberPreKeyRecord struct {
	ID         uint32 `json:"id"`
	Timestamp  uint64 `json:"timestamp"`
	Public     []byte `json:"public"`
	Seed       []byte `json:"seed"`
	Signature  []byte `json:"signature"`
	LastResort bool   `json:"lastResort"`
}

func now() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// NewSignedPreKeyRecord generates a key pair and signs its serialized public
// key with the identity.
func NewSignedPreKeyRecord(id uint32, identity *IdentityKeyPair) *SignedPreKeyRecord {
	kp := NewECKeyPair()
	pub := kp.PublicKey.Serialize()
	return &SignedPreKeyRecord{
		ID:        id,
		Timestamp: now(),
		Public:    pub,
		Private:   append([]byte(nil), kp.PrivateKey.Key()[:]...),
		Signature: identity.PrivateKey.Sign(pub),
	}
}

// NewKyberPreKeyRecord generates an ML-KEM-1024 key and signs its serialized
// encapsulation key with the identity.
func NewKyberPreKeyRecord(id uint32, identity *IdentityKeyPair, lastResort bool) (*KyberPreKeyRecord, error) {
	dk, err := mlkem.GenerateKey1024()
	if err != nil {
		return nil, err
	}
	pub := append([]byte{KyberType}, dk.EncapsulationKey().Bytes()...)
	return &KyberPreKeyRecord{
		ID:         id,
		Timestamp:  now(),
		Public:     pub,
		Seed:       dk.Bytes(),
		Signature:  identity.PrivateKey.Sign(pub),
		LastResort: lastResort,
	}, nil
}

// DecapsulationKey restores the KEM private key from its seed.
func (r *KyberPreKeyRecord) DecapsulationKey() (*mlkem.DecapsulationKey1024, error) {
	return mlkem.NewDecapsulationKey1024(r.Seed)
}

// KeyPair restores the Curve25519 key pair.
func (r *SignedPreKeyRecord) KeyPair() (*ECKeyPair, error) {
	priv, err := NewECPrivateKey(r.Private)
	if err != nil {
		return nil, err
	}
	pub, err := DecodePoint(r.Public)
	if err != nil {
		return nil, err
	}
	return &ECKeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

func (r *SignedPreKeyRecord) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

func LoadSignedPreKeyRecord(b []byte) (*SignedPreKeyRecord, error) {
	r := &SignedPreKeyRecord{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, err
	}
	if len(r.Private) != 32 {
		return nil, errors.New("signed pre-key record without private key")
	}
	return r, nil
}

func (r *KyberPreKeyRecord) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

func LoadKyberPreKeyRecord(b []byte) (*KyberPreKeyRecord, error) {
	r := &KyberPreKeyRecord{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, err
	}
	if len(r.Seed) != mlkem.SeedSize {
		return nil, errors.New("kyber pre-key record without seed")
	}
	return r, nil
}
