package registration

import (
	"encoding/base64"

	"github.com/signal-golang/siglink/axolotl"
	"github.com/signal-golang/siglink/signalerr"
)

// maxPreKeyID bounds pre-key ids to 24 bits.
const maxPreKeyID = 0xFFFFFF

type signedPreKeyEntity struct {
	ID        uint32 `json:"keyId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type kyberPreKeyEntity = signedPreKeyEntity

type preKeySet struct {
	signed     *axolotl.SignedPreKeyRecord
	lastResort *axolotl.KyberPreKeyRecord
}

func (s *preKeySet) signedEntity() *signedPreKeyEntity {
	return &signedPreKeyEntity{
		ID:        s.signed.ID,
		PublicKey: base64.StdEncoding.EncodeToString(s.signed.Public),
		Signature: base64.StdEncoding.EncodeToString(s.signed.Signature),
	}
}

func (s *preKeySet) lastResortEntity() *kyberPreKeyEntity {
	return &kyberPreKeyEntity{
		ID:        s.lastResort.ID,
		PublicKey: base64.StdEncoding.EncodeToString(s.lastResort.Public),
		Signature: base64.StdEncoding.EncodeToString(s.lastResort.Signature),
	}
}

func lastResortID(next uint32) uint32 {
	// a linked device uploads no one-time post-quantum keys
	const count = 0
	return ((next + count) % (maxPreKeyID - 1)) + 1
}

// generatePreKeys creates the signed pre-key and the last-resort
// post-quantum pre-key for one identity and persists both, advancing the
// store's id counters.
func generatePreKeys(ks KeyStore, kind string, identity *axolotl.IdentityKeyPair) (*preKeySet, error) {
	nextSigned, nextKyber, err := ks.NextPreKeyIDs(kind)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "loading pre-key ids")
	}

	signed := axolotl.NewSignedPreKeyRecord(nextSigned, identity)
	if err := ks.StoreSignedPreKey(kind, signed); err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "storing signed pre-key")
	}

	lastResort, err := axolotl.NewKyberPreKeyRecord(lastResortID(nextKyber), identity, true)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.CryptoError, err, "generating post-quantum pre-key")
	}
	if err := ks.StoreKyberPreKey(kind, lastResort); err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "storing post-quantum pre-key")
	}

	if err := ks.SetNextPreKeyIDs(kind, nextSigned%maxPreKeyID+1, nextKyber%maxPreKeyID+1); err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "advancing pre-key ids")
	}
	return &preKeySet{signed: signed, lastResort: lastResort}, nil
}
