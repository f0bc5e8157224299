package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/signal-golang/siglink/axolotl"
)

const (
	nextSignedPreKeyID = "next_signed_pre_key_id"
	nextKyberPreKeyID  = "next_kyber_pre_key_id"
)

func (s *DB) counter(name, kind string) (uint32, error) {
	v, err := s.GetSetting(name + "." + kind)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 1, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("counter %s.%s: %w", name, kind, err)
	}
	return uint32(n), nil
}

// NextPreKeyIDs returns the ids the next signed and post-quantum pre-keys
// of the identity kind will use. Both start at 1.
func (s *DB) NextPreKeyIDs(kind string) (uint32, uint32, error) {
	signed, err := s.counter(nextSignedPreKeyID, kind)
	if err != nil {
		return 0, 0, err
	}
	kyber, err := s.counter(nextKyberPreKeyID, kind)
	if err != nil {
		return 0, 0, err
	}
	return signed, kyber, nil
}

// SetNextPreKeyIDs stores both pre-key id counters of the identity kind.
func (s *DB) SetNextPreKeyIDs(kind string, signed, kyber uint32) error {
	if err := s.SetSetting(nextSignedPreKeyID+"."+kind, strconv.FormatUint(uint64(signed), 10)); err != nil {
		return err
	}
	return s.SetSetting(nextKyberPreKeyID+"."+kind, strconv.FormatUint(uint64(kyber), 10))
}

func (s *DB) StoreSignedPreKey(kind string, rec *axolotl.SignedPreKeyRecord) error {
	b, err := rec.Serialize()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO signed_pre_keys (kind, id, record) VALUES (?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET record = excluded.record`,
		kind, rec.ID, b,
	)
	if err != nil {
		return fmt.Errorf("store signed pre-key %s/%d: %w", kind, rec.ID, err)
	}
	return nil
}

func (s *DB) LoadSignedPreKey(kind string, id uint32) (*axolotl.SignedPreKeyRecord, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT record FROM signed_pre_keys WHERE kind = ? AND id = ?`, kind, id).Scan(&b)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load signed pre-key %s/%d: %w", kind, id, err)
	}
	return axolotl.LoadSignedPreKeyRecord(b)
}

func (s *DB) StoreKyberPreKey(kind string, rec *axolotl.KyberPreKeyRecord) error {
	b, err := rec.Serialize()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO kyber_pre_keys (kind, id, record, last_resort) VALUES (?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE
		 SET record = excluded.record, last_resort = excluded.last_resort`,
		kind, rec.ID, b, boolInt(rec.LastResort),
	)
	if err != nil {
		return fmt.Errorf("store kyber pre-key %s/%d: %w", kind, rec.ID, err)
	}
	return nil
}

func (s *DB) LoadKyberPreKey(kind string, id uint32) (*axolotl.KyberPreKeyRecord, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT record FROM kyber_pre_keys WHERE kind = ? AND id = ?`, kind, id).Scan(&b)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load kyber pre-key %s/%d: %w", kind, id, err)
	}
	return axolotl.LoadKyberPreKeyRecord(b)
}

func (s *DB) SaveIdentityKeyPair(kind string, kp *axolotl.IdentityKeyPair) error {
	_, err := s.db.Exec(
		`INSERT INTO identity_keys (kind, public, private) VALUES (?, ?, ?)
		 ON CONFLICT (kind) DO UPDATE SET public = excluded.public, private = excluded.private`,
		kind, kp.PublicKey.Serialize(), kp.PrivateKey.Key()[:],
	)
	if err != nil {
		return fmt.Errorf("save identity %s: %w", kind, err)
	}
	return nil
}

func (s *DB) LoadIdentityKeyPair(kind string) (*axolotl.IdentityKeyPair, error) {
	var pub, priv []byte
	err := s.db.QueryRow(`SELECT public, private FROM identity_keys WHERE kind = ?`, kind).Scan(&pub, &priv)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load identity %s: %w", kind, err)
	}
	return axolotl.NewIdentityKeyPair(pub, priv)
}

func (s *DB) SaveRegistration(data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO registration (id, data) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		data,
	)
	if err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	return nil
}

// LoadRegistration returns nil data when the device was never linked.
func (s *DB) LoadRegistration() ([]byte, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT data FROM registration WHERE id = 1`).Scan(&b)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	return b, nil
}
