// Package backup retrieves, decrypts and imports the message history a
// primary device transfers to a newly linked one.
package backup

import (
	uuid "github.com/satori/go.uuid"

	"github.com/signal-golang/siglink/crypto"
)

const (
	backupIDInfo      = "20241024_SIGNAL_BACKUP_ID:"
	messageBackupInfo = "20241007_SIGNAL_BACKUP_ENCRYPT_MESSAGE_BACKUP:"
)

// Keys are the message backup keys derived from a backup key.
type Keys struct {
	HMACKey [32]byte
	AESKey  [32]byte
}

// DeriveBackupID derives the 16 byte backup id of the account.
func DeriveBackupID(backupKey [32]byte, aci uuid.UUID) [16]byte {
	info := append([]byte(backupIDInfo), aci.Bytes()...)
	out, err := crypto.HKDFderiveSecrets(backupKey[:], info, 16)
	if err != nil {
		// HKDF-SHA256 only fails for outputs longer than 8160 bytes
		panic(err)
	}
	var id [16]byte
	copy(id[:], out)
	return id
}

// DeriveKeys derives the HMAC and AES keys protecting a message backup.
func DeriveKeys(backupKey [32]byte, backupID [16]byte) Keys {
	info := append([]byte(messageBackupInfo), backupID[:]...)
	out, err := crypto.HKDFderiveSecrets(backupKey[:], info, 64)
	if err != nil {
		panic(err)
	}
	var k Keys
	copy(k.HMACKey[:], out[:32])
	copy(k.AESKey[:], out[32:])
	return k
}

// KeysFor derives the message backup keys straight from the backup key and
// the account's ACI.
func KeysFor(backupKey [32]byte, aci uuid.UUID) Keys {
	return DeriveKeys(backupKey, DeriveBackupID(backupKey, aci))
}
