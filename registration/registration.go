// Package registration completes the link of a provisioned device against
// the service and keeps the local registration record.
package registration

import (
	"context"
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"fmt"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/axolotl"
	"github.com/signal-golang/siglink/config"
	"github.com/signal-golang/siglink/crypto"
	"github.com/signal-golang/siglink/helpers"
	"github.com/signal-golang/siglink/provisioning"
	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/transport"
	"github.com/signal-golang/siglink/utils"
)

const linkDevicePath = "/v1/devices/link"

// Identity kinds used as key store namespaces.
const (
	ACI = "aci"
	PNI = "pni"
)

// KeyStore is the durable store for key material and the registration
// record.
type KeyStore interface {
	NextPreKeyIDs(kind string) (signed, kyber uint32, err error)
	SetNextPreKeyIDs(kind string, signed, kyber uint32) error
	StoreSignedPreKey(kind string, rec *axolotl.SignedPreKeyRecord) error
	StoreKyberPreKey(kind string, rec *axolotl.KyberPreKeyRecord) error
	SaveIdentityKeyPair(kind string, kp *axolotl.IdentityKeyPair) error
	LoadIdentityKeyPair(kind string) (*axolotl.IdentityKeyPair, error)
	SaveRegistration(data []byte) error
	// LoadRegistration returns nil data when nothing was saved.
	LoadRegistration() ([]byte, error)
}

// Info holds the data required to be identified by and
// to communicate with the push server.
// It is generated once when linking and stored locally.
type Info struct {
	Server            string `json:"server"`
	DeviceName        string `json:"deviceName"`
	Number            string `json:"number"`
	ACI               string `json:"aci"`
	PNI               string `json:"pni"`
	Password          string `json:"password"`
	SignalingKey      []byte `json:"signalingKey"`
	DeviceID          uint32 `json:"deviceId"`
	RegistrationID    uint32 `json:"registrationId"`
	PNIRegistrationID uint32 `json:"pniRegistrationId"`
	ProfileKey        []byte `json:"profileKey"`
}

// Result is a completed registration.
type Result struct {
	Info
	ACIIdentity *axolotl.IdentityKeyPair
	PNIIdentity *axolotl.IdentityKeyPair
}

// ACIUUID parses the account's ACI.
func (r *Result) ACIUUID() (uuid.UUID, error) {
	return utils.ParseServiceID(r.ACI)
}

// Credentials returns the device's Basic auth credentials.
func (r *Result) Credentials() *transport.AuthCredentials {
	return &transport.AuthCredentials{
		Username: fmt.Sprintf("%s.%d", r.ACI, r.DeviceID),
		Password: r.Password,
	}
}

// Deps are the collaborators of Complete.
type Deps struct {
	Server       string
	UserAgent    string
	RootCAs      *x509.CertPool
	Store        KeyStore
	Capabilities config.AccountCapabilities
}

type accountAttributes struct {
	RegistrationID    uint32                     `json:"registrationId"`
	PNIRegistrationID uint32                     `json:"pniRegistrationId"`
	FetchesMessages   bool                       `json:"fetchesMessages"`
	Capabilities      config.AccountCapabilities `json:"capabilities"`
	Name              string                     `json:"name"`
}

type linkRequest struct {
	VerificationCode      string              `json:"verificationCode"`
	AccountAttributes     accountAttributes   `json:"accountAttributes"`
	ACISignedPreKey       *signedPreKeyEntity `json:"aciSignedPreKey"`
	PNISignedPreKey       *signedPreKeyEntity `json:"pniSignedPreKey"`
	ACIPqLastResortPreKey *kyberPreKeyEntity  `json:"aciPqLastResortPreKey"`
	PNIPqLastResortPreKey *kyberPreKeyEntity  `json:"pniPqLastResortPreKey"`
}

type linkResponse struct {
	UUID     string `json:"uuid"`
	PNI      string `json:"pni"`
	DeviceID uint32 `json:"deviceId"`
}

func randUint32() uint32 {
	b := make([]byte, 4)
	crypto.RandBytes(b)
	return binary.BigEndian.Uint32(b)
}

// Generate a random registration id in [1, 256)
func generateRegistrationID() uint32 {
	return randUint32()%255 + 1
}

// Generate a 256 bit AES and a 160 bit HMAC-SHA1 key
// to be used to secure the communication with the server
func generateSignalingKey() []byte {
	b := make([]byte, 52)
	crypto.RandBytes(b)
	return b
}

// GeneratePassword returns a random password used for HTTP Basic
// Authentication to the server.
func GeneratePassword() string {
	b := make([]byte, 18)
	crypto.RandBytes(b)
	return helpers.Base64EncWithoutPadding(b)
}

func statusError(status int) error {
	switch status {
	case 403:
		return signalerr.New(signalerr.LinkingFailed, "invalid provisioning code")
	case 409:
		return signalerr.New(signalerr.AlreadyRegistered, "device already linked")
	case 411:
		return signalerr.New(signalerr.LinkingFailed, "account has too many linked devices")
	case 429:
		return signalerr.New(signalerr.LinkingFailed, "rate limited")
	}
	return signalerr.New(signalerr.LinkingFailed, "link request failed with status %d", status)
}

// Complete generates the device's key material, links it to the account of
// the provisioned identity and saves the resulting registration.
func Complete(ctx context.Context, deps Deps, id *provisioning.ProvisionedIdentity, deviceName, password string) (*Result, error) {
	if deps.Server == "" {
		deps.Server = config.SignalServer
	}
	if deps.Capabilities == (config.AccountCapabilities{}) {
		deps.Capabilities = config.DefaultCapabilities
	}

	registrationID := generateRegistrationID()
	pniRegistrationID := generateRegistrationID()

	aciKeys, err := generatePreKeys(deps.Store, ACI, id.ACIIdentity)
	if err != nil {
		return nil, err
	}
	pniKeys, err := generatePreKeys(deps.Store, PNI, id.PNIIdentity)
	if err != nil {
		return nil, err
	}

	name, err := EncryptDeviceName(deviceName, id.ACIIdentity.PublicKey)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.CryptoError, err, "encrypting device name")
	}

	req := &linkRequest{
		VerificationCode: id.ProvisioningCode,
		AccountAttributes: accountAttributes{
			RegistrationID:    registrationID,
			PNIRegistrationID: pniRegistrationID,
			FetchesMessages:   true,
			Capabilities:      deps.Capabilities,
			Name:              name,
		},
		ACISignedPreKey:       aciKeys.signedEntity(),
		PNISignedPreKey:       pniKeys.signedEntity(),
		ACIPqLastResortPreKey: aciKeys.lastResortEntity(),
		PNIPqLastResortPreKey: pniKeys.lastResortEntity(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	log.Infoln("[siglink] completing device link")

	tr := transport.NewHTTPTransporter(transport.Options{
		BaseURL:   deps.Server,
		User:      id.Number,
		Password:  password,
		UserAgent: deps.UserAgent,
		RootCAs:   deps.RootCAs,
	})
	resp, err := tr.PutJSON(ctx, linkDevicePath, body)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.NetworkError, err, "link request")
	}
	if resp.IsError() {
		resp.Close()
		log.WithFields(log.Fields{"error": resp}).Errorln("[siglink] link request failed")
		return nil, statusError(resp.Status)
	}
	raw, err := resp.ReadAll()
	if err != nil {
		return nil, signalerr.Wrap(signalerr.NetworkError, err, "reading link response")
	}
	var lr linkResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return nil, signalerr.Wrap(signalerr.ProtocolError, err, "decoding link response")
	}

	log.WithFields(log.Fields{
		"aci":      lr.UUID,
		"deviceId": lr.DeviceID,
	}).Infoln("[siglink] device linked")

	res := &Result{
		Info: Info{
			Server:            deps.Server,
			DeviceName:        deviceName,
			Number:            id.Number,
			ACI:               lr.UUID,
			PNI:               lr.PNI,
			Password:          password,
			SignalingKey:      generateSignalingKey(),
			DeviceID:          lr.DeviceID,
			RegistrationID:    registrationID,
			PNIRegistrationID: pniRegistrationID,
			ProfileKey:        id.ProfileKey,
		},
		ACIIdentity: id.ACIIdentity,
		PNIIdentity: id.PNIIdentity,
	}
	if err := save(deps.Store, res); err != nil {
		return nil, err
	}
	return res, nil
}

func save(ks KeyStore, res *Result) error {
	if err := ks.SaveIdentityKeyPair(ACI, res.ACIIdentity); err != nil {
		return signalerr.Wrap(signalerr.StorageError, err, "saving ACI identity")
	}
	if err := ks.SaveIdentityKeyPair(PNI, res.PNIIdentity); err != nil {
		return signalerr.Wrap(signalerr.StorageError, err, "saving PNI identity")
	}
	data, err := json.Marshal(&res.Info)
	if err != nil {
		return err
	}
	if err := ks.SaveRegistration(data); err != nil {
		return signalerr.Wrap(signalerr.StorageError, err, "saving registration")
	}
	return nil
}

// Load restores a saved registration. It fails with NotRegistered when the
// device was never linked.
func Load(ks KeyStore) (*Result, error) {
	data, err := ks.LoadRegistration()
	if err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "loading registration")
	}
	if data == nil {
		return nil, signalerr.New(signalerr.NotRegistered, "no saved registration")
	}
	res := &Result{}
	if err := json.Unmarshal(data, &res.Info); err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "decoding registration")
	}
	if res.ACIIdentity, err = ks.LoadIdentityKeyPair(ACI); err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "loading ACI identity")
	}
	if res.PNIIdentity, err = ks.LoadIdentityKeyPair(PNI); err != nil {
		return nil, signalerr.Wrap(signalerr.StorageError, err, "loading PNI identity")
	}
	return res, nil
}
