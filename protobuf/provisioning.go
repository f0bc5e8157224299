package signalservice

// ProvisioningAddress carries the ephemeral address the primary device sends
// its provisioning message to.
type ProvisioningAddress struct {
	Address string
}

// ProvisionEnvelope is the encrypted provisioning message.
type ProvisionEnvelope struct {
	PublicKey []byte
	Body      []byte
}

// ProvisionMessage is the decrypted account material sent by the primary
// device.
type ProvisionMessage struct {
	AciIdentityKeyPublic  []byte
	AciIdentityKeyPrivate []byte
	PniIdentityKeyPublic  []byte
	PniIdentityKeyPrivate []byte
	Aci                   string
	Pni                   string
	Number                string
	ProvisioningCode      string
	UserAgent             string
	ProfileKey            []byte
	ReadReceipts          bool
	ProvisioningVersion   uint32
	MasterKey             []byte
	EphemeralBackupKey    []byte
	AccountEntropyPool    string
	MediaRootBackupKey    []byte
}

// DeviceName is the encrypted display name of a linked device.
type DeviceName struct {
	EphemeralPublic []byte
	SyntheticIv     []byte
	Ciphertext      []byte
}

func (m *ProvisioningAddress) Marshal() []byte {
	return appendString(nil, 1, m.Address)
}

func (m *ProvisioningAddress) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = ProvisioningAddress{}
	for _, f := range fields {
		if f.num == 1 {
			m.Address = string(f.b)
		}
	}
	return nil
}

func (m *ProvisionEnvelope) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.PublicKey)
	b = appendBytes(b, 2, m.Body)
	return b
}

func (m *ProvisionEnvelope) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = ProvisionEnvelope{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.PublicKey = f.b
		case 2:
			m.Body = f.b
		}
	}
	return nil
}

func (m *ProvisionMessage) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.AciIdentityKeyPublic)
	b = appendBytes(b, 2, m.AciIdentityKeyPrivate)
	b = appendString(b, 3, m.Number)
	b = appendString(b, 4, m.ProvisioningCode)
	b = appendString(b, 5, m.UserAgent)
	b = appendBytes(b, 6, m.ProfileKey)
	if m.ReadReceipts {
		b = appendVarint(b, 7, 1)
	}
	b = appendString(b, 8, m.Aci)
	if m.ProvisioningVersion != 0 {
		b = appendVarint(b, 9, uint64(m.ProvisioningVersion))
	}
	b = appendString(b, 10, m.Pni)
	b = appendBytes(b, 11, m.PniIdentityKeyPublic)
	b = appendBytes(b, 12, m.PniIdentityKeyPrivate)
	b = appendBytes(b, 13, m.MasterKey)
	b = appendBytes(b, 14, m.EphemeralBackupKey)
	b = appendString(b, 15, m.AccountEntropyPool)
	b = appendBytes(b, 16, m.MediaRootBackupKey)
	return b
}

func (m *ProvisionMessage) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = ProvisionMessage{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.AciIdentityKeyPublic = f.b
		case 2:
			m.AciIdentityKeyPrivate = f.b
		case 3:
			m.Number = string(f.b)
		case 4:
			m.ProvisioningCode = string(f.b)
		case 5:
			m.UserAgent = string(f.b)
		case 6:
			m.ProfileKey = f.b
		case 7:
			m.ReadReceipts = f.v != 0
		case 8:
			m.Aci = string(f.b)
		case 9:
			m.ProvisioningVersion = uint32(f.v)
		case 10:
			m.Pni = string(f.b)
		case 11:
			m.PniIdentityKeyPublic = f.b
		case 12:
			m.PniIdentityKeyPrivate = f.b
		case 13:
			m.MasterKey = f.b
		case 14:
			m.EphemeralBackupKey = f.b
		case 15:
			m.AccountEntropyPool = string(f.b)
		case 16:
			m.MediaRootBackupKey = f.b
		}
	}
	return nil
}

func (m *DeviceName) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, m.EphemeralPublic)
	b = appendBytes(b, 2, m.SyntheticIv)
	b = appendBytes(b, 3, m.Ciphertext)
	return b
}

func (m *DeviceName) Unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	*m = DeviceName{}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.EphemeralPublic = f.b
		case 2:
			m.SyntheticIv = f.b
		case 3:
			m.Ciphertext = f.b
		}
	}
	return nil
}
