package fingerprint

import (
	"bytes"
	"errors"

	"golang.org/x/text/encoding/charmap"
	"google.golang.org/protobuf/encoding/protowire"
)

// ScannableVersion identifies accounts by ACI.
const ScannableVersion = 2

const scannableLength = 32

var ErrBadScannable = errors.New("malformed scannable fingerprint")

// Scannable is the content of the verification QR code: the leading bytes
// of both fingerprints, the scanner's own one first.
type Scannable struct {
	Version uint32
	Local   []byte
	Remote  []byte
}

// NewScannable builds the QR content for the given fingerprints.
func NewScannable(version uint32, local, remote []byte) *Scannable {
	return &Scannable{
		Version: version,
		Local:   local[:scannableLength],
		Remote:  remote[:scannableLength],
	}
}

// Marshal encodes the CombinedFingerprints message.
func (s *Scannable) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Version))
	for _, f := range []struct {
		num     protowire.Number
		content []byte
	}{{2, s.Local}, {3, s.Remote}} {
		var logical []byte
		logical = protowire.AppendTag(logical, 1, protowire.BytesType)
		logical = protowire.AppendBytes(logical, f.content)
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendBytes(b, logical)
	}
	return b
}

// Unmarshal decodes a CombinedFingerprints message.
func (s *Scannable) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ErrBadScannable
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ErrBadScannable
			}
			s.Version = uint32(v)
			b = b[n:]
		case (num == 2 || num == 3) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ErrBadScannable
			}
			content, err := logicalContent(v)
			if err != nil {
				return err
			}
			if num == 2 {
				s.Local = content
			} else {
				s.Remote = content
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ErrBadScannable
			}
			b = b[n:]
		}
	}
	return nil
}

func logicalContent(b []byte) ([]byte, error) {
	var content []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrBadScannable
		}
		b = b[n:]
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, ErrBadScannable
		}
		if num == 1 && typ == protowire.BytesType {
			content, _ = protowire.ConsumeBytes(b)
		}
		b = b[n:]
	}
	return content, nil
}

// QRContent returns the QR payload. Clients put the raw message bytes in
// the code as ISO-8859-1 text.
func (s *Scannable) QRContent() (string, error) {
	content, err := charmap.ISO8859_1.NewDecoder().Bytes(s.Marshal())
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ScanQR parses the payload of a scanned verification QR code.
func ScanQR(content string) (*Scannable, error) {
	data, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(content))
	if err != nil {
		return nil, err
	}
	s := &Scannable{}
	if err := s.Unmarshal(data); err != nil {
		return nil, err
	}
	return s, nil
}

// Matches reports whether a code scanned from the other party was built for
// the same pair of fingerprints. The scanned code lists the other party
// first.
func (s *Scannable) Matches(local, remote []byte) bool {
	if len(local) < scannableLength || len(remote) < scannableLength {
		return false
	}
	return bytes.Equal(s.Local, remote[:scannableLength]) &&
		bytes.Equal(s.Remote, local[:scannableLength])
}
