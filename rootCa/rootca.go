package rootCa

import (
	"crypto/x509"
	"embed"
	"encoding/pem"
	"fmt"
	"io/fs"
	"os"

	"github.com/signal-golang/siglink/utils"

	log "github.com/sirupsen/logrus"
)

// Pinned service certificates, one PEM file each. The service's private root
// for chat.signal.org belongs here as certs/signal-ca.pem.
//
//go:embed certs/*.pem
var pinned embed.FS

// Pinned returns the embedded certificates.
func Pinned() ([]*x509.Certificate, error) {
	names, err := fs.Glob(pinned, "certs/*.pem")
	if err != nil {
		return nil, err
	}
	var certs []*x509.Certificate
	for _, name := range names {
		b, err := pinned.ReadFile(name)
		if err != nil {
			return nil, err
		}
		parsed, err := parsePEM(b)
		if err != nil {
			return nil, fmt.Errorf("pinned certificate %s: %w", name, err)
		}
		certs = append(certs, parsed...)
	}
	return certs, nil
}

func parsePEM(b []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, b = pem.Decode(b)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found")
	}
	return certs, nil
}

// NewPool returns the system roots plus the pinned certificates plus the
// certificates in extraFile, if one is given. The system roots stay in the
// pool because the attachment and backup CDNs use public certificates.
func NewPool(extraFile string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		log.Debugln("[siglink] no system cert pool, using pinned certificates only")
		pool = x509.NewCertPool()
	}
	certs, err := Pinned()
	if err != nil {
		return nil, err
	}
	for _, c := range certs {
		pool.AddCert(c)
	}
	if extraFile != "" {
		if !utils.Exists(extraFile) {
			return nil, fmt.Errorf("root CA file %s does not exist", extraFile)
		}
		b, err := os.ReadFile(extraFile)
		if err != nil {
			return nil, err
		}
		extra, err := parsePEM(b)
		if err != nil {
			return nil, fmt.Errorf("root CA file %s: %w", extraFile, err)
		}
		for _, c := range extra {
			pool.AddCert(c)
		}
	}
	return pool, nil
}
