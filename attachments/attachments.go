// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package attachments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/signal-golang/mimemagic"
	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/config"
	"github.com/signal-golang/siglink/crypto"
	"github.com/signal-golang/siglink/events"
	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/transport"
)

// DownloadTimeout bounds a single CDN download.
const DownloadTimeout = 5 * time.Minute

// Attachment represents an attachment received from a peer
type Attachment struct {
	R        io.Reader
	MimeType string
	FileName string
}

// CDNs maps CDN numbers to base URLs. Only CDN 2 and 3 are served.
type CDNs struct {
	CDN2    string
	CDN3    string
	RootCAs *x509.CertPool
}

// DefaultCDNs are the production CDN hosts.
var DefaultCDNs = CDNs{CDN2: config.SIGNAL_CDN2_URL, CDN3: config.SIGNAL_CDN3_URL}

// Base returns the base URL of CDN n.
func (c CDNs) Base(n uint32) (string, error) {
	switch n {
	case 2:
		return c.CDN2, nil
	case 3:
		return c.CDN3, nil
	}
	return "", signalerr.New(signalerr.ProtocolError, "unknown CDN number %d", n)
}

// Download fetches the blob stored under key on CDN n. The request carries
// no credentials.
func (c CDNs) Download(ctx context.Context, n uint32, key string) ([]byte, error) {
	base, err := c.Base(n)
	if err != nil {
		return nil, err
	}
	tr := transport.NewHTTPTransporter(transport.Options{
		BaseURL: base,
		Timeout: DownloadTimeout,
		RootCAs: c.RootCAs,
	})
	resp, err := tr.Get(ctx, fmt.Sprintf(config.ATTACHMENT_KEY_DOWNLOAD_PATH, url.PathEscape(key)))
	if err != nil {
		return nil, signalerr.Wrap(signalerr.NetworkError, err, "CDN download")
	}
	if resp.IsError() {
		resp.Close()
		return nil, signalerr.Wrap(signalerr.NetworkError, resp, "CDN download")
	}
	b, err := resp.ReadAll()
	if err != nil {
		return nil, signalerr.Wrap(signalerr.NetworkError, err, "reading CDN download")
	}
	log.Debugf("[siglink] downloaded %d bytes from CDN %d", len(b), n)
	return b, nil
}

// ErrInvalidMACForAttachment signals that the downloaded attachment has an invalid MAC.
var ErrInvalidMACForAttachment = errors.New("invalid MAC for attachment")

// ErrInvalidDigest signals that the downloaded blob does not match its pointer.
var ErrInvalidDigest = errors.New("invalid digest for attachment")

// Decrypt verifies and decrypts an attachment blob with its 64 byte pointer
// key (AES key ‖ HMAC key).
func Decrypt(key, blob, digest []byte) ([]byte, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("attachment key is %d, not 64 bytes", len(key))
	}
	if len(blob) < 16+32 {
		return nil, ErrInvalidMACForAttachment
	}
	if len(digest) > 0 {
		sum := sha256.Sum256(blob)
		if subtle.ConstantTimeCompare(sum[:], digest) != 1 {
			return nil, ErrInvalidDigest
		}
	}
	l := len(blob) - 32
	if !crypto.VerifyMAC(key[32:], blob[:l], blob[l:]) {
		return nil, ErrInvalidMACForAttachment
	}
	return crypto.AesDecrypt(key[:32], blob[:l])
}

// Fetch downloads and decrypts the attachment a points to. A missing content
// type is sniffed from the plaintext.
func (c CDNs) Fetch(ctx context.Context, a *events.Attachment) (*Attachment, error) {
	blob, err := c.Download(ctx, a.CdnNumber, a.CdnKey)
	if err != nil {
		return nil, err
	}
	b, err := Decrypt(a.Key, blob, a.Digest)
	if err != nil {
		return nil, signalerr.Wrap(signalerr.AttachmentError, err, a.CdnKey)
	}
	if a.Size > 0 && int(a.Size) < len(b) {
		b = b[:a.Size]
	}
	var r io.Reader = bytes.NewReader(b)
	ct := a.ContentType
	if ct == "" {
		ct, r = MIMETypeFromReader(r)
	}
	return &Attachment{R: r, MimeType: ct, FileName: a.FileName}, nil
}

// MIMETypeFromReader returns the mime type that is inside the reader
func MIMETypeFromReader(r io.Reader) (mime string, reader io.Reader) {
	var buf bytes.Buffer
	io.CopyN(&buf, r, 1024)
	mime = mimemagic.Match("", buf.Bytes())
	return mime, io.MultiReader(&buf, r)
}
