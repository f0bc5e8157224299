package backup

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/attachments"
	"github.com/signal-golang/siglink/config"
	"github.com/signal-golang/siglink/signalerr"
	"github.com/signal-golang/siglink/transport"
)

const transferArchivePath = "/v1/devices/transfer_archive?timeout=%d"

// FetchTimeout stays above the server-side wait so the client never gives
// up first.
const FetchTimeout = 330 * time.Second

// ErrNotReady means the primary has not finished uploading the archive.
var ErrNotReady = errors.New("transfer archive not ready yet")

// ArchiveInfo locates an uploaded transfer archive.
type ArchiveInfo struct {
	CDN uint32 `json:"cdn"`
	Key string `json:"key"`
}

type archiveResponse struct {
	CDN   uint32 `json:"cdn"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Fetcher locates and downloads transfer archives.
type Fetcher struct {
	Server      string
	UserAgent   string
	RootCAs     *x509.CertPool
	CDNs        attachments.CDNs
	WaitSeconds int
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// NewFetcher returns a Fetcher for the configured servers.
func NewFetcher(cfg *config.Config, rootCAs *x509.CertPool) *Fetcher {
	return &Fetcher{
		Server:      cfg.Server,
		UserAgent:   cfg.UserAgent,
		RootCAs:     rootCAs,
		CDNs:        attachments.CDNs{CDN2: cfg.CDN2, CDN3: cfg.CDN3, RootCAs: rootCAs},
		WaitSeconds: cfg.Backup.WaitSeconds,
		MaxAttempts: cfg.Backup.MaxAttempts,
		RetryDelay:  cfg.Backup.RetryDelay,
	}
}

// FetchArchiveInfo asks the server where the archive is, waiting up to
// WaitSeconds server-side. ErrNotReady is returned for a 204.
func (f *Fetcher) FetchArchiveInfo(ctx context.Context, creds *transport.AuthCredentials) (*ArchiveInfo, error) {
	timeout := f.Timeout
	if timeout == 0 {
		timeout = FetchTimeout
	}
	wait := f.WaitSeconds
	if wait <= 0 {
		wait = config.DefaultBackupWaitSeconds
	}
	tr := transport.NewHTTPTransporter(transport.Options{
		BaseURL:   f.Server,
		User:      creds.Username,
		Password:  creds.Password,
		UserAgent: f.UserAgent,
		Timeout:   timeout,
		RootCAs:   f.RootCAs,
	})
	resp, err := tr.Get(ctx, fmt.Sprintf(transferArchivePath, wait))
	if err != nil {
		return nil, signalerr.Wrap(signalerr.NetworkError, err, "fetching transfer archive")
	}
	if resp.Status == http.StatusNoContent {
		resp.Close()
		return nil, signalerr.Wrap(signalerr.NetworkError, ErrNotReady, "fetching transfer archive")
	}
	if resp.IsError() {
		resp.Close()
		return nil, signalerr.Wrap(signalerr.NetworkError, resp, "fetching transfer archive")
	}
	raw, err := resp.ReadAll()
	if err != nil {
		return nil, signalerr.Wrap(signalerr.NetworkError, err, "reading transfer archive response")
	}
	var ar archiveResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, signalerr.Wrap(signalerr.ProtocolError, err, "decoding transfer archive response")
	}
	if ar.Error != "" {
		return nil, signalerr.New(signalerr.ProtocolError, "transfer archive error: %s", ar.Error)
	}
	if ar.Key == "" {
		return nil, signalerr.New(signalerr.ProtocolError, "transfer archive response without key")
	}
	log.Infof("[siglink-backup] transfer archive available on CDN %d", ar.CDN)
	return &ArchiveInfo{CDN: ar.CDN, Key: ar.Key}, nil
}

// WaitForArchive retries FetchArchiveInfo while the archive is not ready, up
// to MaxAttempts times, doubling RetryDelay after each attempt. progress is
// called before every attempt.
func (f *Fetcher) WaitForArchive(ctx context.Context, creds *transport.AuthCredentials, progress func(attempt int)) (*ArchiveInfo, error) {
	attempts := f.MaxAttempts
	if attempts <= 0 {
		attempts = config.DefaultBackupMaxAttempts
	}
	delay := f.RetryDelay
	for attempt := 1; ; attempt++ {
		if progress != nil {
			progress(attempt)
		}
		info, err := f.FetchArchiveInfo(ctx, creds)
		if err == nil || !errors.Is(err, ErrNotReady) || attempt >= attempts {
			return info, err
		}
		log.Infof("[siglink-backup] archive not ready, retrying in %s (attempt %d/%d)", delay, attempt, attempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Download fetches the encrypted archive from its CDN.
func (f *Fetcher) Download(ctx context.Context, info *ArchiveInfo) ([]byte, error) {
	n := len(info.Key)
	if n > 20 {
		n = 20
	}
	log.Infof("[siglink-backup] downloading transfer archive from CDN %d with key prefix %s...", info.CDN, info.Key[:n])
	return f.CDNs.Download(ctx, info.CDN, info.Key)
}
