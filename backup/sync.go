package backup

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/registration"
	"github.com/signal-golang/siglink/signalerr"
)

// Sync stages reported to the progress callback.
const (
	StageFetching    = "fetching"
	StageDownloading = "downloading"
	StageDecrypting  = "decrypting"
	StageParsing     = "parsing"
	StageImporting   = "importing"
)

// Progress receives the current stage. attempt counts archive lookups and
// is 0 for the other stages.
type Progress func(stage string, attempt int)

// Sync runs the whole history transfer: locate, download, decrypt, parse
// and import the archive the primary uploaded for this device.
func Sync(ctx context.Context, f *Fetcher, reg *registration.Result, backupKey []byte, repo Repository, progress Progress) (convs, msgs int, err error) {
	if progress == nil {
		progress = func(string, int) {}
	}
	if len(backupKey) != 32 {
		return 0, 0, signalerr.New(signalerr.CryptoError, "backup key is %d, not 32 bytes", len(backupKey))
	}
	aci, err := reg.ACIUUID()
	if err != nil {
		return 0, 0, signalerr.Wrap(signalerr.ProtocolError, err, "account ACI")
	}
	var key [32]byte
	copy(key[:], backupKey)

	log.Infoln("[siglink-backup] starting message history sync")

	info, err := f.WaitForArchive(ctx, reg.Credentials(), func(attempt int) {
		progress(StageFetching, attempt)
	})
	if err != nil {
		return 0, 0, err
	}

	progress(StageDownloading, 0)
	encrypted, err := f.Download(ctx, info)
	if err != nil {
		return 0, 0, err
	}

	progress(StageDecrypting, 0)
	compressed, err := Decrypt(KeysFor(key, aci), encrypted)
	if err != nil {
		return 0, 0, err
	}
	log.Infof("[siglink-backup] decrypted %d bytes of backup data", len(compressed))

	progress(StageParsing, 0)
	data, err := Parse(compressed)
	if err != nil {
		return 0, 0, err
	}

	progress(StageImporting, 0)
	return Import(data, repo)
}
