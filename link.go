package siglink

import (
	"context"
	"net/url"

	log "github.com/sirupsen/logrus"

	"github.com/signal-golang/siglink/backup"
	"github.com/signal-golang/siglink/events"
	"github.com/signal-golang/siglink/provisioning"
	"github.com/signal-golang/siglink/registration"
	"github.com/signal-golang/siglink/signalerr"
)

// Link runs the linking flow in the background. Progress is reported on
// the event bus: ProvisioningURLReady once the URL can be shown, then
// LinkingCompleted or LinkingFailed, and HistorySyncAvailable when the
// primary offered its message history.
func (c *Client) Link(ctx context.Context, deviceName string) {
	go func() {
		if err := c.link(ctx, deviceName); err != nil {
			log.WithFields(log.Fields{"error": err}).Errorln("[siglink] linking failed")
			c.bus.Emit(events.LinkingFailed{Reason: err.Error()})
		}
	}()
}

func (c *Client) link(ctx context.Context, deviceName string) error {
	if c.IsRegistered() {
		return signalerr.New(signalerr.AlreadyRegistered, "device already linked")
	}
	if deviceName == "" {
		deviceName = c.cfg.DeviceName
	}

	id, err := provisioning.Run(ctx, provisioning.Options{
		URL:       c.cfg.ProvisioningServer,
		UserAgent: c.cfg.UserAgent,
		RootCAs:   c.rootCAs,
		Secrets:   c.secrets,
	}, func(u *url.URL) {
		c.bus.Emit(events.ProvisioningURLReady{URL: u.String()})
	})
	if err != nil {
		return err
	}

	res, err := registration.Complete(ctx, registration.Deps{
		Server:       c.cfg.Server,
		UserAgent:    c.cfg.UserAgent,
		RootCAs:      c.rootCAs,
		Store:        c.store,
		Capabilities: c.cfg.AccountCapabilities,
	}, id, deviceName, registration.GeneratePassword())
	if err != nil {
		return err
	}

	log.Infof("[siglink] linked as device %d of %s", res.DeviceID, res.ACI)
	c.bus.Emit(events.LinkingCompleted{ACI: res.ACI, DeviceID: res.DeviceID})
	if c.secrets.HasBackupKey() {
		c.bus.Emit(events.HistorySyncAvailable{})
	}
	return nil
}

// HistoryAvailable reports whether the last linking captured a backup key
// that SyncHistory can use.
func (c *Client) HistoryAvailable() bool {
	return c.secrets.HasBackupKey()
}

// DiscardHistory drops the backup key captured while linking, for when
// the user does not want the message history.
func (c *Client) DiscardHistory() {
	c.secrets.Clear()
}

// SyncHistory imports the primary's transfer archive in the background.
// The backup key captured while linking is consumed; a second call fails
// with HistorySyncFailed.
func (c *Client) SyncHistory(ctx context.Context) {
	go func() {
		convs, msgs, err := c.syncHistory(ctx)
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Errorln("[siglink-backup] history sync failed")
			c.bus.Emit(events.HistorySyncFailed{Reason: err.Error()})
			return
		}
		c.bus.Emit(events.HistorySyncCompleted{Conversations: convs, Messages: msgs})
	}()
}

func (c *Client) syncHistory(ctx context.Context) (int, int, error) {
	secrets, ok := c.secrets.Take()
	if !ok || !secrets.HasBackupKey() {
		return 0, 0, signalerr.New(signalerr.CryptoError, "no backup key available")
	}
	reg, err := c.Registration()
	if err != nil {
		return 0, 0, err
	}
	f := backup.NewFetcher(c.cfg, c.rootCAs)
	return backup.Sync(ctx, f, reg, secrets.EphemeralBackupKey, c.store, func(stage string, attempt int) {
		c.bus.Emit(events.HistorySyncProgress{Stage: stage, Attempt: attempt})
	})
}
