package config

import "time"

// Config holds application configuration settings
type Config struct {
	Server              string              `yaml:"server"`             // The Signal chat server URL
	ProvisioningServer  string              `yaml:"provisioningServer"` // Websocket used while linking
	ChatWebsocket       string              `yaml:"chatWebsocket"`      // Authenticated message websocket
	CDN2                string              `yaml:"cdn2"`
	CDN3                string              `yaml:"cdn3"`
	RootCA              string              `yaml:"rootCA"`     // Extra PEM file trusted next to the pinned roots
	StorageDir          string              `yaml:"storageDir"` // Directory for the persistent storage
	DeviceName          string              `yaml:"deviceName"` // Name shown in the primary's linked devices list
	LogLevel            string              `yaml:"loglevel"`   // Verbosity of the logging messages
	UserAgent           string              `yaml:"userAgent"`  // Override for the default HTTP User Agent header field
	AccountCapabilities AccountCapabilities `yaml:"accountCapabilities"`
	Backup              Backup              `yaml:"backup"`
}

// Backup controls how long history sync waits for the primary's archive.
type Backup struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
	WaitSeconds int           `yaml:"waitSeconds"`
}

const (
	SignalServer                 = "https://chat.signal.org"
	ProvisioningWebsocketURL     = "wss://chat.signal.org/v1/websocket/provisioning/"
	ChatWebsocketURL             = "wss://chat.signal.org/v1/websocket/"
	SIGNAL_CDN2_URL              = "https://cdn2.signal.org"
	SIGNAL_CDN3_URL              = "https://cdn3.signal.org"
	ATTACHMENT_KEY_DOWNLOAD_PATH = "/attachments/%s"
	SignalAgent                  = "Signal-Desktop/7.0.0"
	DefaultUserAgent             = "Signal-Desktop/7.0.0 Linux"
	DefaultDeviceName            = "siglink"
	DefaultStorageDir            = ".storage"
	DefaultLogLevel              = "info"

	DefaultBackupMaxAttempts = 3
	DefaultBackupRetryDelay  = 10 * time.Second
	DefaultBackupWaitSeconds = 300
)

// AccountCapabilities describes what the linked device announces to the server
type AccountCapabilities struct {
	DeleteSync                bool `json:"deleteSync" yaml:"deleteSync"`
	VersionedExpirationTimer  bool `json:"versionedExpirationTimer" yaml:"versionedExpirationTimer"`
	StorageServiceKeyRotation bool `json:"ssre2" yaml:"ssre2"`
}

// DefaultCapabilities are sent when the config file leaves them unset.
var DefaultCapabilities = AccountCapabilities{
	DeleteSync:               true,
	VersionedExpirationTimer: true,
}

// Defaults fills every unset field.
func (c *Config) Defaults() {
	if c.Server == "" {
		c.Server = SignalServer
	}
	if c.ProvisioningServer == "" {
		c.ProvisioningServer = ProvisioningWebsocketURL
	}
	if c.ChatWebsocket == "" {
		c.ChatWebsocket = ChatWebsocketURL
	}
	if c.CDN2 == "" {
		c.CDN2 = SIGNAL_CDN2_URL
	}
	if c.CDN3 == "" {
		c.CDN3 = SIGNAL_CDN3_URL
	}
	if c.StorageDir == "" {
		c.StorageDir = DefaultStorageDir
	}
	if c.DeviceName == "" {
		c.DeviceName = DefaultDeviceName
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.AccountCapabilities == (AccountCapabilities{}) {
		c.AccountCapabilities = DefaultCapabilities
	}
	if c.Backup.MaxAttempts <= 0 {
		c.Backup.MaxAttempts = DefaultBackupMaxAttempts
	}
	if c.Backup.RetryDelay <= 0 {
		c.Backup.RetryDelay = DefaultBackupRetryDelay
	}
	if c.Backup.WaitSeconds <= 0 {
		c.Backup.WaitSeconds = DefaultBackupWaitSeconds
	}
}

var (
	ConfigFile *Config
)
