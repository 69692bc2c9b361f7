package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
)

// Config holds runtime settings for the offsync client.
//
// Fields:
//   - UploadURL: where staged files are POSTed.
//   - ProbeURL: cheap resource HEAD-requested to check reachability.
//   - HealthAddr: optional gRPC health endpoint used instead of ProbeURL.
//   - OnlineCheckInterval / ProbeTimeout: probe cadence and bound.
//   - DatabasePath: SQLite file holding staged files.
//   - InboxDir: optional directory whose new files are staged automatically.
//   - AuthSecret / DeviceID: optional shared secret for signing requests and
//     the device name put into the token.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	UploadURL           string
	ProbeURL            string
	HealthAddr          string
	OnlineCheckInterval time.Duration
	ProbeTimeout        time.Duration
	DatabasePath        string
	InboxDir            string
	AuthSecret          string
	DeviceID            string
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.UploadURL = "http://127.0.0.1:8080/api/upload"
	c.ProbeURL = "http://127.0.0.1:8080/favicon.ico"
	c.HealthAddr = ""
	c.OnlineCheckInterval = common.ProbeInterval
	c.ProbeTimeout = common.ProbeTimeout
	c.DatabasePath = "files.db"
	c.InboxDir = ""
	c.AuthSecret = ""
	c.DeviceID = ""
	c.LogLevel = "info"
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config (if any), then command-line flags. Later sources win. An empty
// DeviceID falls back to the hostname.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if cfg.DeviceID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.DeviceID = host
		}
	}
	return cfg, nil
}
