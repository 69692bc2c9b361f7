package config

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/offsync/internal/common"
)

// Storage backends understood by StorageBackend.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config holds runtime settings for the upload server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the upload API.
//   - EndpointAddrGRPC: bind address for the gRPC health service; empty disables it.
//   - StorageBackend / StorageDir: where accepted files go ("fs" writes under StorageDir).
//   - SecretKey: HMAC secret for verifying request tokens (HS256); empty disables auth.
//   - MaxUploadSize: largest accepted file in bytes.
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	EndpointAddrHTTP string
	EndpointAddrGRPC string
	StorageBackend   string
	StorageDir       string
	SecretKey        string
	MaxUploadSize    int64
	S3RootUser       string
	S3RootPassword   string
	S3Bucket         string
	S3Region         string
	S3BaseEndpoint   string
	LogLevel         string
}

// LoadDefaults populates Config with development defaults.
// NOTE: The S3 credentials are only good for a local MinIO.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.StorageBackend = BackendFS
	c.StorageDir = "uploads"
	c.SecretKey = ""
	c.MaxUploadSize = common.MaxFileSize
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "uploads"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendFS, BackendS3:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadSize)
	}
	return nil
}
