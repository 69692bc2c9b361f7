package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/offsync/internal/flagx"
)

var knownFlags = []string{"-a", "-r", "-k", "-o", "-s", "-m", "-U", "-P", "-b", "-g", "-e", "-l"}

const mib = 1 << 20

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-r string   gRPC health bind address (empty disables)
//	-k string   storage backend, fs or s3
//	-o string   storage directory for the fs backend
//	-s string   JWT HMAC secret key (empty disables auth)
//	-m int      max upload size, MiB
//	-U string   S3 root user
//	-P string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   log level
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrHTTP, "a", cfg.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&cfg.EndpointAddrGRPC, "r", cfg.EndpointAddrGRPC, "gRPC health address")
	fs.StringVar(&cfg.StorageBackend, "k", cfg.StorageBackend, "storage backend (fs|s3)")
	fs.StringVar(&cfg.StorageDir, "o", cfg.StorageDir, "storage directory")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	maxSize := fs.Int64("m", cfg.MaxUploadSize/mib, "max upload size (in MiB)")

	fs.StringVar(&cfg.S3RootUser, "U", cfg.S3RootUser, "S3 root user")
	fs.StringVar(&cfg.S3RootPassword, "P", cfg.S3RootPassword, "S3 root password")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 root bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 root region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *maxSize != cfg.MaxUploadSize/mib {
		cfg.MaxUploadSize = *maxSize * mib
	}
	return nil
}
