package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/offsync/internal/flagx"
)

var knownFlags = []string{"-u", "-p", "-g", "-i", "-t", "-d", "-w", "-s", "-n", "-l"}

// parseFlags overlays Config with command-line flags.
//
//	-u string   upload endpoint URL
//	-p string   probe URL
//	-g string   gRPC health address (empty uses the probe URL)
//	-i int      online check interval in seconds
//	-t int      probe timeout in seconds
//	-d string   database path
//	-w string   inbox directory (empty disables)
//	-s string   shared secret for request tokens (empty disables)
//	-n string   device id
//	-l string   log level
//
// Only the flags above are looked at; everything else in args is ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.UploadURL, "u", cfg.UploadURL, "upload endpoint URL")
	fs.StringVar(&cfg.ProbeURL, "p", cfg.ProbeURL, "probe URL")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "gRPC health address")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	timeout := fs.Int("t", int(cfg.ProbeTimeout.Seconds()), "probe timeout (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "database path")
	fs.StringVar(&cfg.InboxDir, "w", cfg.InboxDir, "inbox directory")
	fs.StringVar(&cfg.AuthSecret, "s", cfg.AuthSecret, "shared secret for request tokens")
	fs.StringVar(&cfg.DeviceID, "n", cfg.DeviceID, "device id")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
	cfg.ProbeTimeout = time.Duration(*timeout) * time.Second
	return nil
}
