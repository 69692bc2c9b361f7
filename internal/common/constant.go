// Package common contains shared constants and sentinel errors used across
// offsync components.
package common

import "time"

const (
	// MaxFileSize is the largest payload a single staged file may carry.
	MaxFileSize int64 = 200 * 1024 * 1024

	// MaxStorageSize is the soft budget for all staged payloads on a device.
	MaxStorageSize int64 = 2 * 1024 * 1024 * 1024

	// MaxRetries is the number of failed attempts after which a file is no
	// longer picked up by the upload queue.
	MaxRetries = 3

	// ProbeInterval is how often the network monitor checks reachability.
	ProbeInterval = 3 * time.Second

	// ProbeTimeout bounds a single reachability request.
	ProbeTimeout = 3 * time.Second
)

// AuthorizationHeaderName carries the bearer token on upload requests.
const AuthorizationHeaderName = "Authorization"

// ChecksumHeaderName carries the hex blake2b-256 digest of the uploaded payload.
const ChecksumHeaderName = "X-Content-Blake2b"
