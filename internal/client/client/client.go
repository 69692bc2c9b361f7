package client

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

// UploadRequest is one staged file on its way to the endpoint.
type UploadRequest struct {
	Name     string
	MimeType string
	Payload  []byte

	// Checksum is the hex blake2b-256 digest of Payload. It is sent so the
	// endpoint can echo it back in the receipt.
	Checksum string

	// Progress, when set, receives payload bytes sent so far.
	Progress func(sent, total int64)
}

// Client talks to the upload endpoint.
type Client interface {
	// Upload sends one file and returns the endpoint's receipt. Any failure
	// wraps common.ErrUploadFailed.
	Upload(ctx context.Context, req UploadRequest) (*models.UploadReceipt, error)

	// Ping is a lightweight reachability check. Failures wrap ErrUnavailable.
	Ping(ctx context.Context) error
}
