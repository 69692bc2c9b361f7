// Package metadata is a small key/value table next to the staged files. It
// keeps device-wide facts that outlive a session, such as when the last file
// was delivered.
package metadata

import (
	"context"
	"time"
)

// Keys used by the client.
const (
	KeyUploadsTotal = "uploads_total"
	KeyLastUploadAt = "last_upload_at"
)

type Repository interface {
	// RecordUpload bumps the lifetime upload counter and stamps at.
	RecordUpload(ctx context.Context, at time.Time) error
	// LastUpload returns the stamp and counter written by RecordUpload. A
	// device that never uploaded gets the zero time and 0.
	LastUpload(ctx context.Context) (time.Time, int64, error)
}
