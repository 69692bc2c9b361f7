// Package models defines client-side data models used by the offsync client.
package models

import "time"

// NewFile is what a caller hands to the record store when staging a capture.
type NewFile struct {
	Name     string
	MimeType string
	Payload  []byte
}

// SizeBytes is the payload length that the size limit is checked against.
func (f NewFile) SizeBytes() int64 {
	return int64(len(f.Payload))
}

// FileRecord is a staged file persisted in the local store.
type FileRecord struct {
	// ID is a random UUID assigned when the record is created.
	ID string

	Name      string
	SizeBytes int64
	MimeType  string

	// Payload is the raw file content owned by this record.
	Payload []byte

	CreatedAt time.Time

	// Uploaded only ever goes from false to true.
	Uploaded bool

	// UploadAttempts counts failed upload attempts.
	UploadAttempts int
}

// Abandoned reports whether the record has used up its retry budget and is
// no longer picked up by the upload queue.
func (r *FileRecord) Abandoned(maxRetries int) bool {
	return !r.Uploaded && r.UploadAttempts >= maxRetries
}
