package common

import "errors"

var (
	// Record store errors.
	ErrNotFound     = errors.New("not found")
	ErrSizeExceeded = errors.New("file size exceeds limit")
	ErrStorageFull  = errors.New("storage budget exhausted")
	ErrStorage      = errors.New("storage backend failure")

	// Upload errors. Every transport or endpoint failure collapses into
	// ErrUploadFailed; callers only ever retry later.
	ErrUploadFailed = errors.New("upload failed")
	ErrOffline      = errors.New("offline")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
)
