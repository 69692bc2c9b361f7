// Package storage holds the blob backends accepted uploads are written to.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys that are empty, absolute or escape the
// store root.
var ErrInvalidKey = errors.New("invalid object key")

// BlobStore persists one object per key. Body must yield exactly size bytes;
// it is seekable so backends that sign payloads can rewind it.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.ReadSeeker, size int64) error
}

// cleanKey normalises key to a slash separated relative path.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	k := path.Clean(key)
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", ErrInvalidKey
	}
	return k, nil
}
