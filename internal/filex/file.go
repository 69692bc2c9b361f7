// Package filex contains small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnsureDir creates dir (and parents) with owner-only permissions and returns
// its absolute path. Relative paths are resolved against the working directory.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// EnsureParentDir makes sure the directory holding path exists.
func EnsureParentDir(path string) error {
	_, err := EnsureDir(filepath.Dir(path))
	return err
}

// WaitStable polls path until its size and mtime stop changing between two
// checks spaced by interval, or until attempts run out. It is used to avoid
// picking up files that are still being written.
func WaitStable(path string, interval time.Duration, attempts int) (os.FileInfo, error) {
	prev, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	for i := 0; i < attempts; i++ {
		time.Sleep(interval)

		cur, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if cur.Size() == prev.Size() && cur.ModTime().Equal(prev.ModTime()) {
			return cur, nil
		}
		prev = cur
	}

	return nil, fmt.Errorf("%s is still changing", path)
}
