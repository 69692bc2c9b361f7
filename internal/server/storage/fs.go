package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/filex"
)

// FSStore writes objects as files under a root directory. A file only shows
// up under its final name once it has been written completely.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if _, err := filex.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return &FSStore{root: root}, nil
}

// Path returns where key is stored on disk.
func (s *FSStore) Path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *FSStore) Put(ctx context.Context, key, _ string, body io.ReadSeeker, size int64) error {
	dst, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := filex.EnsureParentDir(dst); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", common.ErrStorage, key, err)
	}
	if n != size {
		return fmt.Errorf("%w: write %s: got %d bytes, want %d", common.ErrStorage, key, n, size)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}
