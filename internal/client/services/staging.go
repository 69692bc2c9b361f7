package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/gabriel-vasile/mimetype"
)

// FileService stages local files into the record store while keeping the
// total staged payload under a storage budget.
type FileService struct {
	repo   files.Repository
	budget int64
	logger logging.Logger
}

func NewFileService(repo files.Repository, budget int64, logger logging.Logger) *FileService {
	if budget <= 0 {
		budget = common.MaxStorageSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileService{repo: repo, budget: budget, logger: logger.With("module", "staging")}
}

// AddPath reads the file at path and stages it under its base name. Oversized
// files are rejected from their stat size before any bytes are read.
func (s *FileService) AddPath(ctx context.Context, path string) (*models.FileRecord, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if err := files.CheckFileSize(fi.Size()); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return s.AddBytes(ctx, filepath.Base(path), "", data)
}

// AddBytes stages data. An empty mimeType is sniffed from the content.
func (s *FileService) AddBytes(ctx context.Context, name, mimeType string, data []byte) (*models.FileRecord, error) {
	if err := files.CheckFileSize(int64(len(data))); err != nil {
		return nil, err
	}

	st, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if st.TotalBytes+int64(len(data)) > s.budget {
		return nil, fmt.Errorf("%w: %d bytes staged, %d more would pass the %d byte budget",
			common.ErrStorageFull, st.TotalBytes, len(data), s.budget)
	}

	if mimeType == "" {
		mimeType = DetectMimeType(data)
	}

	rec, err := s.repo.Add(ctx, models.NewFile{Name: name, MimeType: mimeType, Payload: data})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file staged", "file_id", rec.ID, "name", rec.Name, "size", rec.SizeBytes, "type", rec.MimeType)
	return rec, nil
}

// DetectMimeType sniffs the media type of data without parameters.
func DetectMimeType(data []byte) string {
	mt, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return mt
}
