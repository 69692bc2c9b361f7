package files

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

// Repository describes the durable store of staged files.
type Repository interface {
	// Init opens the store, creating it if absent. It is idempotent.
	Init(ctx context.Context) error

	// Close releases the underlying handle.
	Close() error

	// Add stages a new file and returns the stored record. Payloads larger
	// than common.MaxFileSize are rejected with common.ErrSizeExceeded
	// before anything is written.
	Add(ctx context.Context, f models.NewFile) (*models.FileRecord, error)

	// Get returns the record with its payload.
	Get(ctx context.Context, id string) (*models.FileRecord, error)

	// ListAll returns every record, oldest first. Payloads are not loaded.
	ListAll(ctx context.Context) ([]*models.FileRecord, error)

	// ListPending returns records that are not uploaded yet, oldest first.
	// Payloads are not loaded.
	ListPending(ctx context.Context) ([]*models.FileRecord, error)

	// MarkUploaded sets the uploaded flag. The flag never goes back.
	MarkUploaded(ctx context.Context, id string) error

	// IncrementAttempts adds one failed upload attempt.
	IncrementAttempts(ctx context.Context, id string) error

	// Delete removes a record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// ClearUploaded removes every uploaded record and returns how many went.
	ClearUploaded(ctx context.Context) (int64, error)

	// Quota reports local storage usage. Zeros mean the host cannot tell.
	Quota(ctx context.Context) (models.QuotaInfo, error)

	// Stats aggregates counts and sizes over all records.
	Stats(ctx context.Context) (models.StorageStats, error)
}
