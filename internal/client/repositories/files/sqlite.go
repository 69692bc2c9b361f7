package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"golang.org/x/sync/singleflight"
)

// SQLiteRepository is the SQLite-backed Repository.
type SQLiteRepository struct {
	dsn string

	mu    sync.RWMutex
	db    *sql.DB
	group singleflight.Group

	open     func(ctx context.Context, dsn string) (*sql.DB, error)
	now      func() time.Time
	newID    func() (string, error)
	freeDisk func(path string) (int64, error)
}

// NewSQLiteRepository returns a repository for the database at dsn. Nothing
// is opened until the first call.
func NewSQLiteRepository(dsn string) *SQLiteRepository {
	return &SQLiteRepository{
		dsn:      dsn,
		open:     client.InitDatabase,
		now:      time.Now,
		newID:    newRecordID,
		freeDisk: hostFreeBytes,
	}
}

// CheckFileSize rejects sizes above common.MaxFileSize.
func CheckFileSize(size int64) error {
	if size > common.MaxFileSize {
		return fmt.Errorf("%w: %d bytes, limit is %d bytes (%d MiB)",
			common.ErrSizeExceeded, size, common.MaxFileSize, common.MaxFileSize>>20)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStorage, op, err)
}

func (r *SQLiteRepository) Init(ctx context.Context) error {
	_, err := r.conn(ctx)
	return err
}

// DB returns the store's shared handle, opening it on first use. Other
// tables in the same file are accessed through it.
func (r *SQLiteRepository) DB(ctx context.Context) (*sql.DB, error) {
	return r.conn(ctx)
}

// conn returns the shared handle, opening it once for all concurrent callers.
// The open itself is detached from ctx so that one caller giving up does not
// fail the others waiting on it.
func (r *SQLiteRepository) conn(ctx context.Context) (*sql.DB, error) {
	r.mu.RLock()
	db := r.db
	r.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	v, err, _ := r.group.Do("init", func() (any, error) {
		r.mu.RLock()
		db := r.db
		r.mu.RUnlock()
		if db != nil {
			return db, nil
		}

		db, err := r.open(context.WithoutCancel(ctx), r.dsn)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.db = db
		r.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, storageErr("open "+r.dsn, err)
	}
	return v.(*sql.DB), nil
}

func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *SQLiteRepository) Add(ctx context.Context, f models.NewFile) (*models.FileRecord, error) {
	size := f.SizeBytes()
	if err := CheckFileSize(size); err != nil {
		return nil, err
	}

	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	payload := f.Payload
	if payload == nil {
		payload = []byte{}
	}

	rec := &models.FileRecord{
		ID:        id,
		Name:      f.Name,
		SizeBytes: size,
		MimeType:  f.MimeType,
		Payload:   payload,
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
	}

	query := `INSERT INTO files (id, name, size_bytes, mime_type, payload, created_at, uploaded, upload_attempts)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0)`
	_, err = db.ExecContext(ctx, query, rec.ID, rec.Name, rec.SizeBytes, rec.MimeType, rec.Payload, rec.CreatedAt.UnixMilli())
	if err != nil {
		return nil, storageErr("insert file", err)
	}

	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, withPayload bool) (*models.FileRecord, error) {
	var (
		rec       models.FileRecord
		createdAt int64
		uploaded  int
	)

	dest := []any{&rec.ID, &rec.Name, &rec.SizeBytes, &rec.MimeType, &createdAt, &uploaded, &rec.UploadAttempts}
	if withPayload {
		dest = append(dest, &rec.Payload)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.Uploaded = uploaded != 0
	return &rec, nil
}

const recordColumns = `id, name, size_bytes, mime_type, created_at, uploaded, upload_attempts`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + `, payload FROM files WHERE id = ?`
	rec, err := scanRecord(db.QueryRowContext(ctx, query, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, storageErr("select file", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) list(ctx context.Context, where string) ([]*models.FileRecord, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM files` + where + ` ORDER BY created_at, id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("select files", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, storageErr("scan file", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate files", err)
	}

	return result, nil
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]*models.FileRecord, error) {
	return r.list(ctx, "")
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.FileRecord, error) {
	return r.list(ctx, " WHERE uploaded = 0")
}

// updateOne runs a single-statement mutation against one id. Each update is
// one atomic statement, so concurrent updates to the same record cannot
// overwrite each other.
func (r *SQLiteRepository) updateOne(ctx context.Context, op, query, id string) error {
	db, err := r.conn(ctx)
	if err != nil {
		return err
	}

	err = dbx.ExecOne(ctx, db, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: file %s", common.ErrNotFound, id)
	}
	if err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkUploaded(ctx context.Context, id string) error {
	return r.updateOne(ctx, "mark uploaded", `UPDATE files SET uploaded = 1 WHERE id = ?`, id)
}

func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, id string) error {
	return r.updateOne(ctx, "increment attempts", `UPDATE files SET upload_attempts = upload_attempts + 1 WHERE id = ?`, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	db, err := r.conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return storageErr("delete file", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearUploaded(ctx context.Context) (int64, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM files WHERE uploaded = 1`)
	if err != nil {
		return 0, storageErr("clear uploaded", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("clear uploaded", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Stats(ctx context.Context) (models.StorageStats, error) {
	var st models.StorageStats

	db, err := r.conn(ctx)
	if err != nil {
		return st, err
	}

	query := `SELECT
			COUNT(*),
			COALESCE(SUM(size_bytes), 0),
			COALESCE(SUM(CASE WHEN uploaded = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(uploaded), 0)
		FROM files`
	err = db.QueryRowContext(ctx, query).Scan(&st.TotalFiles, &st.TotalBytes, &st.PendingCount, &st.UploadedCount)
	if err != nil {
		return models.StorageStats{}, storageErr("stats", err)
	}
	return st, nil
}

// dbPath extracts the file path from a SQLite DSN. It returns "" for
// in-memory databases.
func dbPath(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	return path
}

// Quota is best-effort: usage is what the database occupies on disk, and the
// quota is the smaller of common.MaxStorageSize and usage plus the free space
// left on the host filesystem. Anything the host refuses to report yields
// zeros rather than an error.
func (r *SQLiteRepository) Quota(ctx context.Context) (models.QuotaInfo, error) {
	path := dbPath(r.dsn)
	if path == "" {
		st, err := r.Stats(ctx)
		if err != nil {
			return models.QuotaInfo{}, err
		}
		return quotaInfo(st.TotalBytes, common.MaxStorageSize), nil
	}

	if _, err := r.conn(ctx); err != nil {
		return models.QuotaInfo{}, err
	}

	var usage int64
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if fi, err := os.Stat(p); err == nil {
			usage += fi.Size()
		}
	}

	free, err := r.freeDisk(filepath.Dir(path))
	if err != nil {
		return models.QuotaInfo{}, nil
	}

	return quotaInfo(usage, usage+free), nil
}

func quotaInfo(usage, hostQuota int64) models.QuotaInfo {
	quota := min(hostQuota, common.MaxStorageSize)
	return models.QuotaInfo{
		UsageBytes:     usage,
		QuotaBytes:     quota,
		AvailableBytes: max(quota-usage, 0),
	}
}
