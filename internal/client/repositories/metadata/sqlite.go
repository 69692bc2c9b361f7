package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/offsync/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// get returns (nil, nil) when key is absent.
func get(ctx context.Context, db dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func set(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func getInt(ctx context.Context, db dbx.DBTX, key string) (int64, error) {
	v, err := get(ctx, db, key)
	if err != nil || v == nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata[%s] is not an integer: %w", key, err)
	}
	return n, nil
}

func (r *SQLiteRepository) RecordUpload(ctx context.Context, at time.Time) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := getInt(ctx, tx, KeyUploadsTotal)
		if err != nil {
			return err
		}
		if err := set(ctx, tx, KeyUploadsTotal, []byte(strconv.FormatInt(n+1, 10))); err != nil {
			return err
		}
		return set(ctx, tx, KeyLastUploadAt, []byte(strconv.FormatInt(at.UnixMilli(), 10)))
	})
}

func (r *SQLiteRepository) LastUpload(ctx context.Context) (time.Time, int64, error) {
	n, err := getInt(ctx, r.db, KeyUploadsTotal)
	if err != nil {
		return time.Time{}, 0, err
	}
	ms, err := getInt(ctx, r.db, KeyLastUploadAt)
	if err != nil {
		return time.Time{}, 0, err
	}
	if ms == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMilli(ms), n, nil
}
