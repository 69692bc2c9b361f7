package files

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	r := NewSQLiteRepository(filepath.Join(t.TempDir(), "files.db"))
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Init(context.Background()))
	return r
}

func TestCheckFileSize(t *testing.T) {
	require.NoError(t, CheckFileSize(0))
	require.NoError(t, CheckFileSize(common.MaxFileSize))

	err := CheckFileSize(common.MaxFileSize + 1)
	require.ErrorIs(t, err, common.ErrSizeExceeded)
	assert.Contains(t, err.Error(), "200 MiB")
}

func TestAdd_ReturnsFreshRecord(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	fixed := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	r.now = func() time.Time { return fixed }

	rec, err := r.Add(ctx, models.NewFile{Name: "a.jpg", MimeType: "image/jpeg", Payload: make([]byte, 1_000_000)})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "a.jpg", rec.Name)
	assert.Equal(t, int64(1_000_000), rec.SizeBytes)
	assert.False(t, rec.Uploaded)
	assert.Equal(t, 0, rec.UploadAttempts)
	assert.Equal(t, fixed.Truncate(time.Millisecond), rec.CreatedAt)

	got, err := r.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestAdd_UniqueIDs(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec, err := r.Add(ctx, models.NewFile{Name: "x.png", Payload: []byte{byte(i)}})
		require.NoError(t, err)
		require.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
		seen[rec.ID] = true
	}
}

func TestAdd_SizeExceeded_NothingStored(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Add(ctx, models.NewFile{Name: "big.mp4", Payload: make([]byte, 300_000_000)})
	require.ErrorIs(t, err, common.ErrSizeExceeded)

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAdd_IDGeneratorFailure(t *testing.T) {
	r := newRepo(t)
	r.newID = func() (string, error) { return "", errors.New("no entropy") }

	_, err := r.Add(context.Background(), models.NewFile{Name: "a.jpg", Payload: []byte("x")})
	require.Error(t, err)
}

func TestListPending_ReflectsMarkUploaded(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	rec, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: []byte("abc")})
	require.NoError(t, err)

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rec.ID, pending[0].ID)
	assert.Nil(t, pending[0].Payload)

	require.NoError(t, r.MarkUploaded(ctx, rec.ID))

	pending, err = r.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := r.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Uploaded)
}

func TestListAll_OrderedByCreation(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		r.now = func() time.Time { return ts }
		rec, err := r.Add(ctx, models.NewFile{Name: "f", Payload: []byte("x")})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, rec := range all {
		assert.Equal(t, ids[i], rec.ID)
	}
}

func TestMarkUploaded_NotFound(t *testing.T) {
	r := newRepo(t)
	err := r.MarkUploaded(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestIncrementAttempts(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	rec, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: []byte("x")})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.IncrementAttempts(ctx, rec.ID))
	}

	got, err := r.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UploadAttempts)
	assert.False(t, got.Uploaded)

	require.ErrorIs(t, r.IncrementAttempts(ctx, "missing"), common.ErrNotFound)
}

func TestConcurrentMutationsOnSameRecord(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	rec, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: []byte("x")})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.IncrementAttempts(ctx, rec.ID))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, r.MarkUploaded(ctx, rec.ID))
		}()
	}
	wg.Wait()

	got, err := r.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Uploaded)
	assert.Equal(t, n, got.UploadAttempts)
}

func TestDelete_Idempotent(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	rec, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, rec.ID))
	require.NoError(t, r.Delete(ctx, rec.ID))

	_, err = r.Get(ctx, rec.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestClearUploaded(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	a, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: []byte("a")})
	require.NoError(t, err)
	b, err := r.Add(ctx, models.NewFile{Name: "b.jpg", Payload: []byte("b")})
	require.NoError(t, err)
	c, err := r.Add(ctx, models.NewFile{Name: "c.jpg", Payload: []byte("c")})
	require.NoError(t, err)

	require.NoError(t, r.MarkUploaded(ctx, a.ID))
	require.NoError(t, r.MarkUploaded(ctx, c.ID))

	n, err := r.ClearUploaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = r.ClearUploaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestStats(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	st, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StorageStats{}, st)

	a, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: make([]byte, 10)})
	require.NoError(t, err)
	_, err = r.Add(ctx, models.NewFile{Name: "b.jpg", Payload: make([]byte, 5)})
	require.NoError(t, err)
	require.NoError(t, r.MarkUploaded(ctx, a.ID))

	st, err = r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StorageStats{TotalFiles: 2, TotalBytes: 15, PendingCount: 1, UploadedCount: 1}, st)
}

func TestQuota_File(t *testing.T) {
	r := newRepo(t)
	r.freeDisk = func(string) (int64, error) { return 1 << 20, nil }

	q, err := r.Quota(context.Background())
	require.NoError(t, err)
	assert.Positive(t, q.UsageBytes)
	assert.Equal(t, q.UsageBytes+1<<20, q.QuotaBytes)
	assert.Equal(t, int64(1<<20), q.AvailableBytes)
}

func TestQuota_CappedByBudget(t *testing.T) {
	r := newRepo(t)
	r.freeDisk = func(string) (int64, error) { return 1 << 40, nil }

	q, err := r.Quota(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.MaxStorageSize, q.QuotaBytes)
	assert.Equal(t, common.MaxStorageSize-q.UsageBytes, q.AvailableBytes)
}

func TestQuota_HostUnavailable(t *testing.T) {
	r := newRepo(t)
	r.freeDisk = func(string) (int64, error) { return 0, errors.New("unsupported") }

	q, err := r.Quota(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.QuotaInfo{}, q)
}

func TestQuota_InMemory(t *testing.T) {
	r := NewSQLiteRepository(":memory:")
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	_, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: make([]byte, 100)})
	require.NoError(t, err)

	q, err := r.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), q.UsageBytes)
	assert.Equal(t, common.MaxStorageSize, q.QuotaBytes)
	assert.Equal(t, common.MaxStorageSize-100, q.AvailableBytes)
}

func TestDBPath(t *testing.T) {
	assert.Equal(t, "", dbPath(":memory:"))
	assert.Equal(t, "", dbPath("file:x?mode=memory&cache=shared"))
	assert.Equal(t, "data/files.db", dbPath("data/files.db"))
	assert.Equal(t, "/tmp/f.db", dbPath("file:/tmp/f.db?_pragma=foreign_keys(1)"))
}

func TestInit_SharedAcrossConcurrentCallers(t *testing.T) {
	r := NewSQLiteRepository(filepath.Join(t.TempDir(), "files.db"))
	t.Cleanup(func() { _ = r.Close() })

	var opens atomic.Int32
	release := make(chan struct{})
	r.open = func(ctx context.Context, dsn string) (*sql.DB, error) {
		opens.Add(1)
		<-release
		return client.InitDatabase(ctx, dsn)
	}

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Init(context.Background())
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), opens.Load())

	require.NoError(t, r.Init(context.Background()))
	assert.Equal(t, int32(1), opens.Load())
}

func TestInit_OpenFailureIsStorageError(t *testing.T) {
	r := NewSQLiteRepository("unused")
	r.open = func(context.Context, string) (*sql.DB, error) { return nil, errors.New("disk on fire") }

	err := r.Init(context.Background())
	require.ErrorIs(t, err, common.ErrStorage)

	_, err = r.ListAll(context.Background())
	require.ErrorIs(t, err, common.ErrStorage)
}

func TestClose_ThenReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "files.db")
	r := NewSQLiteRepository(dsn)
	ctx := context.Background()

	rec, err := r.Add(ctx, models.NewFile{Name: "a.jpg", Payload: []byte("abc")})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	got, err := r.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got.Payload)
	require.NoError(t, r.Close())
}

func TestRepositoryInterface(t *testing.T) {
	var _ Repository = (*SQLiteRepository)(nil)
}

func TestDB_ReturnsSharedHandle(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	a, err := r.DB(ctx)
	require.NoError(t, err)
	b, err := r.DB(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)

	var n int
	require.NoError(t, a.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata`).Scan(&n))
	assert.Zero(t, n)
}
