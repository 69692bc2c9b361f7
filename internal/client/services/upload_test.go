package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls  atomic.Int32
	upload func(ctx context.Context, req client.UploadRequest) (*models.UploadReceipt, error)
}

func (f *fakeClient) Upload(ctx context.Context, req client.UploadRequest) (*models.UploadReceipt, error) {
	f.calls.Add(1)
	return f.upload(ctx, req)
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func okReceipt(req client.UploadRequest) *models.UploadReceipt {
	ok, size := true, int64(len(req.Payload))
	return &models.UploadReceipt{
		Success:  &ok,
		Filename: req.Name,
		Size:     &size,
		Type:     req.MimeType,
		Checksum: req.Checksum,
	}
}

func alwaysOK(_ context.Context, req client.UploadRequest) (*models.UploadReceipt, error) {
	return okReceipt(req), nil
}

func always500(context.Context, client.UploadRequest) (*models.UploadReceipt, error) {
	return nil, errors.Join(common.ErrUploadFailed, errors.New("500 Internal Server Error"))
}

type fakeNet struct {
	online    atomic.Bool
	mu        sync.Mutex
	listeners []func(bool)
}

func newFakeNet(online bool) *fakeNet {
	n := &fakeNet{}
	n.online.Store(online)
	return n
}

func (n *fakeNet) Online() bool { return n.online.Load() }

func (n *fakeNet) OnChange(fn func(bool)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

func (n *fakeNet) flip(v bool) {
	n.online.Store(v)
	n.mu.Lock()
	ls := append([]func(bool){}, n.listeners...)
	n.mu.Unlock()
	for _, fn := range ls {
		fn(v)
	}
}

func newStore(t *testing.T) *files.SQLiteRepository {
	t.Helper()
	r := files.NewSQLiteRepository(filepath.Join(t.TempDir(), "files.db"))
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Init(context.Background()))
	return r
}

func addFile(t *testing.T, r files.Repository, name string, size int) *models.FileRecord {
	t.Helper()
	rec, err := r.Add(context.Background(), models.NewFile{Name: name, MimeType: "image/jpeg", Payload: make([]byte, size)})
	require.NoError(t, err)
	return rec
}

func get(t *testing.T, r files.Repository, id string) *models.FileRecord {
	t.Helper()
	rec, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestProcessQueue_UploadsPendingFile(t *testing.T) {
	ctx := context.Background()
	repo := newStore(t)
	rec := addFile(t, repo, "a.jpg", 1_000_000)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	fc := &fakeClient{upload: alwaysOK}
	svc := NewUploadService(repo, fc, newFakeNet(true))

	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Ran: true, Uploaded: 1}, res)

	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.True(t, get(t, repo, rec.ID).Uploaded)

	p, ok := svc.GetProgress(rec.ID)
	require.True(t, ok)
	assert.Equal(t, models.UploadProgress{FileID: rec.ID, Progress: 100, Status: models.UploadStatusSuccess}, p)
	assert.Equal(t, int64(1), svc.Completed())
}

func TestProcessQueue_RetryBound(t *testing.T) {
	ctx := context.Background()
	repo := newStore(t)
	rec := addFile(t, repo, "f.jpg", 10)

	fc := &fakeClient{upload: always500}
	svc := NewUploadService(repo, fc, newFakeNet(true))

	for i := 1; i <= common.MaxRetries; i++ {
		res, err := svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, i, get(t, repo, rec.ID).UploadAttempts)
	}

	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Ran: true, Abandoned: 1}, res)

	got := get(t, repo, rec.ID)
	assert.Equal(t, common.MaxRetries, got.UploadAttempts)
	assert.False(t, got.Uploaded)
	assert.Equal(t, int32(common.MaxRetries), fc.calls.Load())

	p, ok := svc.GetProgress(rec.ID)
	require.True(t, ok)
	assert.Equal(t, models.UploadStatusError, p.Status)
	assert.Equal(t, "upload failed", p.Error)
	assert.Equal(t, int64(common.MaxRetries+1), svc.Completed())
}

func TestProcessQueue_AlternatingOutcomes(t *testing.T) {
	ctx := context.Background()
	repo := newStore(t)

	first, err := repo.Add(ctx, models.NewFile{Name: "1.jpg", Payload: []byte("one")})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := repo.Add(ctx, models.NewFile{Name: "2.jpg", Payload: []byte("two")})
	require.NoError(t, err)

	var n atomic.Int32
	fc := &fakeClient{upload: func(ctx context.Context, req client.UploadRequest) (*models.UploadReceipt, error) {
		if n.Add(1)%2 == 1 {
			return okReceipt(req), nil
		}
		return always500(ctx, req)
	}}
	svc := NewUploadService(repo, fc, newFakeNet(true))

	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Ran: true, Uploaded: 1, Failed: 1}, res)

	a := get(t, repo, first.ID)
	assert.True(t, a.Uploaded)
	assert.Equal(t, 0, a.UploadAttempts)

	b := get(t, repo, second.ID)
	assert.False(t, b.Uploaded)
	assert.Equal(t, 1, b.UploadAttempts)

	assert.Equal(t, models.UploadStats{Total: 2, Success: 1, Error: 1}, svc.Stats())
}

func TestTriggerUpload_OfflineTouchesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newStore(t)
	rec := addFile(t, repo, "a.jpg", 10)

	fc := &fakeClient{upload: alwaysOK}
	svc := NewUploadService(repo, fc, newFakeNet(false))

	res, err := svc.TriggerUpload(ctx)
	require.ErrorIs(t, err, common.ErrOffline)
	assert.False(t, res.Ran)

	assert.Equal(t, int32(0), fc.calls.Load())
	got := get(t, repo, rec.ID)
	assert.False(t, got.Uploaded)
	assert.Equal(t, 0, got.UploadAttempts)
	assert.Empty(t, svc.Progress())
	assert.Equal(t, int64(0), svc.Completed())
}

func TestTriggerUpload_OnlineDrains(t *testing.T) {
	repo := newStore(t)
	addFile(t, repo, "a.jpg", 10)

	svc := NewUploadService(repo, &fakeClient{upload: alwaysOK}, newFakeNet(true))
	res, err := svc.TriggerUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
}

func TestProcessQueue_OfflineIsNoop(t *testing.T) {
	repo := newStore(t)
	addFile(t, repo, "a.jpg", 10)

	fc := &fakeClient{upload: alwaysOK}
	svc := NewUploadService(repo, fc, newFakeNet(false))

	res, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Ran)
	assert.Equal(t, int32(0), fc.calls.Load())
	assert.Equal(t, int64(0), svc.Completed())
}

func TestProcessQueue_SingleFlight(t *testing.T) {
	ctx := context.Background()
	repo := newStore(t)
	addFile(t, repo, "a.jpg", 10)

	entered := make(chan struct{})
	release := make(chan struct{})
	fc := &fakeClient{upload: func(_ context.Context, req client.UploadRequest) (*models.UploadReceipt, error) {
		close(entered)
		<-release
		return okReceipt(req), nil
	}}
	svc := NewUploadService(repo, fc, newFakeNet(true))

	done := make(chan PassResult)
	go func() {
		res, _ := svc.ProcessQueue(ctx)
		done <- res
	}()

	<-entered
	assert.True(t, svc.Busy())

	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.False(t, res.Ran)

	close(release)
	first := <-done
	assert.True(t, first.Ran)
	assert.Equal(t, 1, first.Uploaded)
	assert.Equal(t, int32(1), fc.calls.Load())
	assert.False(t, svc.Busy())
	assert.Equal(t, int64(1), svc.Completed())
}

func TestProcessQueue_StopsStartingFilesWhenOffline(t *testing.T) {
	ctx := context.Background()
	repo := newStore(t)
	first := addFile(t, repo, "1.jpg", 10)
	time.Sleep(2 * time.Millisecond)
	second := addFile(t, repo, "2.jpg", 10)

	net := newFakeNet(true)
	fc := &fakeClient{upload: func(_ context.Context, req client.UploadRequest) (*models.UploadReceipt, error) {
		net.online.Store(false)
		return okReceipt(req), nil
	}}
	svc := NewUploadService(repo, fc, net)

	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
	assert.Equal(t, int32(1), fc.calls.Load())
	assert.True(t, get(t, repo, first.ID).Uploaded)
	assert.False(t, get(t, repo, second.ID).Uploaded)
}

func TestUploadOne_ReceiptMismatch(t *testing.T) {
	tests := []struct {
		name    string
		receipt func(req client.UploadRequest) *models.UploadReceipt
	}{
		{name: "size", receipt: func(req client.UploadRequest) *models.UploadReceipt {
			r := okReceipt(req)
			*r.Size++
			return r
		}},
		{name: "checksum", receipt: func(req client.UploadRequest) *models.UploadReceipt {
			r := okReceipt(req)
			r.Checksum = "deadbeef"
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{upload: func(_ context.Context, req client.UploadRequest) (*models.UploadReceipt, error) {
				return tt.receipt(req), nil
			}}
			svc := NewUploadService(nil, fc, newFakeNet(true))

			err := svc.UploadOne(context.Background(), &models.FileRecord{ID: "x", Name: "a.jpg", SizeBytes: 3, Payload: []byte("abc")})
			require.ErrorIs(t, err, common.ErrUploadFailed)
		})
	}
}

func TestUploadOne_BareReceiptIsSuccess(t *testing.T) {
	fc := &fakeClient{upload: func(context.Context, client.UploadRequest) (*models.UploadReceipt, error) {
		return &models.UploadReceipt{}, nil
	}}
	svc := NewUploadService(nil, fc, newFakeNet(true))

	err := svc.UploadOne(context.Background(), &models.FileRecord{ID: "x", Name: "a.jpg", SizeBytes: 3, Payload: []byte("abc")})
	require.NoError(t, err)
}

func TestProcessQueue_MinimalEndpointReply(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer ts.Close()

	ctx := context.Background()
	repo := newStore(t)
	rec := addFile(t, repo, "a.jpg", 2048)
	svc := NewUploadService(repo, client.NewHTTPClient(ts.URL, ts.URL), newFakeNet(true))

	res, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Ran: true, Uploaded: 1}, res)
	assert.Equal(t, int32(1), hits.Load())

	got := get(t, repo, rec.ID)
	assert.True(t, got.Uploaded)
	assert.Zero(t, got.UploadAttempts)
}

func TestUploadOne_WrapsTransportErrors(t *testing.T) {
	fc := &fakeClient{upload: func(context.Context, client.UploadRequest) (*models.UploadReceipt, error) {
		return nil, context.DeadlineExceeded
	}}
	svc := NewUploadService(nil, fc, newFakeNet(true))

	err := svc.UploadOne(context.Background(), &models.FileRecord{ID: "x", Payload: []byte("a"), SizeBytes: 1})
	require.ErrorIs(t, err, common.ErrUploadFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessQueue_ByteProgress(t *testing.T) {
	repo := newStore(t)
	rec := addFile(t, repo, "a.jpg", 100)

	var svc *UploadService
	var mid models.UploadProgress
	fc := &fakeClient{upload: func(_ context.Context, req client.UploadRequest) (*models.UploadReceipt, error) {
		req.Progress(50, 100)
		mid, _ = svc.GetProgress(rec.ID)
		req.Progress(100, 100)
		return okReceipt(req), nil
	}}
	svc = NewUploadService(repo, fc, newFakeNet(true))

	var seen []models.UploadProgress
	var mu sync.Mutex
	unsubscribe := svc.Subscribe(func(p models.UploadProgress) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	})
	defer unsubscribe()

	_, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.UploadStatusUploading, mid.Status)
	assert.Equal(t, 49, mid.Progress)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, models.UploadStatusPending, seen[0].Status)
	last := seen[len(seen)-1]
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, models.UploadStatusSuccess, last.Status)
	for _, p := range seen {
		if p.Status == models.UploadStatusUploading {
			assert.LessOrEqual(t, p.Progress, 99)
		}
	}
}

func TestProgress_ClearDoesNotTouchStore(t *testing.T) {
	repo := newStore(t)
	rec := addFile(t, repo, "a.jpg", 10)
	svc := NewUploadService(repo, &fakeClient{upload: alwaysOK}, newFakeNet(true))

	_, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, svc.Progress(), 1)

	svc.ClearProgress()
	assert.Empty(t, svc.Progress())
	_, ok := svc.GetProgress(rec.ID)
	assert.False(t, ok)
	assert.True(t, get(t, repo, rec.ID).Uploaded)
}

func TestPasses_DeliversLatestCount(t *testing.T) {
	repo := newStore(t)
	svc := NewUploadService(repo, &fakeClient{upload: alwaysOK}, newFakeNet(true))

	for i := 0; i < 3; i++ {
		_, err := svc.ProcessQueue(context.Background())
		require.NoError(t, err)
	}

	select {
	case n := <-svc.Passes():
		assert.Equal(t, int64(3), n)
	default:
		t.Fatal("no pass notification")
	}
}

func TestWatch_DrainsOnOnlineTransition(t *testing.T) {
	repo := newStore(t)
	rec := addFile(t, repo, "a.jpg", 10)

	net := newFakeNet(false)
	fc := &fakeClient{upload: alwaysOK}
	svc := NewUploadService(repo, fc, net)
	svc.Watch(context.Background(), net)

	net.flip(false)
	svc.Wait()
	assert.Equal(t, int32(0), fc.calls.Load())

	net.flip(true)
	svc.Wait()
	assert.Equal(t, int32(1), fc.calls.Load())
	assert.True(t, get(t, repo, rec.ID).Uploaded)
}

// flakyRepo lets tests inject store failures around a real repository.
type flakyRepo struct {
	files.Repository
	listErr error
	getErr  map[string]error
	markErr error
}

func (f *flakyRepo) ListPending(ctx context.Context) ([]*models.FileRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.ListPending(ctx)
}

func (f *flakyRepo) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	if err, ok := f.getErr[id]; ok {
		return nil, err
	}
	return f.Repository.Get(ctx, id)
}

func (f *flakyRepo) MarkUploaded(ctx context.Context, id string) error {
	if f.markErr != nil {
		return f.markErr
	}
	return f.Repository.MarkUploaded(ctx, id)
}

func TestProcessQueue_ListFailureIsCaught(t *testing.T) {
	repo := &flakyRepo{Repository: newStore(t), listErr: common.ErrStorage}
	svc := NewUploadService(repo, &fakeClient{upload: alwaysOK}, newFakeNet(true))

	res, err := svc.ProcessQueue(context.Background())
	require.ErrorIs(t, err, common.ErrStorage)
	assert.True(t, res.Ran)
	assert.False(t, svc.Busy())
	assert.Equal(t, int64(1), svc.Completed())
}

func TestProcessQueue_MissingRecordIsSkipped(t *testing.T) {
	store := newStore(t)
	gone := addFile(t, store, "gone.jpg", 10)
	time.Sleep(2 * time.Millisecond)
	kept := addFile(t, store, "kept.jpg", 10)

	repo := &flakyRepo{Repository: store, getErr: map[string]error{gone.ID: common.ErrNotFound}}
	fc := &fakeClient{upload: alwaysOK}
	svc := NewUploadService(repo, fc, newFakeNet(true))

	res, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Ran: true, Uploaded: 1, Missing: 1}, res)
	assert.True(t, get(t, store, kept.ID).Uploaded)
}

func TestProcessQueue_StorageFailureStopsPass(t *testing.T) {
	store := newStore(t)
	first := addFile(t, store, "1.jpg", 10)
	time.Sleep(2 * time.Millisecond)
	addFile(t, store, "2.jpg", 10)

	repo := &flakyRepo{Repository: store, getErr: map[string]error{first.ID: common.ErrStorage}}
	fc := &fakeClient{upload: alwaysOK}
	svc := NewUploadService(repo, fc, newFakeNet(true))

	res, err := svc.ProcessQueue(context.Background())
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, 0, res.Uploaded)
	assert.Equal(t, int32(0), fc.calls.Load())

	_, err = svc.ProcessQueue(context.Background())
	require.ErrorIs(t, err, common.ErrStorage)
}

func TestProcessQueue_MarkNotFoundContinues(t *testing.T) {
	store := newStore(t)
	addFile(t, store, "1.jpg", 10)

	repo := &flakyRepo{Repository: store, markErr: common.ErrNotFound}
	svc := NewUploadService(repo, &fakeClient{upload: alwaysOK}, newFakeNet(true))

	res, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missing)
}

func TestProcessQueue_OnUploadedHook(t *testing.T) {
	ctx := context.Background()
	repo := newStore(t)
	ok := addFile(t, repo, "ok.jpg", 10)

	var got []string
	svc := NewUploadService(repo, &fakeClient{upload: alwaysOK}, newFakeNet(true),
		WithOnUploaded(func(_ context.Context, rec *models.FileRecord) { got = append(got, rec.ID) }))
	_, err := svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ok.ID}, got)

	addFile(t, repo, "bad.jpg", 10)
	svc = NewUploadService(repo, &fakeClient{upload: always500}, newFakeNet(true),
		WithOnUploaded(func(_ context.Context, rec *models.FileRecord) { got = append(got, rec.ID) }))
	_, err = svc.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
