package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/cryptox"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

// Connectivity is the read side of the network monitor.
type Connectivity interface {
	Online() bool
}

// ConnectivityNotifier also reports transitions.
type ConnectivityNotifier interface {
	Connectivity
	OnChange(fn func(online bool))
}

// genericUploadError is the message stored on failed progress entries.
// Transport details only go to the log.
const genericUploadError = "upload failed"

// PassResult summarizes one drain pass.
type PassResult struct {
	// Ran is false when the pass was skipped because the device was offline
	// or another pass was in progress.
	Ran bool

	Uploaded  int
	Failed    int
	Abandoned int
	Missing   int
}

// UploadService drains pending records to the upload endpoint one at a time.
type UploadService struct {
	repo       files.Repository
	client     client.Client
	net        Connectivity
	logger     logging.Logger
	maxRetries int
	onUploaded func(ctx context.Context, rec *models.FileRecord)

	gate      *Gate
	progress  *progressTracker
	completed atomic.Int64
	passes    chan int64

	wg sync.WaitGroup
}

type UploadOption func(*UploadService)

func WithUploadLogger(l logging.Logger) UploadOption {
	return func(s *UploadService) { s.logger = l }
}

func WithMaxRetries(n int) UploadOption {
	return func(s *UploadService) { s.maxRetries = n }
}

// WithOnUploaded registers fn to run after a record has been marked uploaded.
func WithOnUploaded(fn func(ctx context.Context, rec *models.FileRecord)) UploadOption {
	return func(s *UploadService) { s.onUploaded = fn }
}

func NewUploadService(repo files.Repository, c client.Client, net Connectivity, opts ...UploadOption) *UploadService {
	s := &UploadService{
		repo:       repo,
		client:     c,
		net:        net,
		logger:     logging.Nop(),
		maxRetries: common.MaxRetries,
		gate:       NewGate(),
		progress:   newProgressTracker(),
		passes:     make(chan int64, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "uploader")
	return s
}

// Watch starts a background drain on every transition to online. Wait blocks
// until those drains have returned.
func (s *UploadService) Watch(ctx context.Context, n ConnectivityNotifier) {
	n.OnChange(func(online bool) {
		if !online {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, _ = s.ProcessQueue(ctx)
		}()
	})
}

func (s *UploadService) Wait() {
	s.wg.Wait()
}

// Busy reports whether a drain pass is running.
func (s *UploadService) Busy() bool {
	return s.gate.Busy()
}

// TriggerUpload is the manual entry point. It refuses with common.ErrOffline
// without touching the store or the network when the device is offline.
func (s *UploadService) TriggerUpload(ctx context.Context) (PassResult, error) {
	if !s.net.Online() {
		return PassResult{}, common.ErrOffline
	}
	return s.ProcessQueue(ctx)
}

// ProcessQueue runs one drain pass. It is a no-op while offline or while
// another pass holds the gate. A store failure ends the pass early and is
// returned; files not reached yet are tried on a later pass.
func (s *UploadService) ProcessQueue(ctx context.Context) (PassResult, error) {
	var res PassResult

	if !s.net.Online() {
		s.logger.Debug(ctx, "skipping upload pass", "reason", "offline")
		return res, nil
	}
	if !s.gate.TryEnter() {
		s.logger.Debug(ctx, "skipping upload pass", "reason", "busy")
		return res, nil
	}
	defer s.gate.Leave()

	res.Ran = true
	defer s.finishPass()

	err := s.drain(ctx, &res)
	if err != nil {
		s.logger.Error(ctx, "upload pass aborted", "error", err)
		return res, err
	}

	s.logger.Info(ctx, "upload pass finished",
		"uploaded", res.Uploaded, "failed", res.Failed, "abandoned", res.Abandoned)
	return res, nil
}

func (s *UploadService) finishPass() {
	n := s.completed.Add(1)

	select {
	case <-s.passes:
	default:
	}
	select {
	case s.passes <- n:
	default:
	}
}

func (s *UploadService) drain(ctx context.Context, res *PassResult) error {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	s.logger.Info(ctx, "upload pass started", "pending", len(pending))

	var queue []*models.FileRecord
	for _, rec := range pending {
		if rec.Abandoned(s.maxRetries) {
			res.Abandoned++
			s.logger.Warn(ctx, "file reached max retries, delete it to drop it",
				"file_id", rec.ID, "name", rec.Name, "attempts", rec.UploadAttempts)
			continue
		}
		queue = append(queue, rec)
		s.progress.set(models.UploadProgress{FileID: rec.ID, Status: models.UploadStatusPending})
	}

	for _, rec := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Going offline never aborts a running upload, it only stops the
		// next one from starting.
		if !s.net.Online() {
			s.logger.Info(ctx, "went offline, stopping upload pass")
			return nil
		}

		full, err := s.repo.Get(ctx, rec.ID)
		if errors.Is(err, common.ErrNotFound) {
			res.Missing++
			s.logger.Warn(ctx, "file vanished before upload", "file_id", rec.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", rec.ID, err)
		}

		s.progress.set(models.UploadProgress{FileID: rec.ID, Status: models.UploadStatusUploading})

		uploadErr := s.UploadOne(ctx, full)
		if uploadErr == nil {
			if err := s.repo.MarkUploaded(ctx, rec.ID); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					res.Missing++
					s.logger.Warn(ctx, "uploaded file vanished before it was marked", "file_id", rec.ID)
					continue
				}
				return fmt.Errorf("mark uploaded %s: %w", rec.ID, err)
			}
			res.Uploaded++
			s.progress.set(models.UploadProgress{FileID: rec.ID, Progress: 100, Status: models.UploadStatusSuccess})
			s.logger.Info(ctx, "file uploaded", "file_id", rec.ID, "name", rec.Name, "size", rec.SizeBytes)
			if s.onUploaded != nil {
				s.onUploaded(ctx, rec)
			}
			continue
		}

		res.Failed++
		s.logger.Warn(ctx, "file upload failed", "file_id", rec.ID, "name", rec.Name,
			"attempt", rec.UploadAttempts+1, "error", uploadErr)
		s.progress.update(rec.ID, func(p *models.UploadProgress) {
			p.Status = models.UploadStatusError
			p.Error = genericUploadError
		})

		if err := s.repo.IncrementAttempts(ctx, rec.ID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				res.Missing++
				s.logger.Warn(ctx, "failed file vanished before attempt was counted", "file_id", rec.ID)
				continue
			}
			return fmt.Errorf("increment attempts %s: %w", rec.ID, err)
		}
	}

	return nil
}

// UploadOne sends rec, whose payload must be loaded, and checks that the
// receipt matches what was sent. Every failure wraps common.ErrUploadFailed.
func (s *UploadService) UploadOne(ctx context.Context, rec *models.FileRecord) error {
	sum := cryptox.Checksum(rec.Payload)

	receipt, err := s.client.Upload(ctx, client.UploadRequest{
		Name:     rec.Name,
		MimeType: rec.MimeType,
		Payload:  rec.Payload,
		Checksum: sum,
		Progress: func(sent, total int64) { s.reportBytes(rec.ID, sent, total) },
	})
	if err != nil {
		if !errors.Is(err, common.ErrUploadFailed) {
			err = fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
		}
		return err
	}

	if receipt.Size != nil && *receipt.Size != rec.SizeBytes {
		return fmt.Errorf("%w: receipt size %d, sent %d", common.ErrUploadFailed, *receipt.Size, rec.SizeBytes)
	}
	if receipt.Checksum != "" && receipt.Checksum != sum {
		return fmt.Errorf("%w: receipt checksum mismatch", common.ErrUploadFailed)
	}
	return nil
}

// reportBytes maps bytes sent onto 0..99; 100 is only set once the endpoint
// has confirmed the upload.
func (s *UploadService) reportBytes(id string, sent, total int64) {
	pct := 99
	if total > 0 {
		pct = min(int(sent*99/total), 99)
	}
	s.progress.update(id, func(p *models.UploadProgress) {
		if p.Status == models.UploadStatusUploading && pct > p.Progress {
			p.Progress = pct
		}
	})
}

// GetProgress returns the in-memory progress entry for id.
func (s *UploadService) GetProgress(id string) (models.UploadProgress, bool) {
	return s.progress.get(id)
}

// Progress lists all progress entries in the order files were first seen.
func (s *UploadService) Progress() []models.UploadProgress {
	return s.progress.list()
}

func (s *UploadService) ClearProgress() {
	s.progress.clear()
}

// Stats counts progress entries by status.
func (s *UploadService) Stats() models.UploadStats {
	return s.progress.stats()
}

// Subscribe registers fn for every progress change and returns a function
// that removes it. fn runs on the uploading goroutine.
func (s *UploadService) Subscribe(fn func(models.UploadProgress)) (unsubscribe func()) {
	return s.progress.subscribe(fn)
}

// Completed is the number of drain passes that have run to the end.
func (s *UploadService) Completed() int64 {
	return s.completed.Load()
}

// Passes delivers the latest completed pass count. Slow readers only see the
// most recent value.
func (s *UploadService) Passes() <-chan int64 {
	return s.passes
}
