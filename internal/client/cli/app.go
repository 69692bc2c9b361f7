package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/config"
	"github.com/dmitrijs2005/offsync/internal/client/inbox"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/netmon"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/files"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/client/services"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/filex"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repo     files.Repository
	meta     metadata.Repository
	staging  *services.FileService
	uploader *services.UploadService
	monitor  *netmon.Monitor
	inbox    *inbox.Watcher

	reader  *bufio.Reader
	out     io.Writer
	closers []func() error

	runCtx context.Context
	wg     sync.WaitGroup
}

// NewApp wires the record store, transports, monitor and orchestrator from c.
// Nothing runs until Run.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}

	repo := files.NewSQLiteRepository(c.DatabasePath)
	if err := repo.Init(ctx); err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	closers := []func() error{repo.Close}

	db, err := repo.DB(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	meta := metadata.NewSQLiteRepository(db)

	var opts []client.Option
	opts = append(opts, client.WithProbeTimeout(c.ProbeTimeout))
	if c.AuthSecret != "" {
		opts = append(opts, client.WithTokenSource(
			client.NewSharedSecretTokenSource([]byte(c.AuthSecret), c.DeviceID, client.DefaultTokenTTL)))
	}
	httpClient := client.NewHTTPClient(c.UploadURL, c.ProbeURL, opts...)

	var prober netmon.Prober = httpClient
	if c.HealthAddr != "" {
		hp, err := client.NewHealthProber(c.HealthAddr, c.ProbeTimeout)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("health prober: %w", err)
		}
		prober = hp
		closers = append(closers, hp.Close)
	}

	monitor := netmon.New(prober,
		netmon.WithInterval(c.OnlineCheckInterval),
		netmon.WithTimeout(c.ProbeTimeout),
		netmon.WithEventSource(netmon.NewInterfaceWatcher(c.OnlineCheckInterval)),
		netmon.WithFocusSource(netmon.NewSignalSource()),
		netmon.WithLogger(logger),
	)

	a := &App{
		config:  c,
		logger:  logger,
		repo:    repo,
		meta:    meta,
		staging: services.NewFileService(repo, common.MaxStorageSize, logger),
		monitor: monitor,
		reader:  bufio.NewReader(os.Stdin),
		out:     &syncWriter{w: os.Stdout},
		closers: closers,
	}

	a.uploader = services.NewUploadService(repo, httpClient, monitor,
		services.WithUploadLogger(logger),
		services.WithOnUploaded(a.recordUpload))

	if c.InboxDir != "" {
		a.inbox = inbox.New(c.InboxDir, a.staging, logger, inbox.WithOnStaged(func(*models.FileRecord) {
			a.kick(a.runCtx)
		}))
	}

	return a, nil
}

// Run starts the background workers and blocks in the REPL until the user
// leaves or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.runCtx = ctx

	var bg sync.WaitGroup
	a.uploader.Watch(ctx, a.monitor)

	bg.Add(1)
	go func() {
		defer bg.Done()
		a.monitor.Run(ctx)
	}()

	if a.inbox != nil {
		bg.Add(1)
		go func() {
			defer bg.Done()
			if err := a.inbox.Run(ctx); err != nil {
				a.logger.Error(ctx, "inbox watcher stopped", "error", err)
			}
		}()
	}

	bg.Add(1)
	go func() {
		defer bg.Done()
		a.reportPasses(ctx)
	}()

	fmt.Fprintln(a.out, "offsync client (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)

	cancel()
	bg.Wait()
	a.wg.Wait()
	a.uploader.Wait()
	return nil
}

// Close releases the store and probe connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *App) status() string {
	s := "offline"
	if a.monitor.Online() {
		s = "online"
	}
	if a.uploader.Busy() {
		s += ", uploading"
	}
	return "(" + s + ")"
}

// kick starts a background drain when online. It is a no-op while offline
// or while another pass is running.
func (a *App) kick(ctx context.Context) {
	if !a.monitor.Online() {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_, _ = a.uploader.ProcessQueue(ctx)
	}()
}

func (a *App) recordUpload(ctx context.Context, rec *models.FileRecord) {
	if a.meta == nil {
		return
	}
	if err := a.meta.RecordUpload(ctx, time.Now()); err != nil {
		a.logger.Warn(ctx, "could not record upload", "file_id", rec.ID, "error", err)
	}
}

func (a *App) reportPasses(ctx context.Context) {
	for {
		select {
		case n := <-a.uploader.Passes():
			a.logger.Debug(ctx, "upload pass completed", "count", n)
		case <-ctx.Done():
			return
		}
	}
}
