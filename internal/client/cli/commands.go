package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dustin/go-humanize"
)

func (a *App) Add(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		fmt.Fprintln(a.out, "Usage: add <path>...")
		return nil
	}

	staged := 0
	for _, p := range paths {
		rec, err := a.staging.AddPath(ctx, p)
		switch {
		case errors.Is(err, common.ErrSizeExceeded):
			fmt.Fprintf(a.out, "%s rejected: files may be at most %s\n", p, humanize.IBytes(uint64(common.MaxFileSize)))
			continue
		case errors.Is(err, common.ErrStorageFull):
			fmt.Fprintf(a.out, "%s rejected: local storage budget of %s is used up, upload or delete files first\n",
				p, humanize.IBytes(uint64(common.MaxStorageSize)))
			continue
		case err != nil:
			fmt.Fprintf(a.out, "%s not added: %v\n", p, err)
			continue
		}
		staged++
		fmt.Fprintf(a.out, "staged %s %s (%s)\n", rec.ID, rec.Name, humanize.IBytes(uint64(rec.SizeBytes)))
	}

	if staged > 0 {
		a.kick(ctx)
	}
	return nil
}

func recordState(rec *models.FileRecord) string {
	switch {
	case rec.Uploaded:
		return "uploaded"
	case rec.Abandoned(common.MaxRetries):
		return fmt.Sprintf("failed %d times, delete to drop", rec.UploadAttempts)
	case rec.UploadAttempts > 0:
		return fmt.Sprintf("pending (%d/%d attempts)", rec.UploadAttempts, common.MaxRetries)
	default:
		return "pending"
	}
}

func (a *App) printRecords(recs []*models.FileRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "no files")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tTYPE\tADDED\tSTATE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, humanize.IBytes(uint64(r.SizeBytes)), r.MimeType, humanize.Time(r.CreatedAt), recordState(r))
	}
	_ = tw.Flush()
}

func (a *App) List(ctx context.Context) error {
	recs, err := a.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	a.printRecords(recs)
	return nil
}

func (a *App) Pending(ctx context.Context) error {
	recs, err := a.repo.ListPending(ctx)
	if err != nil {
		return err
	}
	a.printRecords(recs)
	return nil
}

func (a *App) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "Usage: delete <id>...")
		return nil
	}
	for _, id := range ids {
		if err := a.repo.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "deleted", id)
	}
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	if !Confirm(a.reader, "Remove every uploaded file from this device?", a.out) {
		fmt.Fprintln(a.out, "cancelled")
		return nil
	}
	n, err := a.repo.ClearUploaded(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "removed %d uploaded file(s)\n", n)
	return nil
}

// Sync drains the queue in the foreground with a byte progress bar.
func (a *App) Sync(ctx context.Context) error {
	if !a.monitor.Online() {
		fmt.Fprintln(a.out, "You are offline; staged files will upload once the connection is back.")
		return nil
	}

	pending, err := a.repo.ListPending(ctx)
	if err != nil {
		return err
	}

	sizes := map[string]int64{}
	var total int64
	for _, r := range pending {
		if !r.Abandoned(common.MaxRetries) {
			sizes[r.ID] = r.SizeBytes
			total += r.SizeBytes
		}
	}

	var bar *pb.ProgressBar
	if total > 0 {
		bar = pb.New64(total)
		bar.Set(pb.Bytes, true)
		bar.SetWriter(a.out)
		bar.SetRefreshRate(200 * time.Millisecond)
		bar.Start()

		var mu sync.Mutex
		var done int64
		unsubscribe := a.uploader.Subscribe(func(p models.UploadProgress) {
			size, ok := sizes[p.FileID]
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch p.Status {
			case models.UploadStatusUploading:
				bar.SetCurrent(done + size*int64(p.Progress)/100)
			case models.UploadStatusSuccess, models.UploadStatusError:
				done += size
				bar.SetCurrent(done)
			}
		})
		defer unsubscribe()
	}

	res, err := a.uploader.TriggerUpload(ctx)
	if bar != nil {
		bar.Finish()
	}
	if errors.Is(err, common.ErrOffline) {
		fmt.Fprintln(a.out, "You are offline; staged files will upload once the connection is back.")
		return nil
	}
	if !res.Ran {
		fmt.Fprintln(a.out, "an upload is already running")
		return err
	}

	fmt.Fprintf(a.out, "uploaded %d, failed %d", res.Uploaded, res.Failed)
	if res.Abandoned > 0 {
		fmt.Fprintf(a.out, ", %d gave up after %d attempts (delete them to drop)", res.Abandoned, common.MaxRetries)
	}
	fmt.Fprintln(a.out)
	return err
}

func (a *App) Progress(_ context.Context, args []string) error {
	if len(args) > 0 && args[0] == "clear" {
		a.uploader.ClearProgress()
		fmt.Fprintln(a.out, "progress cleared")
		return nil
	}

	entries := a.uploader.Progress()
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "no uploads this session")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tERROR")
	for _, p := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\n", p.FileID, p.Status, p.Progress, p.Error)
	}
	return tw.Flush()
}

func (a *App) Stats(ctx context.Context) error {
	st, err := a.repo.Stats(ctx)
	if err != nil {
		return err
	}
	us := a.uploader.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "files:    %d (%s)\n", st.TotalFiles, humanize.IBytes(uint64(st.TotalBytes)))
	fmt.Fprintf(&b, "pending:  %d\n", st.PendingCount)
	fmt.Fprintf(&b, "uploaded: %d\n", st.UploadedCount)
	fmt.Fprintf(&b, "session:  %d tracked, %d ok, %d failed, %d queued, %d uploading\n",
		us.Total, us.Success, us.Error, us.Pending, us.Uploading)
	fmt.Fprint(a.out, b.String())
	return nil
}

func (a *App) Quota(ctx context.Context) error {
	q, err := a.repo.Quota(ctx)
	if err != nil {
		return err
	}
	if q == (models.QuotaInfo{}) {
		fmt.Fprintln(a.out, "storage usage is not reported on this host")
		return nil
	}

	pct := float64(0)
	if q.QuotaBytes > 0 {
		pct = float64(q.UsageBytes) * 100 / float64(q.QuotaBytes)
	}
	fmt.Fprintf(a.out, "used %s of %s (%.1f%%), %s available\n",
		humanize.IBytes(uint64(q.UsageBytes)), humanize.IBytes(uint64(q.QuotaBytes)), pct,
		humanize.IBytes(uint64(q.AvailableBytes)))
	return nil
}

func (a *App) Status(ctx context.Context) error {
	state := "offline"
	if a.monitor.Online() {
		state = "online"
	}
	fmt.Fprintf(a.out, "connection: %s\n", state)
	fmt.Fprintf(a.out, "uploading:  %t\n", a.uploader.Busy())
	fmt.Fprintf(a.out, "passes:     %d\n", a.uploader.Completed())

	if a.meta == nil {
		return nil
	}
	at, total, err := a.meta.LastUpload(ctx)
	if err != nil {
		return err
	}
	last := "never"
	if !at.IsZero() {
		last = humanize.Time(at)
	}
	fmt.Fprintf(a.out, "delivered:  %d, last %s\n", total, last)
	return nil
}
