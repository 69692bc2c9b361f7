package services

import (
	"sync"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

// progressTracker is the in-memory upload progress list. Entries are keyed by
// file id; the last write wins. Nothing here is persisted.
type progressTracker struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]models.UploadProgress

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(models.UploadProgress)
}

func newProgressTracker() *progressTracker {
	return &progressTracker{
		entries: map[string]models.UploadProgress{},
		subs:    map[int]func(models.UploadProgress){},
	}
}

func (t *progressTracker) set(p models.UploadProgress) {
	t.mu.Lock()
	if _, ok := t.entries[p.FileID]; !ok {
		t.order = append(t.order, p.FileID)
	}
	t.entries[p.FileID] = p
	t.mu.Unlock()

	t.notify(p)
}

// update applies fn to an existing entry while holding the lock, so a
// concurrent set cannot be overwritten by a stale copy. It is a no-op for
// unknown ids, and subscribers hear nothing when fn leaves the entry as is.
func (t *progressTracker) update(id string, fn func(*models.UploadProgress)) {
	t.mu.Lock()
	old, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	p := old
	fn(&p)
	t.entries[id] = p
	t.mu.Unlock()

	if p != old {
		t.notify(p)
	}
}

func (t *progressTracker) notify(p models.UploadProgress) {
	t.subMu.RLock()
	defer t.subMu.RUnlock()
	for _, fn := range t.subs {
		fn(p)
	}
}

func (t *progressTracker) get(id string) (models.UploadProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[id]
	return p, ok
}

func (t *progressTracker) list() []models.UploadProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.UploadProgress, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id])
	}
	return out
}

func (t *progressTracker) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.entries = map[string]models.UploadProgress{}
}

func (t *progressTracker) stats() models.UploadStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := models.UploadStats{Total: len(t.entries)}
	for _, p := range t.entries {
		switch p.Status {
		case models.UploadStatusSuccess:
			st.Success++
		case models.UploadStatusError:
			st.Error++
		case models.UploadStatusPending:
			st.Pending++
		case models.UploadStatusUploading:
			st.Uploading++
		}
	}
	return st
}

func (t *progressTracker) subscribe(fn func(models.UploadProgress)) (unsubscribe func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn

	return func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		delete(t.subs, id)
	}
}
