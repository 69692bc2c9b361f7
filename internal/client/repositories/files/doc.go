// Package files is the client-side record store for staged files.
//
// # Overview
//
// Repository is the contract used by the upload orchestrator and the CLI:
// it stages new files, lists them by upload state, flips the uploaded flag,
// counts failed attempts and reports storage usage. SQLiteRepository is the
// only implementation; it keeps payloads as BLOBs in a local SQLite file
// whose schema is managed by goose migrations.
//
// # Connection lifecycle
//
// The repository owns one *sql.DB. Init opens it on first use and is safe to
// call from many goroutines at once: concurrent callers share the same
// in-flight open. Every other method calls Init lazily, so a caller may skip
// it. Close releases the handle; a later call reopens it.
//
// # Errors
//
// Methods return sentinel errors from internal/common that callers match
// with errors.Is: ErrSizeExceeded, ErrNotFound and ErrStorage (which wraps
// the driver error).
//
// Typical Usage
//
//	repo := files.NewSQLiteRepository("files.db")
//	defer repo.Close()
//	rec, err := repo.Add(ctx, models.NewFile{Name: "a.jpg", Payload: data})
//	pending, _ := repo.ListPending(ctx)
//	_ = repo.MarkUploaded(ctx, rec.ID)
package files
