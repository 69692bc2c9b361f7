package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/cryptox"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead is the slack allowed on top of the file size for part
// headers and boundaries.
const multipartOverhead = 1 << 20

type Handler struct {
	store   storage.BlobStore
	logger  logging.Logger
	maxSize int64
	secret  []byte
	newKey  func(deviceID, filename string) string
}

type Option func(*Handler)

// WithSecret requires every upload to carry a bearer token signed with secret.
func WithSecret(secret []byte) Option {
	return func(h *Handler) { h.secret = secret }
}

func WithMaxSize(n int64) Option {
	return func(h *Handler) { h.maxSize = n }
}

func NewHandler(store storage.BlobStore, logger logging.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:   store,
		logger:  logger.With("module", "httpapi"),
		maxSize: common.MaxFileSize,
		newKey:  objectKey,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Router builds the gin engine serving every route.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 8 << 20

	probe := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.HEAD("/favicon.ico", probe)
	r.GET("/favicon.ico", probe)
	r.GET("/healthz", probe)

	api := r.Group("/api")
	if len(h.secret) > 0 {
		api.Use(tokenAuthMiddleware(h.secret))
	}
	api.POST("/upload", h.upload)
	return r
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (h *Handler) upload(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, "file too large")
			return
		}
		badRequest(c, "no file uploaded")
		return
	}

	name := path.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		badRequest(c, "missing file name")
		return
	}
	if fh.Size == 0 {
		badRequest(c, "empty file")
		return
	}
	if fh.Size > h.maxSize {
		badRequest(c, "file too large")
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		badRequest(c, "unsupported file type")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error(ctx, "open upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}
	defer f.Close()

	sum, _, err := cryptox.ChecksumReader(f)
	if err != nil {
		h.logger.Error(ctx, "hash upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}
	if want := c.GetHeader(common.ChecksumHeaderName); want != "" && !strings.EqualFold(want, sum) {
		badRequest(c, "checksum mismatch")
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}

	key := h.newKey(c.GetString(deviceIDKey), name)
	if err := h.store.Put(ctx, key, contentType, f, fh.Size); err != nil {
		h.logger.Error(ctx, "store upload", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	h.logger.Info(ctx, "file uploaded", "key", key, "name", name, "size", fh.Size, "type", contentType)
	ok, size := true, fh.Size
	c.JSON(http.StatusOK, models.UploadReceipt{
		Success:  &ok,
		Message:  "file uploaded",
		Filename: name,
		Size:     &size,
		Type:     contentType,
		Key:      key,
		Checksum: sum,
	})
}

// objectKey files uploads per device under a random name keeping the
// original extension.
func objectKey(deviceID, filename string) string {
	key := uuid.NewString() + strings.ToLower(path.Ext(filename))
	if deviceID == "" {
		return key
	}
	return safeSegment(deviceID) + "/" + key
}

func safeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
