package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/netx"
)

const maxErrorBody = 4 << 10

// HTTPClient uploads files with a multipart POST and probes reachability with
// an uncached HEAD request.
type HTTPClient struct {
	uploadURL    string
	probeURL     string
	probeTimeout time.Duration
	hc           *http.Client
	tokens       TokenSource
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client. The upload path applies no
// timeout of its own, so hc.Timeout should stay zero.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.hc = hc }
}

// WithTokenSource attaches a bearer token to every upload.
func WithTokenSource(ts TokenSource) Option {
	return func(c *HTTPClient) { c.tokens = ts }
}

// WithProbeTimeout bounds a single Ping.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.probeTimeout = d }
}

func NewHTTPClient(uploadURL, probeURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		uploadURL:    uploadURL,
		probeURL:     probeURL,
		probeTimeout: common.ProbeTimeout,
		hc:           &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func uploadErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrUploadFailed, fmt.Sprintf(format, args...))
}

func (c *HTTPClient) Upload(ctx context.Context, ur UploadRequest) (*models.UploadReceipt, error) {
	body, err := netx.NewMultipartFile("file", ur.Name, ur.MimeType, ur.Payload, ur.Progress)
	if err != nil {
		return nil, uploadErr("build body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		return nil, uploadErr("build request: %v", err)
	}
	req.ContentLength = body.Length
	req.Header.Set("Content-Type", body.ContentType)
	req.Header.Set("Accept", "application/json")
	if ur.Checksum != "" {
		req.Header.Set(common.ChecksumHeaderName, ur.Checksum)
	}

	if c.tokens != nil {
		token, err := c.tokens()
		if err != nil {
			return nil, uploadErr("sign token: %v", err)
		}
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, uploadErr("%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := uploadErr("%s: %s", resp.Status, msg)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, err
	}

	var receipt models.UploadReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", common.ErrUploadFailed, ErrBadReceipt, err)
	}
	if receipt.Rejected() {
		return nil, fmt.Errorf("%w: %w: %s", common.ErrUploadFailed, ErrBadReceipt, receipt.Message)
	}

	return &receipt, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if err := netx.Probe(ctx, c.hc, c.probeURL); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
