package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/brensch/packgrab/internal/config"
	"github.com/brensch/packgrab/internal/util"
)

// Error is a failed download. StatusCode is set when the server answered
// with a non-200 status and is zero for transport or disk failures.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	// A StatusError already names the URL and the status.
	var statusErr *util.StatusError
	if errors.As(e.Err, &statusErr) {
		return "download: " + e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Staged is a downloaded archive sitting in a temporary file. Whoever holds
// it must call Remove once the archive is no longer needed.
type Staged struct {
	Path string
	Size int64

	once sync.Once
}

// Remove deletes the temporary file. It is safe to call more than once.
func (s *Staged) Remove() error {
	var err error
	s.once.Do(func() {
		if rmErr := os.Remove(s.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = rmErr
		}
	})
	return err
}

// Client downloads pack archives one request at a time.
type Client struct {
	http      *http.Client
	userAgent string
	tempDir   string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New builds a Client from cfg. A zero DownloadRate means no throttling.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.DownloadRate > 0 {
		limit = rate.Limit(cfg.DownloadRate)
	}
	return &Client{
		http:      util.DefaultHTTPClient(),
		userAgent: cfg.UserAgent,
		tempDir:   cfg.TempDir,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests use the httptest
// server's client).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/zip,application/x-7z-compressed,application/octet-stream,*/*")
	return req, nil
}

// Fetch downloads url verbatim into a new temporary file. Only a 200
// response counts as success; on any failure the temporary file is removed.
func (c *Client) Fetch(ctx context.Context, url string) (*Staged, error) {
	l := c.logger.With(slog.String("url", url))
	startTime := time.Now()

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("create request failed: %w", err)}
	}

	file, err := os.CreateTemp(c.tempDir, "packgrab-*.part")
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("create temp file: %w", err)}
	}
	staged := &Staged{Path: file.Name()}

	l.Debug("Starting download.", slog.String("temp_path", staged.Path))
	n, dlErr := util.DownloadTo(c.http, req, file)
	closeErr := file.Close()
	if dlErr == nil && closeErr != nil {
		dlErr = fmt.Errorf("close temp file: %w", closeErr)
	}
	duration := time.Since(startTime)

	if dlErr != nil {
		staged.Remove()
		fErr := &Error{URL: url, Err: dlErr}
		var statusErr *util.StatusError
		if errors.As(dlErr, &statusErr) {
			fErr.StatusCode = statusErr.StatusCode
		}
		l.Warn("Download failed.", "error", dlErr, slog.Duration("duration", duration.Round(time.Millisecond)))
		return nil, fErr
	}

	staged.Size = n
	l.Info("Download complete.", slog.String("size", humanize.Bytes(uint64(n))), slog.Duration("duration", duration.Round(time.Millisecond)))
	return staged, nil
}

// Probe checks that url answers 200 without keeping the body.
func (c *Client) Probe(ctx context.Context, url string) (int, error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return 0, &Error{URL: url, Err: fmt.Errorf("create request failed: %w", err)}
	}
	code, err := util.CheckStatus(c.http, req)
	if err != nil {
		return code, &Error{URL: url, StatusCode: code, Err: err}
	}
	return code, nil
}
