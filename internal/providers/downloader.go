package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrOversizedDownload indicates the image exceeded the configured byte
// limit. The caller tries the next candidate.
var ErrOversizedDownload = errors.New("image exceeds size limit")

// DownloaderConfig holds download limits.
type DownloaderConfig struct {
	MaxBytes int64         // default: 10 MiB
	Timeout  time.Duration // default: 10s
}

// Downloader fetches image bytes with size and time bounds.
type Downloader struct {
	cfg    DownloaderConfig
	client *http.Client
}

// NewDownloader creates a downloader with the given limits.
func NewDownloader(cfg DownloaderConfig) *Downloader {
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Downloader{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Download fetches the image at url. Oversized responses are rejected both
// by the Content-Length header and by counting streamed bytes, since
// providers do not always set the header.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > d.cfg.MaxBytes {
			return nil, fmt.Errorf("%w: content-length %d", ErrOversizedDownload, size)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxBytes {
		return nil, ErrOversizedDownload
	}

	return data, nil
}
