package downloader

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"appeearsfetch/internal/core/domain"
	"appeearsfetch/internal/core/ports"
	"appeearsfetch/internal/metrics"
)

// DefaultTimeout bounds a whole file transfer.
const DefaultTimeout = 30 * time.Minute

var _ ports.Downloader = (*HTTPDownloader)(nil)

// HTTPDownloader implements ports.Downloader using standard HTTP.
// Redirects are followed; net/http drops the Authorization header when a
// redirect leaves the original host, which presigned object storage URLs need.
type HTTPDownloader struct {
	client  *http.Client
	metrics *metrics.Metrics
}

// NewHTTPDownloader creates a new HTTPDownloader.
func NewHTTPDownloader(timeout time.Duration, m *metrics.Metrics) *HTTPDownloader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPDownloader{
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}
}

// Download opens the file stream at fileURL.
func (d *HTTPDownloader) Download(ctx context.Context, fileURL string, token domain.AuthToken) (*ports.Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, domain.NewStageError(domain.StageDownload, 0, fmt.Errorf("failed to create request: %w", err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+string(token))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.metrics.Requests.WithLabelValues("file", "error").Inc()
		return nil, domain.NewStageError(domain.StageDownload, 0, err)
	}
	d.metrics.Requests.WithLabelValues("file", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, domain.NewStageError(domain.StageDownload, resp.StatusCode,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	return &ports.Download{Body: resp.Body, Size: resp.ContentLength}, nil
}
