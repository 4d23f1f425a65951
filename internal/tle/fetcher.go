package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultSourceURL is the Celestrak "visual" group: the brightest
	// objects, the ones worth pointing an observer at.
	DefaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=visual&FORMAT=tle"

	userAgent    = "skysat/1.0"
	maxBodyBytes = 50 << 20
)

// StatusError is returned when a source answers with a non-200 status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Fetcher downloads catalog text. The primary source must succeed; extra
// sources are appended when they answer and skipped when they fail.
type Fetcher struct {
	sourceURL  string
	extraURLs  []string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. An empty sourceURL means DefaultSourceURL.
func NewFetcher(sourceURL string, logger *slog.Logger, extraURLs ...string) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Fetcher{
		sourceURL:  sourceURL,
		extraURLs:  extraURLs,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SourceURL returns the primary source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch returns the primary body followed by every extra body that could
// be downloaded, each starting on its own line.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	body, err := f.get(ctx, f.sourceURL)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(body)
	for _, u := range f.extraURLs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		extra, err := f.get(ctx, u)
		if err != nil {
			f.logger.Warn("extra TLE source failed", "url", u, "error", err)
			continue
		}
		if n := buf.Len(); n > 0 && buf.Bytes()[n-1] != '\n' {
			buf.WriteByte('\n')
		}
		buf.Write(extra)
	}
	return buf.Bytes(), nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain")

	started := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}

	f.logger.Debug("TLE source downloaded",
		"url", url,
		"bytes", len(body),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return body, nil
}
