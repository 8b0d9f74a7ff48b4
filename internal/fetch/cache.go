// Package fetch provides a download-and-cache layer for remote data files.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Sentinel errors for fetch operations.
var (
	// ErrFetch indicates the remote file could not be downloaded.
	ErrFetch = errors.New("fetch failed")

	// ErrDecompress indicates a downloaded .gz file could not be decompressed.
	ErrDecompress = errors.New("decompress failed")
)

// Timer receives operation timings. metrics.Collector satisfies it.
type Timer interface {
	RecordTiming(op string, duration time.Duration)
}

// Operation names passed to Timer.
const (
	OpFetch      = "fetch"
	OpDecompress = "decompress"
)

// Config holds cache configuration.
type Config struct {
	// Dir is where raw and decompressed files are kept.
	Dir string
	// HTTPClient is used for downloads (default: 10 minute timeout).
	HTTPClient *http.Client
	// RequestsPerSecond limits outbound fetches. Zero means unlimited.
	RequestsPerSecond float64
	// Timer is optional.
	Timer Timer
}

// Cache downloads a URL at most once and keeps a decompressed copy on disk.
// A decompressed file that exists is never re-fetched or re-decompressed.
type Cache struct {
	dir     string
	client  *http.Client
	limiter *rate.Limiter
	timer   Timer
	group   singleflight.Group

	fetches        atomic.Int64
	decompressions atomic.Int64
}

// New creates a cache rooted at cfg.Dir.
func New(cfg Config) *Cache {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Cache{
		dir:     cfg.Dir,
		client:  client,
		limiter: limiter,
		timer:   cfg.Timer,
	}
}

// LocalPaths returns the raw download path and decompressed path for a URL.
func LocalPaths(dir, rawURL string) (raw, unzipped string) {
	name := path.Base(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	raw = filepath.Join(dir, name)
	unzipped = strings.TrimSuffix(raw, ".gz")
	return raw, unzipped
}

// Acquire ensures the URL is cached and returns the decompressed content.
func (c *Cache) Acquire(ctx context.Context, rawURL string) (string, error) {
	p, err := c.AcquirePath(ctx, rawURL)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read cached file: %w", err)
	}
	return string(data), nil
}

// AcquirePath ensures the URL is cached and returns the decompressed file path.
func (c *Cache) AcquirePath(ctx context.Context, rawURL string) (string, error) {
	v, err, _ := c.group.Do(rawURL, func() (any, error) {
		return c.acquire(ctx, rawURL)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Fetches returns how many network downloads this cache has performed.
func (c *Cache) Fetches() int64 { return c.fetches.Load() }

// Decompressions returns how many gunzip operations this cache has performed.
func (c *Cache) Decompressions() int64 { return c.decompressions.Load() }

func (c *Cache) acquire(ctx context.Context, rawURL string) (string, error) {
	raw, unzipped := LocalPaths(c.dir, rawURL)

	if exists(unzipped) {
		slog.Debug("cache hit", "url", rawURL, "path", unzipped)
		return unzipped, nil
	}

	if !exists(raw) {
		if err := c.download(ctx, rawURL, raw); err != nil {
			return "", err
		}
	}

	if raw != unzipped {
		if err := c.gunzip(raw, unzipped); err != nil {
			return "", err
		}
	}

	return unzipped, nil
}

func (c *Cache) download(ctx context.Context, rawURL, dest string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
		}
	}

	start := time.Now()
	slog.Info("downloading", "url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: status %s", ErrFetch, rawURL, resp.Status)
	}

	if err := writeAtomic(dest, resp.Body); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}

	c.fetches.Add(1)
	c.record(OpFetch, time.Since(start))
	return nil
}

// gunzip decompresses src into dest, keeping src.
func (c *Cache) gunzip(src, dest string) error {
	start := time.Now()

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecompress, src, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecompress, src, err)
	}
	defer zr.Close()

	if err := writeAtomic(dest, zr); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecompress, src, err)
	}

	c.decompressions.Add(1)
	c.record(OpDecompress, time.Since(start))
	return nil
}

func (c *Cache) record(op string, d time.Duration) {
	if c.timer != nil {
		c.timer.RecordTiming(op, d)
	}
}

// writeAtomic copies r into a temp file next to dest and renames it into place,
// so an interrupted write never leaves a file that looks cached.
func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
