package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"snapback/internal/config"
	"snapback/internal/fileutil"
	"snapback/internal/logging"
	"snapback/internal/manifest"
	"snapback/internal/services"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// Origin names where a resolved media file came from.
type Origin string

const (
	OriginCache   Origin = "cache"
	OriginExport  Origin = "export"
	OriginNetwork Origin = "network"
)

// Resolution is the outcome of resolving one entry: a readable local file
// and where it was found.
type Resolution struct {
	Path   string
	Origin Origin
}

// HTTPDoer is the subset of http.Client the resolver needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Resolver locates the raw media bytes for manifest entries. Lookup order
// is cache, then local export tree, then network download.
type Resolver struct {
	cacheDir   string
	exportRoot string
	headers    map[string]string
	httpClient HTTPDoer
	logger     *slog.Logger

	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleep          func(context.Context, time.Duration) error

	exportOnce  sync.Once
	exportIndex map[string]string
}

// Option customizes the resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(r *Resolver) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(r *Resolver) {
		r.retryBaseDelay = baseDelay
		r.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// New constructs a resolver from the runtime configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Resolver, error) {
	if cfg == nil {
		return nil, errors.New("resolver: config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{
		cacheDir:       cfg.Paths.CacheDir,
		exportRoot:     cfg.Paths.ExportRoot,
		headers:        cfg.Network.Headers,
		logger:         logging.NewComponentLogger(logger, "resolver"),
		retryAttempts:  cfg.Network.RetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
		sleep:          sleepWithContext,
	}
	if r.retryAttempts <= 0 {
		r.retryAttempts = defaultRetryAttempts
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.httpClient == nil {
		jar, err := loadCookieJar(cfg.Network.CookieFile)
		if err != nil {
			return nil, err
		}
		r.httpClient = &http.Client{
			Timeout: cfg.NetworkTimeout(),
			Jar:     jar,
		}
	}
	return r, nil
}

// Resolve returns a local file containing the entry's media bytes. Files
// fetched over the network are written into the cache, so a re-run of the
// same entry never re-downloads.
func (r *Resolver) Resolve(ctx context.Context, entry manifest.Entry) (Resolution, error) {
	if path, ok := r.lookupCache(entry.StableID); ok {
		r.logger.DebugContext(ctx, "resolved from cache", logging.String("path", path))
		return Resolution{Path: path, Origin: OriginCache}, nil
	}
	if path, ok := r.lookupExport(entry.StableID); ok {
		cached, err := r.adoptIntoCache(entry.StableID, path)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to cache export file", logging.Error(err))
			cached = path
		}
		r.logger.DebugContext(ctx, "resolved from export", logging.String("path", cached))
		return Resolution{Path: cached, Origin: OriginExport}, nil
	}

	urls := entry.SourceURLs()
	if len(urls) == 0 {
		return Resolution{}, services.Wrap(services.ErrSourceUnavailable, "resolve", "lookup",
			"entry has no download URL and no local copy", nil)
	}

	var lastErr error
	for _, sourceURL := range urls {
		path, err := r.download(ctx, entry.StableID, sourceURL)
		if err == nil {
			r.logger.InfoContext(ctx, "downloaded media",
				logging.String("path", path),
				logging.String("origin", string(OriginNetwork)))
			return Resolution{Path: path, Origin: OriginNetwork}, nil
		}
		if errors.Is(err, services.ErrAuthRequired) || errors.Is(ctx.Err(), context.Canceled) {
			return Resolution{}, err
		}
		lastErr = err
	}
	return Resolution{}, lastErr
}

// lookupCache finds a previously downloaded file named <id>.<ext> in the
// cache directory. In-flight .part files are never resolution candidates.
func (r *Resolver) lookupCache(stableID string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(r.cacheDir, stableID+".*"))
	if err != nil {
		return "", false
	}
	for _, match := range matches {
		if strings.HasSuffix(match, partSuffix) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		return match, true
	}
	return "", false
}

// adoptIntoCache copies an export hit into the cache under the stable id
// so later runs resolve it without walking the export tree again.
func (r *Resolver) adoptIntoCache(stableID, sourcePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(sourcePath))
	if ext == "" {
		ext = ".bin"
	}
	dest := filepath.Join(r.cacheDir, stableID+ext)
	if err := fileutil.CopyFileVerified(sourcePath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// lookupExport searches the unpacked export tree for a file whose stem
// matches the stable id. The index is built once, on first use; Resolve
// runs concurrently across pipeline workers.
func (r *Resolver) lookupExport(stableID string) (string, bool) {
	if r.exportRoot == "" {
		return "", false
	}
	r.exportOnce.Do(func() {
		r.exportIndex = buildExportIndex(r.exportRoot)
	})
	path, ok := r.exportIndex[strings.ToLower(stableID)]
	return path, ok
}

func buildExportIndex(root string) map[string]string {
	index := make(map[string]string)
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, partSuffix) {
			return nil
		}
		stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		if stem == "" {
			return nil
		}
		if _, exists := index[stem]; !exists {
			index[stem] = path
		}
		return nil
	})
	return index
}

// classifyStatus maps an HTTP response status to the error taxonomy.
// Auth failures are permanent for the whole run; server-side and
// rate-limit statuses are worth retrying.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusMethodNotAllowed:
		return services.ErrAuthRequired
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return services.ErrTransient
	default:
		return services.ErrSourceUnavailable
	}
}

func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func loadCookieJar(cookieFile string) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver: cookie jar: %w", err)
	}
	if cookieFile == "" {
		return jar, nil
	}
	if err := seedCookies(jar, cookieFile); err != nil {
		return nil, err
	}
	return jar, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
