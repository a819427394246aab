package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"snapback/internal/fileutil"
	"snapback/internal/logging"
	"snapback/internal/services"
)

const partSuffix = ".part"

// contentTypeExt maps response content types to file extensions. The map
// wins over URL-derived guesses because share links rarely carry a real
// extension.
var contentTypeExt = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"application/zip": ".zip",
}

// download fetches one URL into the cache, retrying transient failures with
// exponential backoff. The body streams into a .part file that is renamed
// into place only after a complete read, so the cache never holds a
// truncated download under its final name.
func (r *Resolver) download(ctx context.Context, stableID, sourceURL string) (string, error) {
	attempts := r.retryAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		path, err := r.downloadOnce(ctx, stableID, sourceURL)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, services.ErrTransient) {
			return "", err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := r.retryBaseDelay * time.Duration(1<<uint(attempt-1))
		if delay > r.retryMaxDelay {
			delay = r.retryMaxDelay
		}
		r.logger.WarnContext(ctx, "retrying download",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err))
		if err := r.sleep(ctx, delay); err != nil {
			return "", services.Wrap(services.ErrTransient, "resolve", "download",
				"canceled while waiting to retry", err)
		}
	}
	return "", services.Wrap(services.ErrTransient, "resolve", "download",
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

func (r *Resolver) downloadOnce(ctx context.Context, stableID, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "resolve", "download", "build request", err)
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrTransient, "resolve", "download", "request canceled", err)
		}
		marker := services.ErrSourceUnavailable
		if isTransportError(err) {
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, "resolve", "download", "http request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := classifyStatus(resp.StatusCode)
		return "", services.Wrap(marker, "resolve", "download",
			fmt.Sprintf("http %d from source", resp.StatusCode), nil)
	}

	ext := guessExtension(resp.Header.Get("Content-Type"), sourceURL)
	finalPath := filepath.Join(r.cacheDir, stableID+ext)
	partPath := finalPath + partSuffix
	if err := fileutil.EnsureParentDir(finalPath); err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "resolve", "download", "create cache dir", err)
	}

	if err := writePartFile(partPath, resp.Body); err != nil {
		marker := services.ErrSourceUnavailable
		if isTransportError(err) {
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, "resolve", "download", "write body", err)
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return "", services.Wrap(services.ErrSourceUnavailable, "resolve", "download", "finalize cache file", err)
	}
	return finalPath, nil
}

func writePartFile(partPath string, body io.Reader) error {
	file, err := os.Create(partPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(partPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(partPath)
		return err
	}
	return nil
}

// guessExtension picks a file extension from the response content type,
// falling back to the URL path. Unknown types get .bin so the cache entry
// still has a findable name.
func guessExtension(contentType, sourceURL string) string {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if ext, ok := contentTypeExt[mediaType]; ok {
				return ext
			}
		}
	}
	if parsed, err := url.Parse(sourceURL); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".bin"
}
