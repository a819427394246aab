package organize

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"snapback/internal/config"
	"snapback/internal/fileutil"
	"snapback/internal/flatten"
	"snapback/internal/logging"
	"snapback/internal/manifest"
	"snapback/internal/services"
)

// Organizer plans deterministic library paths and moves flattened media
// into place. Plans depend only on entry metadata, so re-running an ingest
// lands every file in the same spot.
type Organizer struct {
	libraryDir string
	logger     *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Organizer{
		libraryDir: cfg.Paths.LibraryDir,
		logger:     logging.NewComponentLogger(logger, "organize"),
	}
}

// Plan computes the library-relative path for an entry's flattened file.
// The layout is year/month buckets with a timestamp, optional coordinates,
// and the stable id in the file name; undated media collects under
// unknown_date.
func Plan(entry manifest.Entry, result flatten.Result) string {
	ext := extensionFor(result)
	if entry.CapturedAt == nil {
		return filepath.Join("unknown_date", entry.StableID+ext)
	}

	ts := entry.CapturedAt.UTC()
	stamp := ts.Format("2006-01-02_15-04-05") + "Z"

	var name string
	if entry.Latitude != nil && entry.Longitude != nil {
		lat := strconv.FormatFloat(*entry.Latitude, 'f', -1, 64)
		lon := strconv.FormatFloat(*entry.Longitude, 'f', -1, 64)
		name = fmt.Sprintf("%s__%s_%s__%s%s", stamp, lat, lon, entry.StableID, ext)
	} else {
		name = fmt.Sprintf("%s__%s%s", stamp, entry.StableID, ext)
	}
	return filepath.Join(ts.Format("2006"), ts.Format("01"), name)
}

// extensionFor picks the placed file's extension: the flattened file's own
// extension when it carries a usable one, otherwise the kind's default.
func extensionFor(result flatten.Result) string {
	ext := strings.ToLower(filepath.Ext(result.Path))
	switch ext {
	case ".jpeg":
		return ".jpg"
	case ".jpg", ".png", ".webp", ".heic", ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return ext
	default:
		return result.Kind.DefaultExt()
	}
}

// Place copies the flattened file to its planned path under the library
// root and returns the absolute destination. Placement is idempotent: an
// existing destination with the same size is left alone, a different file
// at the same path is a conflict the item fails on.
func (o *Organizer) Place(sourcePath, relPath string) (string, error) {
	destPath := filepath.Join(o.libraryDir, relPath)

	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrPlacementConflict, "place", "stat", "read flattened file", err)
	}
	if destInfo, err := os.Stat(destPath); err == nil {
		if destInfo.Size() == srcInfo.Size() {
			return destPath, nil
		}
		return "", services.Wrap(services.ErrPlacementConflict, "place", "copy",
			fmt.Sprintf("%s exists with different size (%d != %d bytes)", relPath, destInfo.Size(), srcInfo.Size()), nil)
	}

	if err := fileutil.EnsureParentDir(destPath); err != nil {
		return "", services.Wrap(services.ErrPlacementConflict, "place", "copy", "create library dir", err)
	}
	if err := fileutil.CopyFileVerified(sourcePath, destPath); err != nil {
		return "", services.Wrap(services.ErrPlacementConflict, "place", "copy", "copy into library", err)
	}
	return destPath, nil
}
