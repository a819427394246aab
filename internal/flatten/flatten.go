package flatten

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"snapback/internal/catalog"
	"snapback/internal/config"
	"snapback/internal/fileutil"
	"snapback/internal/logging"
	"snapback/internal/services"
)

// Result is a flattened media file ready for placement. Path points into
// the scratch area for composited output, or at the resolved source for
// passthrough files.
type Result struct {
	Path       string
	Kind       catalog.MediaKind
	Composited bool
}

// Flattener turns resolved media files into single flat files. Archives
// holding a base frame plus an overlay are composited; everything else
// passes through untouched.
type Flattener struct {
	scratchDir  string
	ffmpegBin   string
	timeout     float64
	keepScratch bool
	classifier  Classifier
	logger      *slog.Logger
}

// New constructs a flattener from the runtime configuration.
func New(cfg *config.Config, logger *slog.Logger) *Flattener {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Flattener{
		scratchDir:  cfg.Paths.ScratchDir,
		ffmpegBin:   cfg.FFmpeg.FFmpegBin,
		timeout:     cfg.FlattenTimeout().Seconds(),
		keepScratch: cfg.Ingest.KeepScratch,
		classifier:  DefaultClassifier{},
		logger:      logging.NewComponentLogger(logger, "flatten"),
	}
}

// SetClassifier replaces the archive member classifier.
func (f *Flattener) SetClassifier(c Classifier) {
	if c != nil {
		f.classifier = c
	}
}

// Flatten produces a single flat media file for the entry. kind is the
// manifest's declared media type, used when the source carries no usable
// extension.
func (f *Flattener) Flatten(ctx context.Context, stableID string, kind catalog.MediaKind, sourcePath string) (Result, error) {
	isArchive, err := isZipArchive(sourcePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrSourceUnavailable, "flatten", "inspect", "read source header", err)
	}
	if !isArchive {
		return Result{Path: sourcePath, Kind: kindForFile(sourcePath, kind)}, nil
	}

	scratch := filepath.Join(f.scratchDir, stableID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrSourceUnavailable, "flatten", "extract", "create scratch dir", err)
	}
	if !f.keepScratch {
		defer os.RemoveAll(scratch)
	}

	members, err := extractArchive(sourcePath, filepath.Join(scratch, "members"))
	if err != nil {
		return Result{}, err
	}

	main, overlay, err := pickLayers(members, f.classifier)
	if err != nil {
		return Result{}, err
	}

	mainKind := kindForFile(main, kind)
	if overlay == "" {
		// Single recognizable member, nothing to composite. Copy out of the
		// scratch dir since it is removed on return.
		out := filepath.Join(f.scratchDir, stableID+"-flat"+strings.ToLower(filepath.Ext(main)))
		if err := fileutil.CopyFileVerified(main, out); err != nil {
			return Result{}, services.Wrap(services.ErrSourceUnavailable, "flatten", "extract", "copy archive member", err)
		}
		return Result{Path: out, Kind: mainKind}, nil
	}

	f.logger.DebugContext(ctx, "compositing overlay",
		logging.String("main", filepath.Base(main)),
		logging.String("overlay", filepath.Base(overlay)))

	switch mainKind {
	case catalog.MediaPhoto:
		out := filepath.Join(f.scratchDir, stableID+"-flat.jpg")
		if err := compositeImage(main, overlay, out); err != nil {
			return Result{}, err
		}
		return Result{Path: out, Kind: catalog.MediaPhoto, Composited: true}, nil
	case catalog.MediaVideo:
		out := filepath.Join(f.scratchDir, stableID+"-flat.mp4")
		if err := f.compositeVideo(ctx, main, overlay, out); err != nil {
			return Result{}, err
		}
		return Result{Path: out, Kind: catalog.MediaVideo, Composited: true}, nil
	default:
		return Result{}, services.Wrap(services.ErrAmbiguousArchive, "flatten", "classify",
			fmt.Sprintf("cannot composite media kind %q", mainKind), nil)
	}
}

// kindForFile infers photo/video from the file extension, falling back to
// the manifest's declared kind.
func kindForFile(path string, declared catalog.MediaKind) catalog.MediaKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
		return catalog.MediaPhoto
	case ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return catalog.MediaVideo
	default:
		return declared
	}
}

var errNoMainMember = errors.New("archive has no recognizable media member")
