package ingest

import (
	"context"
	"time"

	"snapback/internal/catalog"
	"snapback/internal/fileutil"
	"snapback/internal/logging"
	"snapback/internal/manifest"
	"snapback/internal/media/ffprobe"
	"snapback/internal/organize"
	"snapback/internal/services"
)

// Stage names used in the run error ledger.
const (
	StageParse   = "parse"
	StageResolve = "resolve"
	StageFlatten = "flatten"
	StagePlace   = "place"
	StageCatalog = "catalog"
)

// ingestEntry walks one entry through resolve, flatten, place, and catalog.
// It returns the stage that failed alongside the error so the ledger can
// attribute the failure.
func (p *Pipeline) ingestEntry(ctx context.Context, entry manifest.Entry) (string, error) {
	resolved, err := p.resolver.Resolve(services.WithStage(ctx, StageResolve), entry)
	if err != nil {
		return StageResolve, err
	}

	flat, err := p.flattener.Flatten(services.WithStage(ctx, StageFlatten), entry.StableID, entry.Kind, resolved.Path)
	if err != nil {
		return StageFlatten, err
	}

	relPath := organize.Plan(entry, flat)
	destPath, err := p.organizer.Place(flat.Path, relPath)
	if err != nil {
		return StagePlace, err
	}

	record := &catalog.Record{
		StableID:      entry.StableID,
		Kind:          flat.Kind,
		OrganizedPath: destPath,
		CapturedAt:    entry.CapturedAt,
		Latitude:      entry.Latitude,
		Longitude:     entry.Longitude,
	}
	p.enrichRecord(ctx, record, destPath)

	if err := p.store.Upsert(ctx, record); err != nil {
		return StageCatalog, services.Wrap(services.ErrCatalogWrite, StageCatalog, "upsert", "persist catalog record", err)
	}

	logging.WithContext(ctx, p.logger).InfoContext(ctx, "entry cataloged",
		logging.String("path", relPath),
		logging.String("origin", string(resolved.Origin)),
		logging.Bool("composited", flat.Composited))
	return "", nil
}

// enrichRecord fills in size, checksum, and duration metadata. All of it is
// best-effort: a probe failure degrades the record, not the item.
func (p *Pipeline) enrichRecord(ctx context.Context, record *catalog.Record, destPath string) {
	if size, err := fileutil.FileSize(destPath); err == nil {
		record.SizeBytes = size
	}
	if p.cfg.Ingest.ComputeChecksums {
		if sum, err := fileutil.SHA1File(destPath); err == nil {
			record.Checksum = sum
		} else {
			p.logger.WarnContext(ctx, "checksum failed", logging.Error(err))
		}
	}
	if record.Kind == catalog.MediaVideo {
		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		result, err := ffprobe.Inspect(probeCtx, p.cfg.FFmpeg.FFprobeBin, destPath)
		if err != nil {
			p.logger.WarnContext(ctx, "duration probe failed", logging.Error(err))
			return
		}
		if duration := result.DurationSeconds(); duration > 0 {
			record.DurationSec = &duration
		}
	}
}
