package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classifying pipeline failures. Stage code wraps its errors
// with one of these via Wrap so the orchestrator and the run tracker can make
// classification decisions without string matching.
var (
	// ErrSourceUnavailable: no origin produced bytes after the full fallback chain.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrAuthRequired: the network origin rejected credentials. Fatal for the
	// item, never retried.
	ErrAuthRequired = errors.New("authorization required")
	// ErrTransient: a retryable fault (connection reset, timeout, 5xx).
	ErrTransient = errors.New("transient failure")
	// ErrAmbiguousArchive: an archive did not yield exactly one main asset and
	// at most one overlay.
	ErrAmbiguousArchive = errors.New("ambiguous archive layout")
	// ErrFlattenTimeout: the external transcoder exceeded its time budget.
	ErrFlattenTimeout = errors.New("flatten timeout")
	// ErrFlattenFailed: compositing failed on an archive whose layout was
	// fine (undecodable member, transcoder error).
	ErrFlattenFailed = errors.New("flatten failure")
	// ErrPlacementConflict: a different file already occupies the organized path.
	ErrPlacementConflict = errors.New("placement conflict")
	// ErrCatalogWrite: the catalog store rejected a write. The only per-item
	// failure that aborts the whole run.
	ErrCatalogWrite = errors.New("catalog write failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FatalForRun reports whether a stage error must abort the whole run rather
// than being recorded and skipped.
func FatalForRun(err error) bool {
	return errors.Is(err, ErrCatalogWrite)
}

// Kind returns a short machine-readable label for a classified error, suitable
// for error-ledger rows and log fields.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrAmbiguousArchive):
		return "ambiguous_archive"
	case errors.Is(err, ErrFlattenTimeout):
		return "flatten_timeout"
	case errors.Is(err, ErrFlattenFailed):
		return "flatten_failed"
	case errors.Is(err, ErrPlacementConflict):
		return "placement_conflict"
	case errors.Is(err, ErrCatalogWrite):
		return "catalog_write"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unclassified"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
