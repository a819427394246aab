package catalog

import (
	"strings"
	"time"
)

// MediaKind distinguishes photo and video entries.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind normalizes free-form media type declarations from the
// export manifest. Unknown values default to photo, matching the export's
// own bias toward still images.
func ParseMediaKind(raw string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "video", "mp4", "mov":
		return MediaVideo
	default:
		return MediaPhoto
	}
}

// DefaultExt returns the playable container extension for a media kind.
func (k MediaKind) DefaultExt() string {
	if k == MediaVideo {
		return ".mp4"
	}
	return ".jpg"
}

// Record is one durable catalog row, keyed by the export-assigned stable id.
// Favorite and Tags are user-owned: ingestion upserts never touch them once
// the row exists.
type Record struct {
	StableID      string
	Kind          MediaKind
	OrganizedPath string
	ThumbnailPath string
	CapturedAt    *time.Time
	Latitude      *float64
	Longitude     *float64
	Favorite      bool
	Tags          []string
	SizeBytes     int64
	Checksum      string
	DurationSec   *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RunStatus is the terminal disposition of an ingestion run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// Run records one execution of the ingestion pipeline.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Attempted  int
	Succeeded  int
	Failed     int
	Status     RunStatus
}

// Counts is the attempted/succeeded/failed triple finalized onto a run.
type Counts struct {
	Attempted int
	Succeeded int
	Failed    int
}

// ItemError is one append-only error ledger row: a single item failure
// within a single run.
type ItemError struct {
	ID        int64
	RunID     string
	StableID  string
	Stage     string
	Message   string
	CreatedAt time.Time
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	Kind          MediaKind
	FavoritesOnly bool
	Year          int
	Month         int
	Limit         int
	Offset        int
}
