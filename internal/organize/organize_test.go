package organize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapback/internal/catalog"
	"snapback/internal/config"
	"snapback/internal/flatten"
	"snapback/internal/logging"
	"snapback/internal/manifest"
	"snapback/internal/services"
)

func f64(v float64) *float64 { return &v }

func ts(value string) *time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPlanNaming(t *testing.T) {
	tests := []struct {
		name   string
		entry  manifest.Entry
		result flatten.Result
		want   string
	}{
		{
			name: "timestamp and coordinates",
			entry: manifest.Entry{
				StableID:   "abc123",
				CapturedAt: ts("2024-02-22T17:41:19Z"),
				Latitude:   f64(34.0522),
				Longitude:  f64(-118.2437),
			},
			result: flatten.Result{Path: "/scratch/abc123-flat.jpg", Kind: catalog.MediaPhoto},
			want:   "2024/02/2024-02-22_17-41-19Z__34.0522_-118.2437__abc123.jpg",
		},
		{
			name: "timestamp without coordinates",
			entry: manifest.Entry{
				StableID:   "vid9",
				CapturedAt: ts("2023-11-05T08:00:00Z"),
			},
			result: flatten.Result{Path: "/scratch/vid9-flat.mp4", Kind: catalog.MediaVideo},
			want:   "2023/11/2023-11-05_08-00-00Z__vid9.mp4",
		},
		{
			name:   "no timestamp",
			entry:  manifest.Entry{StableID: "mystery"},
			result: flatten.Result{Path: "/cache/mystery.png", Kind: catalog.MediaPhoto},
			want:   "unknown_date/mystery.png",
		},
		{
			name: "non-UTC timestamp normalized",
			entry: manifest.Entry{
				StableID:   "tz1",
				CapturedAt: ts("2024-02-22T12:41:19-05:00"),
			},
			result: flatten.Result{Path: "/cache/tz1.jpg", Kind: catalog.MediaPhoto},
			want:   "2024/02/2024-02-22_17-41-19Z__tz1.jpg",
		},
		{
			name: "jpeg extension normalized",
			entry: manifest.Entry{
				StableID:   "ext1",
				CapturedAt: ts("2024-01-01T00:00:00Z"),
			},
			result: flatten.Result{Path: "/cache/ext1.JPEG", Kind: catalog.MediaPhoto},
			want:   "2024/01/2024-01-01_00-00-00Z__ext1.jpg",
		},
		{
			name: "unusable extension falls back to kind default",
			entry: manifest.Entry{
				StableID:   "bin1",
				CapturedAt: ts("2024-01-01T00:00:00Z"),
			},
			result: flatten.Result{Path: "/cache/bin1.bin", Kind: catalog.MediaVideo},
			want:   "2024/01/2024-01-01_00-00-00Z__bin1.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plan(tt.entry, tt.result); got != tt.want {
				t.Errorf("Plan = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	entry := manifest.Entry{
		StableID:   "same",
		CapturedAt: ts("2024-06-01T12:00:00Z"),
		Latitude:   f64(1.5),
		Longitude:  f64(-2.25),
	}
	result := flatten.Result{Path: "/scratch/same-flat.jpg", Kind: catalog.MediaPhoto}
	first := Plan(entry, result)
	for i := 0; i < 5; i++ {
		if got := Plan(entry, result); got != first {
			t.Fatalf("Plan changed between calls: %q then %q", first, got)
		}
	}
}

func newTestOrganizer(t *testing.T) *Organizer {
	t.Helper()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.LibraryDir = t.TempDir()
	return New(cfg, logging.NewNop())
}

func TestPlaceCopiesIntoLibrary(t *testing.T) {
	o := newTestOrganizer(t)
	source := filepath.Join(t.TempDir(), "flat.jpg")
	if err := os.WriteFile(source, []byte("flattened media"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest, err := o.Place(source, filepath.Join("2024", "02", "photo.jpg"))
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "flattened media" {
		t.Errorf("placed content = %q", data)
	}
}

func TestPlaceIsIdempotent(t *testing.T) {
	o := newTestOrganizer(t)
	source := filepath.Join(t.TempDir(), "flat.jpg")
	if err := os.WriteFile(source, []byte("same bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	rel := filepath.Join("2024", "02", "photo.jpg")
	first, err := o.Place(source, rel)
	if err != nil {
		t.Fatalf("first Place: %v", err)
	}
	second, err := o.Place(source, rel)
	if err != nil {
		t.Fatalf("second Place: %v", err)
	}
	if first != second {
		t.Errorf("destinations differ: %q vs %q", first, second)
	}
}

func TestPlaceConflictOnDifferentExistingFile(t *testing.T) {
	o := newTestOrganizer(t)
	source := filepath.Join(t.TempDir(), "flat.jpg")
	if err := os.WriteFile(source, []byte("new content"), 0o644); err != nil {
		t.Fatal(err)
	}

	rel := filepath.Join("2024", "02", "photo.jpg")
	existing := filepath.Join(o.libraryDir, rel)
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("something much longer already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := o.Place(source, rel)
	if !errors.Is(err, services.ErrPlacementConflict) {
		t.Fatalf("error = %v, want ErrPlacementConflict", err)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "something much longer already here" {
		t.Error("conflicting destination was overwritten")
	}
}
