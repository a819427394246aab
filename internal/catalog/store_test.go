package catalog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"snapback/internal/catalog"
)

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "snapback.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func sampleRecord(id string) *catalog.Record {
	captured := time.Date(2024, 2, 22, 17, 41, 19, 0, time.UTC)
	lat, lon := 34.0522, -118.2437
	return &catalog.Record{
		StableID:      id,
		Kind:          catalog.MediaPhoto,
		OrganizedPath: "/library/2024/02/2024-02-22_17-41-19Z__34.0522_-118.2437__" + id + ".jpg",
		CapturedAt:    &captured,
		Latitude:      &lat,
		Longitude:     &lon,
		SizeBytes:     1024,
	}
}

func TestUpsertInsertsAndFetches(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, sampleRecord("abc123")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Kind != catalog.MediaPhoto {
		t.Fatalf("kind = %s", got.Kind)
	}
	if got.CapturedAt == nil || !got.CapturedAt.Equal(time.Date(2024, 2, 22, 17, 41, 19, 0, time.UTC)) {
		t.Fatalf("captured_at = %v", got.CapturedAt)
	}
	if got.Latitude == nil || *got.Latitude != 34.0522 {
		t.Fatalf("latitude = %v", got.Latitude)
	}
	if got.Favorite {
		t.Fatal("new record should not be favorite")
	}
	if len(got.Tags) != 0 {
		t.Fatalf("new record should have no tags, got %v", got.Tags)
	}
}

func TestUpsertPreservesUserOwnedFields(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, sampleRecord("abc123")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.SetFavorite(ctx, "abc123", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	if err := store.SetTags(ctx, "abc123", []string{"a"}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}

	updated := sampleRecord("abc123")
	updated.SizeBytes = 2048
	updated.OrganizedPath = "/library/2024/02/other.jpg"
	updated.Checksum = "deadbeef"
	if err := store.Upsert(ctx, updated); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}

	got, err := store.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Favorite {
		t.Fatal("favorite must survive re-ingestion")
	}
	if len(got.Tags) != 1 || got.Tags[0] != "a" {
		t.Fatalf("tags must survive re-ingestion, got %v", got.Tags)
	}
	if got.SizeBytes != 2048 {
		t.Fatalf("non-user fields must refresh, size = %d", got.SizeBytes)
	}
	if got.Checksum != "deadbeef" {
		t.Fatalf("checksum must refresh, got %q", got.Checksum)
	}
	if got.OrganizedPath != "/library/2024/02/other.jpg" {
		t.Fatalf("organized path must refresh, got %q", got.OrganizedPath)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	record := sampleRecord("stable-1")
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	first, err := store.Get(ctx, "stable-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	second, err := store.Get(ctx, "stable-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if first.OrganizedPath != second.OrganizedPath || first.SizeBytes != second.SizeBytes {
		t.Fatalf("idempotent upsert drifted: %#v vs %#v", first, second)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestUpsertRequiresIdentity(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	record := sampleRecord("x")
	record.StableID = ""
	if err := store.Upsert(ctx, record); err == nil {
		t.Fatal("expected error for empty stable id")
	}

	record = sampleRecord("x")
	record.OrganizedPath = ""
	if err := store.Upsert(ctx, record); err == nil {
		t.Fatal("expected error for empty organized path")
	}
}

func TestListFilters(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	photo := sampleRecord("photo-1")
	if err := store.Upsert(ctx, photo); err != nil {
		t.Fatalf("Upsert photo: %v", err)
	}

	video := sampleRecord("video-1")
	video.Kind = catalog.MediaVideo
	capturedLater := time.Date(2023, 7, 4, 12, 0, 0, 0, time.UTC)
	video.CapturedAt = &capturedLater
	if err := store.Upsert(ctx, video); err != nil {
		t.Fatalf("Upsert video: %v", err)
	}

	undated := sampleRecord("undated-1")
	undated.CapturedAt = nil
	if err := store.Upsert(ctx, undated); err != nil {
		t.Fatalf("Upsert undated: %v", err)
	}
	if err := store.SetFavorite(ctx, "undated-1", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}

	videos, err := store.List(ctx, catalog.ListFilter{Kind: catalog.MediaVideo})
	if err != nil {
		t.Fatalf("List videos: %v", err)
	}
	if len(videos) != 1 || videos[0].StableID != "video-1" {
		t.Fatalf("unexpected videos: %#v", videos)
	}

	favorites, err := store.List(ctx, catalog.ListFilter{FavoritesOnly: true})
	if err != nil {
		t.Fatalf("List favorites: %v", err)
	}
	if len(favorites) != 1 || favorites[0].StableID != "undated-1" {
		t.Fatalf("unexpected favorites: %#v", favorites)
	}

	feb2024, err := store.List(ctx, catalog.ListFilter{Year: 2024, Month: 2})
	if err != nil {
		t.Fatalf("List by month: %v", err)
	}
	if len(feb2024) != 1 || feb2024[0].StableID != "photo-1" {
		t.Fatalf("unexpected month filter result: %#v", feb2024)
	}

	all, err := store.List(ctx, catalog.ListFilter{})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[len(all)-1].StableID != "undated-1" {
		t.Fatalf("undated records should sort last: %#v", all)
	}

	limited, err := store.List(ctx, catalog.ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 record, got %d", len(limited))
	}
}

func TestSetFavoriteUnknownRecord(t *testing.T) {
	store := openStore(t)
	if err := store.SetFavorite(context.Background(), "ghost", true); err == nil {
		t.Fatal("expected error for unknown record")
	}
	if err := store.SetTags(context.Background(), "ghost", []string{"x"}); err == nil {
		t.Fatal("expected error for unknown record")
	}
}
