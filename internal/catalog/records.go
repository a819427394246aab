package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = "stable_id, media_kind, organized_path, thumbnail_path, captured_at, latitude, longitude, favorite, tags_json, size_bytes, checksum, duration_sec, created_at, updated_at"

// Upsert inserts a record or refreshes every non-user-owned field of an
// existing row. Favorite and tags persist from the stored row: a re-ingest
// never claws back user mutations.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(record.StableID) == "" {
		return errors.New("record stable id is required")
	}
	if record.OrganizedPath == "" {
		return errors.New("record organized path is required")
	}

	tags := record.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO catalog_records (
            stable_id, media_kind, organized_path, thumbnail_path, captured_at,
            latitude, longitude, favorite, tags_json, size_bytes, checksum,
            duration_sec, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(stable_id) DO UPDATE SET
            media_kind = excluded.media_kind,
            organized_path = excluded.organized_path,
            thumbnail_path = excluded.thumbnail_path,
            captured_at = excluded.captured_at,
            latitude = excluded.latitude,
            longitude = excluded.longitude,
            size_bytes = excluded.size_bytes,
            checksum = excluded.checksum,
            duration_sec = excluded.duration_sec,
            updated_at = excluded.updated_at,
            favorite = catalog_records.favorite,
            tags_json = catalog_records.tags_json`,
		record.StableID,
		string(record.Kind),
		record.OrganizedPath,
		nullableString(record.ThumbnailPath),
		nullableTime(record.CapturedAt),
		nullableFloat(record.Latitude),
		nullableFloat(record.Longitude),
		boolToInt(record.Favorite),
		string(tagsJSON),
		record.SizeBytes,
		nullableString(record.Checksum),
		nullableFloat(record.DurationSec),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", record.StableID, err)
	}
	return nil
}

// Get fetches one record by stable id, or nil when unseen.
func (s *Store) Get(ctx context.Context, stableID string) (*Record, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+recordColumns+` FROM catalog_records WHERE stable_id = ?`,
		stableID,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// List returns records matching the filter, newest capture first with
// undated records last.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Kind != "" {
		clauses = append(clauses, "media_kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.FavoritesOnly {
		clauses = append(clauses, "favorite = 1")
	}
	if filter.Year > 0 {
		clauses = append(clauses, "strftime('%Y', captured_at) = ?")
		args = append(args, fmt.Sprintf("%04d", filter.Year))
	}
	if filter.Month > 0 {
		clauses = append(clauses, "strftime('%m', captured_at) = ?")
		args = append(args, fmt.Sprintf("%02d", filter.Month))
	}

	query := `SELECT ` + recordColumns + ` FROM catalog_records`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY captured_at IS NULL, captured_at DESC, stable_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Count returns the number of catalog rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM catalog_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// SetFavorite flips the user-owned favorite flag. Serving-layer mutation:
// the ingestion pipeline never calls this.
func (s *Store) SetFavorite(ctx context.Context, stableID string, favorite bool) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE catalog_records SET favorite = ?, updated_at = ? WHERE stable_id = ?`,
		boolToInt(favorite),
		time.Now().UTC().Format(time.RFC3339Nano),
		stableID,
	)
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no catalog record for %s", stableID)
	}
	return nil
}

// SetTags replaces the user-owned tag list. Serving-layer mutation.
func (s *Store) SetTags(ctx context.Context, stableID string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE catalog_records SET tags_json = ?, updated_at = ? WHERE stable_id = ?`,
		string(tagsJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		stableID,
	)
	if err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no catalog record for %s", stableID)
	}
	return nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		stableID   string
		kind       string
		organized  string
		thumbnail  sql.NullString
		capturedAt sql.NullString
		latitude   sql.NullFloat64
		longitude  sql.NullFloat64
		favorite   sql.NullInt64
		tagsJSON   sql.NullString
		sizeBytes  sql.NullInt64
		checksum   sql.NullString
		duration   sql.NullFloat64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(
		&stableID,
		&kind,
		&organized,
		&thumbnail,
		&capturedAt,
		&latitude,
		&longitude,
		&favorite,
		&tagsJSON,
		&sizeBytes,
		&checksum,
		&duration,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		StableID:      stableID,
		Kind:          MediaKind(kind),
		OrganizedPath: organized,
		ThumbnailPath: thumbnail.String,
		SizeBytes:     sizeBytes.Int64,
		Checksum:      checksum.String,
		Favorite:      favorite.Valid && favorite.Int64 != 0,
	}
	if capturedAt.Valid {
		if ts, err := parseTimeString(capturedAt.String); err == nil {
			utc := ts.UTC()
			record.CapturedAt = &utc
		}
	}
	if latitude.Valid {
		v := latitude.Float64
		record.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		record.Longitude = &v
	}
	if duration.Valid {
		v := duration.Float64
		record.DurationSec = &v
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &record.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", stableID, err)
		}
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}
