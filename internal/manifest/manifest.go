package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"snapback/internal/catalog"
)

// Entry is one parsed manifest entry: a single memory the pipeline should
// ingest. Identity is the export-assigned stable id, never regenerated here.
type Entry struct {
	Index            int
	StableID         string
	Kind             catalog.MediaKind
	CapturedAt       *time.Time
	Latitude         *float64
	Longitude        *float64
	LocationLabel    string
	DownloadLink     string
	MediaDownloadURL string
}

// SourceURLs returns the entry's download candidates in preference order,
// deduplicated. The direct media URL comes before the share link.
func (e Entry) SourceURLs() []string {
	candidates := []string{strings.TrimSpace(e.MediaDownloadURL), strings.TrimSpace(e.DownloadLink)}
	seen := make(map[string]struct{}, 2)
	urls := make([]string, 0, 2)
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		urls = append(urls, candidate)
	}
	return urls
}

// ParseError describes one manifest entry that could not be parsed. The
// reader reports these instead of aborting: a bad entry is an item failure,
// not a run failure.
type ParseError struct {
	Index int
	Err   error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e ParseError) Unwrap() error { return e.Err }

// Document is a fully read manifest: parseable entries plus per-entry
// parse failures.
type Document struct {
	Entries []Entry
	Skipped []ParseError
}

type rawEntry struct {
	Date             string `json:"Date"`
	MediaType        string `json:"Media Type"`
	Location         string `json:"Location"`
	DownloadLink     string `json:"Download Link"`
	MediaDownloadURL string `json:"Media Download Url"`
}

type rawDocument struct {
	SavedMedia []json.RawMessage `json:"Saved Media"`
}

// Load reads and parses the manifest file at path.
func Load(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes a manifest document from r. A document without the
// "Saved Media" array is malformed and fails wholesale.
func Parse(r io.Reader) (*Document, error) {
	var raw rawDocument
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if raw.SavedMedia == nil {
		return nil, errors.New(`manifest missing expected key: "Saved Media"`)
	}

	doc := &Document{Entries: make([]Entry, 0, len(raw.SavedMedia))}
	for index, message := range raw.SavedMedia {
		entry, err := parseEntry(message, index)
		if err != nil {
			doc.Skipped = append(doc.Skipped, ParseError{Index: index, Err: err})
			continue
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc, nil
}

func parseEntry(message json.RawMessage, index int) (Entry, error) {
	var raw rawEntry
	if err := json.Unmarshal(message, &raw); err != nil {
		return Entry{}, fmt.Errorf("entry is not a JSON object: %w", err)
	}

	downloadLink := strings.TrimSpace(raw.DownloadLink)
	mediaURL := strings.TrimSpace(raw.MediaDownloadURL)

	stableID, err := stableIDFromURLs(downloadLink, mediaURL)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Index:            index,
		StableID:         stableID,
		Kind:             catalog.ParseMediaKind(raw.MediaType),
		DownloadLink:     downloadLink,
		MediaDownloadURL: mediaURL,
	}
	if len(entry.SourceURLs()) == 0 {
		return Entry{}, errors.New("missing download URL")
	}

	entry.CapturedAt = parseCaptureTime(raw.Date)
	entry.Latitude, entry.Longitude = parseLatLon(raw.Location)
	if entry.Latitude != nil && entry.Longitude != nil {
		entry.LocationLabel = fmt.Sprintf("%.6f, %.6f", *entry.Latitude, *entry.Longitude)
	}
	return entry, nil
}

// stableIDFromURLs pulls the export's media id from the mid or sid query
// parameter of either URL.
func stableIDFromURLs(urls ...string) (string, error) {
	for _, key := range []string{"mid", "sid"} {
		for _, candidate := range urls {
			if candidate == "" {
				continue
			}
			parsed, err := url.Parse(candidate)
			if err != nil {
				continue
			}
			if value := parsed.Query().Get(key); value != "" {
				return sanitizeStableID(value)
			}
		}
	}
	return "", errors.New("missing stable id from URL params (mid/sid)")
}

var stableIDUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitizeStableID(raw string) (string, error) {
	cleaned := stableIDUnsafe.ReplaceAllString(strings.TrimSpace(raw), "_")
	if strings.Trim(cleaned, "_") == "" {
		return "", errors.New("stable id is empty after sanitization")
	}
	return cleaned, nil
}

// parseCaptureTime accepts the export's "2006-01-02 15:04:05 UTC" form and
// RFC3339 variants. Anything else yields no timestamp rather than an error;
// undated entries are still ingested under the unknown_date bucket.
func parseCaptureTime(raw string) *time.Time {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if ts, err := time.Parse("2006-01-02 15:04:05 UTC", text); err == nil {
		utc := ts.UTC()
		return &utc
	}
	if ts, err := time.Parse(time.RFC3339, text); err == nil {
		utc := ts.UTC()
		return &utc
	}
	return nil
}

var latLonPattern = regexp.MustCompile(`([-+]?\d+\.\d+)\s*,\s*([-+]?\d+\.\d+)`)

func parseLatLon(location string) (*float64, *float64) {
	match := latLonPattern.FindStringSubmatch(location)
	if match == nil {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(match[1], 64)
	lon, err2 := strconv.ParseFloat(match[2], 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &lat, &lon
}
