// Package manifest reads the memories_history.json document from a personal
// data export and turns its "Saved Media" array into ingest entries.
package manifest
