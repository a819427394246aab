// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The ingest pipeline uses it to record video durations in the catalog;
// the package itself has no other dependencies in this module.
package ffprobe
