// Package ingest orchestrates full ingestion runs: manifest parsing, a
// bounded worker pool walking each entry through resolve, flatten, and
// placement, and durable run accounting in the catalog.
package ingest
