// Package catalog persists the media catalog and the ingestion run ledger in
// a single SQLite database. The pipeline only upserts records and appends to
// the run/error tables; queries and user-field mutations exist for the
// serving layer and operator tooling.
package catalog
