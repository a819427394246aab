// Package config loads, validates, and defaults the TOML configuration that
// drives the ingestion pipeline.
package config
