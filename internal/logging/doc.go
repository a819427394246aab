// Package logging builds the application slog logger (console or JSON
// output), exposes attribute helpers, and derives standardized fields from
// request contexts so every pipeline stage logs entry/run correlation the
// same way.
package logging
