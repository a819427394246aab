package services

import "context"

type contextKey string

const (
	entryIDContextKey contextKey = "snapback.entry_id"
	stageContextKey   contextKey = "snapback.stage"
	runIDContextKey   contextKey = "snapback.run_id"
)

// WithEntryID attaches a manifest entry identifier to the context.
func WithEntryID(ctx context.Context, entryID string) context.Context {
	if entryID == "" {
		return ctx
	}
	return context.WithValue(ctx, entryIDContextKey, entryID)
}

// EntryIDFromContext extracts the entry identifier if present.
func EntryIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(entryIDContextKey).(string)
	return id, ok && id != ""
}

// WithStage attaches the active pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageContextKey, stage)
}

// StageFromContext extracts the active stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	stage, ok := ctx.Value(stageContextKey).(string)
	return stage, ok && stage != ""
}

// WithRunID attaches the ingestion run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDContextKey, runID)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDContextKey).(string)
	return id, ok && id != ""
}
