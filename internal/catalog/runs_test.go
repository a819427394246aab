package catalog_test

import (
	"context"
	"sync"
	"testing"

	"snapback/internal/catalog"
)

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run id")
	}
	if run.Status != catalog.RunRunning {
		t.Fatalf("status = %s", run.Status)
	}

	counts := catalog.Counts{Attempted: 10, Succeeded: 9, Failed: 1}
	if err := store.FinishRun(ctx, run.ID, counts, catalog.RunCompleted); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.RunByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunByID: %v", err)
	}
	if got == nil || got.Status != catalog.RunCompleted {
		t.Fatalf("unexpected run: %#v", got)
	}
	if got.Attempted != 10 || got.Succeeded != 9 || got.Failed != 1 {
		t.Fatalf("counts not persisted: %#v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("finished_at must be set")
	}
}

func TestFinishRunRejectsNonTerminalStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, run.ID, catalog.Counts{}, catalog.RunRunning); err == nil {
		t.Fatal("expected rejection of non-terminal status")
	}
	if err := store.FinishRun(ctx, "missing-run", catalog.Counts{}, catalog.RunAborted); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestRecordErrorAppendsLedger(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	if err := store.RecordError(ctx, run.ID, "abc123", "flatten", "zip had two overlays"); err != nil {
		t.Fatalf("RecordError: %v", err)
	}
	if err := store.RecordError(ctx, run.ID, "", "parse", "missing stable id"); err != nil {
		t.Fatalf("RecordError without id: %v", err)
	}
	if err := store.RecordError(ctx, "", "abc123", "flatten", "msg"); err == nil {
		t.Fatal("expected error for empty run id")
	}

	errs, err := store.ErrorsForRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ErrorsForRun: %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if errs[0].Stage != "flatten" || errs[0].StableID != "abc123" {
		t.Fatalf("unexpected first error: %#v", errs[0])
	}
	if errs[1].StableID != "" {
		t.Fatalf("expected empty stable id, got %q", errs[1].StableID)
	}
}

func TestRecordErrorConcurrent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errCh <- store.RecordError(ctx, run.ID, "id", "resolve", "concurrent failure")
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent RecordError: %v", err)
		}
	}

	errs, err := store.ErrorsForRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ErrorsForRun: %v", err)
	}
	if len(errs) != writers {
		t.Fatalf("expected %d rows, got %d", writers, len(errs))
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, first.ID, catalog.Counts{Attempted: 1, Succeeded: 1}, catalog.RunCompleted); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	second, err := store.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Fatalf("expected newest run first, got %s", runs[0].ID)
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 run, got %d", len(limited))
	}
}
