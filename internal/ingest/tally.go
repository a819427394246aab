package ingest

import (
	"sync"

	"snapback/internal/catalog"
)

// runTally accumulates per-item outcomes across the worker pool.
type runTally struct {
	mu        sync.Mutex
	attempted int
	succeeded int
	failed    int
	fatal     bool
}

func (t *runTally) attempt() {
	t.mu.Lock()
	t.attempted++
	t.mu.Unlock()
}

func (t *runTally) succeed() {
	t.mu.Lock()
	t.succeeded++
	t.mu.Unlock()
}

func (t *runTally) fail() {
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
}

func (t *runTally) abort() {
	t.mu.Lock()
	t.fatal = true
	t.mu.Unlock()
}

func (t *runTally) aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fatal
}

func (t *runTally) counts() catalog.Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return catalog.Counts{Attempted: t.attempted, Succeeded: t.succeeded, Failed: t.failed}
}
