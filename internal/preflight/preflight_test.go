package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Library directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for writable dir, got %#v", result)
	}

	result = CheckDirectoryAccess("Library directory", filepath.Join(dir, "missing"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("expected missing-dir failure, got %#v", result)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result = CheckDirectoryAccess("Library directory", file)
	if result.Passed || !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("expected not-a-directory failure, got %#v", result)
	}
}

func TestFailed(t *testing.T) {
	if Failed([]Result{{Passed: true}, {Passed: true}}) {
		t.Error("all-pass results reported as failed")
	}
	if !Failed([]Result{{Passed: true}, {Passed: false}}) {
		t.Error("failing result not reported")
	}
}

func TestCheckBinaries(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "Shell", Command: "sh"},
		{Name: "Missing", Command: "definitely-not-installed-binary"},
		{Name: "Unset", Command: "  "},
	})
	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3", len(statuses))
	}
	if !statuses[0].Available {
		t.Errorf("sh should be available: %+v", statuses[0])
	}
	if statuses[1].Available || !strings.Contains(statuses[1].Detail, "not found") {
		t.Errorf("missing binary = %+v, want not-found detail", statuses[1])
	}
	if statuses[2].Available || !strings.Contains(statuses[2].Detail, "not configured") {
		t.Errorf("blank command = %+v, want not-configured detail", statuses[2])
	}
}
