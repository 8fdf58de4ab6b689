package chat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestArtifactStoreSaveAndSweep(t *testing.T) {
	dir := t.TempDir()
	store, err := NewArtifactStore(dir)
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}

	path, err := store.Save(42, "kept reply")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "message_42_") {
		t.Fatalf("unexpected artifact name %s", filepath.Base(path))
	}

	// Unrelated files in the directory must survive a sweep.
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("age artifact: %v", err)
	}
	if err := os.Chtimes(other, old, old); err != nil {
		t.Fatalf("age unrelated file: %v", err)
	}

	if removed := store.Sweep(time.Hour); removed != 1 {
		t.Fatalf("sweep removed %d, want 1", removed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("aged artifact survived sweep")
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatal("unrelated file removed by sweep")
	}

	fresh, err := store.Save(42, "fresh reply")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if removed := store.Sweep(time.Hour); removed != 0 {
		t.Fatalf("sweep removed fresh artifact")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh artifact missing after sweep")
	}
}
