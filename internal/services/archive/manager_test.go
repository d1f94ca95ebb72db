package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/interfaces"
)

// recordingDeleter tracks reaper cascades into the job store
type recordingDeleter struct {
	mu      sync.Mutex
	deleted []string
	missing map[string]bool
}

func (d *recordingDeleter) DeleteGroup(ctx context.Context, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.missing[groupID] {
		return fmt.Errorf("group %s: %w", groupID, interfaces.ErrNotFound)
	}
	d.deleted = append(d.deleted, groupID)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *recordingDeleter, string, string) {
	t.Helper()

	outputsDir := filepath.Join(t.TempDir(), "outputs")
	resultsDir := filepath.Join(t.TempDir(), "results")
	if err := os.MkdirAll(outputsDir, 0755); err != nil {
		t.Fatalf("Failed to create outputs dir: %v", err)
	}

	deleter := &recordingDeleter{missing: make(map[string]bool)}
	manager, err := NewManager(&common.ArchiveConfig{OutputsDir: outputsDir, ResultsDir: resultsDir}, deleter, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return manager, deleter, outputsDir, resultsDir
}

func writeRawOutput(t *testing.T, outputsDir, groupID, name, content string) {
	t.Helper()
	dir := filepath.Join(outputsDir, groupID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create raw dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write raw file: %v", err)
	}
}

func zipEntryNames(t *testing.T, path string) []string {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}
	defer reader.Close()

	names := make([]string, len(reader.File))
	for i, f := range reader.File {
		names[i] = f.Name
	}
	return names
}

func TestArchive(t *testing.T) {
	manager, _, outputsDir, _ := newTestManager(t)

	writeRawOutput(t, outputsDir, "g1", "site_survey_a.json", `{"site_id":"SYD-001"}`)
	writeRawOutput(t, outputsDir, "g1", "kpi_export_b.json", `{"report":"availability"}`)

	created, err := manager.Archive("g1")
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if !created {
		t.Fatal("Expected archive to be created")
	}

	// The bundle keeps the <gid>/... structure
	names := zipEntryNames(t, manager.ZipPath("g1"))
	if len(names) != 2 {
		t.Fatalf("Expected 2 entries, got %v", names)
	}
	for _, name := range names {
		if filepath.Dir(name) != "g1" {
			t.Errorf("Entry %q not rooted under the group directory", name)
		}
	}

	// Raw directory is gone once the archive is promoted
	if _, err := os.Stat(manager.RawDir("g1")); !os.IsNotExist(err) {
		t.Error("Expected raw directory to be removed after archiving")
	}

	// No leftover temp file
	if _, err := os.Stat(filepath.Join(outputsDir, "g1.zip.tmp")); !os.IsNotExist(err) {
		t.Error("Expected temp file to be cleaned up")
	}
}

func TestArchiveNothingToArchive(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	created, err := manager.Archive("empty-group")
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if created {
		t.Error("Expected no archive for a group without raw outputs")
	}
	if _, err := os.Stat(manager.ZipPath("empty-group")); !os.IsNotExist(err) {
		t.Error("Expected no zip file to exist")
	}
}

func TestEnsure(t *testing.T) {
	manager, _, outputsDir, _ := newTestManager(t)

	t.Run("builds lazily from raw outputs", func(t *testing.T) {
		writeRawOutput(t, outputsDir, "g2", "out.json", "{}")

		path, err := manager.Ensure("g2")
		if err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
		if path != manager.ZipPath("g2") {
			t.Errorf("Unexpected path %s", path)
		}

		// Second call hits the existing archive
		again, err := manager.Ensure("g2")
		if err != nil {
			t.Fatalf("Second Ensure failed: %v", err)
		}
		if again != path {
			t.Errorf("Expected stable path, got %s", again)
		}
	})

	t.Run("not found when nothing exists", func(t *testing.T) {
		_, err := manager.Ensure("no-such-group")
		if !errors.Is(err, interfaces.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got: %v", err)
		}
	})
}

func TestRemove(t *testing.T) {
	manager, _, outputsDir, _ := newTestManager(t)

	writeRawOutput(t, outputsDir, "g3", "out.json", "{}")
	if _, err := manager.Archive("g3"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if !manager.Remove("g3") {
		t.Error("Expected Remove to report an existing archive")
	}
	if manager.Remove("g3") {
		t.Error("Expected second Remove to report nothing")
	}
}

func TestReap(t *testing.T) {
	manager, deleter, outputsDir, resultsDir := newTestManager(t)
	ctx := context.Background()

	for _, gid := range []string{"old-1", "old-2", "fresh"} {
		writeRawOutput(t, outputsDir, gid, "out.json", "{}")
		if _, err := manager.Archive(gid); err != nil {
			t.Fatalf("Archive failed for %s: %v", gid, err)
		}
	}
	// Leave a stale raw directory behind for old-1 to verify the reaper
	// cleans it too
	writeRawOutput(t, outputsDir, "old-1", "late.json", "{}")

	expired := time.Now().Add(-16 * 24 * time.Hour)
	for _, gid := range []string{"old-1", "old-2"} {
		path := filepath.Join(resultsDir, gid+".zip")
		if err := os.Chtimes(path, expired, expired); err != nil {
			t.Fatalf("Failed to age archive %s: %v", gid, err)
		}
	}

	removed, err := manager.Reap(ctx, 15*24*time.Hour)
	if err != nil {
		t.Fatalf("Reap failed: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("Expected 2 reaped groups, got %v", removed)
	}

	for _, gid := range []string{"old-1", "old-2"} {
		if _, err := os.Stat(filepath.Join(resultsDir, gid+".zip")); !os.IsNotExist(err) {
			t.Errorf("Expected archive %s to be deleted", gid)
		}
		if _, err := os.Stat(manager.RawDir(gid)); !os.IsNotExist(err) {
			t.Errorf("Expected raw dir %s to be deleted", gid)
		}
	}
	if len(deleter.deleted) != 2 {
		t.Errorf("Expected store cascade for both groups, got %v", deleter.deleted)
	}

	// The recent archive survives
	if _, err := os.Stat(filepath.Join(resultsDir, "fresh.zip")); err != nil {
		t.Errorf("Fresh archive must survive the sweep: %v", err)
	}

	// Re-running finds nothing left to do
	removed, err = manager.Reap(ctx, 15*24*time.Hour)
	if err != nil {
		t.Fatalf("Second reap failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("Expected idempotent reap, got %v", removed)
	}
}

func TestReapToleratesAlreadyDeletedGroups(t *testing.T) {
	manager, deleter, outputsDir, resultsDir := newTestManager(t)

	writeRawOutput(t, outputsDir, "orphan", "out.json", "{}")
	if _, err := manager.Archive("orphan"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	expired := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(filepath.Join(resultsDir, "orphan.zip"), expired, expired); err != nil {
		t.Fatalf("Failed to age archive: %v", err)
	}

	// Group rows already gone, only the file remains
	deleter.missing["orphan"] = true

	removed, err := manager.Reap(context.Background(), 15*24*time.Hour)
	if err != nil {
		t.Fatalf("Reap failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != "orphan" {
		t.Errorf("Expected orphaned archive to be reaped, got %v", removed)
	}
}
