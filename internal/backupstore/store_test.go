package backupstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dnscp/dnscp/internal/model"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o640); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

func TestCreateGetVerify(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	s, err := NewStore(root, 20, 30)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	zoneFile := writeTempFile(t, srcDir, "db.internal.local", "$TTL 3600\n")

	id, err := s.Create([]string{zoneFile}, model.BackupZoneFile, "s1 baseline")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != model.BackupZoneFile || len(got.Files) != 1 {
		t.Fatalf("unexpected backup: %+v", got)
	}

	if err := s.Verify(id); err != nil {
		t.Errorf("Verify of untouched backup failed: %v", err)
	}
}

func TestVerify_DetectsTamper(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	s, _ := NewStore(root, 20, 30)
	zoneFile := writeTempFile(t, srcDir, "db.internal.local", "original\n")

	id, err := s.Create([]string{zoneFile}, model.BackupZoneFile, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	b, _ := s.Get(id)
	if err := os.WriteFile(b.Files[0].StoredPath, []byte("tampered"), 0o640); err != nil {
		t.Fatalf("tampering: %v", err)
	}

	if err := s.Verify(id); err == nil {
		t.Error("expected Verify to detect tampered content")
	}
}

func TestRestore_CreatesPreRestoreBackup(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	s, _ := NewStore(root, 20, 30)
	zoneFile := writeTempFile(t, srcDir, "db.internal.local", "v1\n")

	id, err := s.Create([]string{zoneFile}, model.BackupZoneFile, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := os.WriteFile(zoneFile, []byte("v2\n"), 0o640); err != nil {
		t.Fatalf("mutating original: %v", err)
	}

	if err := s.Restore(id); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := os.ReadFile(zoneFile)
	if err != nil || string(restored) != "v1\n" {
		t.Fatalf("restored content = %q, err %v", restored, err)
	}

	all, err := s.List(model.BackupConfiguration)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one pre_restore backup, got %d", len(all))
	}
}

func TestRestore_RemovesFilesCreatedSincebackup(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	s, _ := NewStore(root, 20, 30)

	keptFile := writeTempFile(t, srcDir, "example.com.zone", "v1\n")
	newZonePath := filepath.Join(srcDir, "newzone.example.zone")

	id, err := s.Create([]string{keptFile, newZonePath}, model.BackupZoneFile, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	b, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(b.Files) != 1 || len(b.Created) != 1 || b.Created[0] != newZonePath {
		t.Fatalf("unexpected backup record: %+v", b)
	}

	if err := os.WriteFile(newZonePath, []byte("$TTL 3600\n"), 0o640); err != nil {
		t.Fatalf("writing new zone file: %v", err)
	}

	if err := s.Restore(id); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if _, err := os.Stat(newZonePath); !os.IsNotExist(err) {
		t.Fatalf("expected newzone file to be removed by Restore, stat err = %v", err)
	}
	if _, err := os.Stat(keptFile); err != nil {
		t.Fatalf("expected kept file to survive Restore: %v", err)
	}
}

func TestPrune_RetainsMostRecentPerType(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	s, _ := NewStore(root, 1, 30)

	f1 := writeTempFile(t, srcDir, "a", "a")
	if _, err := s.Create([]string{f1}, model.BackupZoneFile, "first"); err != nil {
		t.Fatalf("Create 1: %v", err)
	}
	f2 := writeTempFile(t, srcDir, "b", "b")
	if _, err := s.Create([]string{f2}, model.BackupZoneFile, "second"); err != nil {
		t.Fatalf("Create 2: %v", err)
	}

	pruned, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	remaining, err := s.List(model.BackupZoneFile)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Description != "second" {
		t.Fatalf("unexpected remaining backups: %+v", remaining)
	}
}
