// Package backupstore is the Backup Store (spec §4.3): a content-addressed
// directory tree of file copies with a single rewritable JSON metadata
// document, guarded by a file lock. Grounded on the teacher's async
// buffered-writer discipline (internal/audit) for its own single-writer
// rule, using gofrs/flock for the cross-process guard the teacher's
// single-process audit buffer didn't need.
package backupstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/dnscp/dnscp/internal/apperrors"
	"github.com/dnscp/dnscp/internal/model"
)

// Store manages backups under a root directory, subdivided by backup type.
type Store struct {
	root          string
	retainPerType int
	retainHorizon time.Duration
}

// NewStore creates a Store rooted at dir, creating the directory tree if
// it doesn't already exist.
func NewStore(dir string, retainPerType int, retainDays int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup root: %w", err)
	}
	return &Store{
		root:          dir,
		retainPerType: retainPerType,
		retainHorizon: time.Duration(retainDays) * 24 * time.Hour,
	}, nil
}

func (s *Store) metaPath() string { return filepath.Join(s.root, "metadata.json") }
func (s *Store) lockPath() string { return filepath.Join(s.root, "metadata.lock") }

func (s *Store) typeDir(t model.BackupType) string {
	return filepath.Join(s.root, string(t))
}

// metadata is the single rewritable document tracking every backup.
type metadata struct {
	Backups []model.Backup `json:"backups"`
}

func (s *Store) loadMetadata() (metadata, error) {
	var m metadata
	b, err := os.ReadFile(s.metaPath())
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("reading backup metadata: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parsing backup metadata: %w", err)
	}
	return m, nil
}

func (s *Store) saveMetadata(m metadata) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup metadata: %w", err)
	}
	tmp := s.metaPath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return fmt.Errorf("writing backup metadata: %w", err)
	}
	return os.Rename(tmp, s.metaPath())
}

// withMetadataLock runs fn with the metadata file locked against concurrent
// writers in this or any other process sharing the backup root.
func (s *Store) withMetadataLock(fn func(metadata) (metadata, error)) error {
	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return apperrors.Wrap(apperrors.KindBackupFailed, "acquiring metadata lock", err)
	}
	if !locked {
		return apperrors.Wrap(apperrors.KindBackupFailed, "metadata lock held by another writer", nil)
	}
	defer fl.Unlock()

	m, err := s.loadMetadata()
	if err != nil {
		return apperrors.Wrap(apperrors.KindBackupFailed, "loading metadata", err)
	}
	updated, err := fn(m)
	if err != nil {
		return err
	}
	if err := s.saveMetadata(updated); err != nil {
		return apperrors.Wrap(apperrors.KindBackupFailed, "saving metadata", err)
	}
	return nil
}

// Create copies every path in paths that currently exists into the
// content-addressed tree under btype, and records a new Backup entry (spec
// §4.3 "create"). Paths that don't exist yet are recorded under Created
// instead of copied — Restore uses that list to remove files a failed
// transaction created from nothing, since a file with no prior content has
// no checksum to restore.
func (s *Store) Create(paths []string, btype model.BackupType, description string) (string, error) {
	if err := os.MkdirAll(s.typeDir(btype), 0o750); err != nil {
		return "", apperrors.Wrap(apperrors.KindBackupFailed, "creating type directory", err)
	}

	id := uuid.NewString()
	backup := model.Backup{
		ID:          id,
		Type:        btype,
		CreatedAt:   time.Now(),
		Description: description,
	}

	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			backup.Created = append(backup.Created, p)
			continue
		}
		sum, storedPath, err := s.copyFile(p, btype)
		if err != nil {
			return "", apperrors.Wrap(apperrors.KindBackupFailed, fmt.Sprintf("backing up %s", p), err)
		}
		backup.Files = append(backup.Files, model.FileChecksum{
			OriginalPath: p,
			StoredPath:   storedPath,
			SHA256:       sum,
		})
	}

	err := s.withMetadataLock(func(m metadata) (metadata, error) {
		m.Backups = append(m.Backups, backup)
		return m, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// copyFile copies src into the content-addressed tree for btype and returns
// its SHA-256 and stored path. Identical content is stored once.
func (s *Store) copyFile(src string, btype model.BackupType) (sum, storedPath string, err error) {
	f, err := os.Open(src)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	h := sha256.New()
	tmp, err := os.CreateTemp(s.typeDir(btype), "stage-*")
	if err != nil {
		return "", "", err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(io.MultiWriter(h, tmp), f); err != nil {
		return "", "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", "", err
	}
	tmp.Close()

	digest := hex.EncodeToString(h.Sum(nil))
	dest := filepath.Join(s.typeDir(btype), digest)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		if err := os.Rename(tmp.Name(), dest); err != nil {
			return "", "", err
		}
	} else {
		os.Remove(tmp.Name())
	}
	return digest, dest, nil
}

// List returns backups of the given type, newest first. A zero btype
// returns every backup.
func (s *Store) List(btype model.BackupType) ([]model.Backup, error) {
	m, err := s.loadMetadata()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindBackupFailed, "loading metadata", err)
	}
	var out []model.Backup
	for _, b := range m.Backups {
		if btype == "" || b.Type == btype {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Get fetches a single backup's metadata by ID.
func (s *Store) Get(id string) (model.Backup, error) {
	m, err := s.loadMetadata()
	if err != nil {
		return model.Backup{}, apperrors.Wrap(apperrors.KindBackupFailed, "loading metadata", err)
	}
	for _, b := range m.Backups {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Backup{}, apperrors.NotFound("backup", id)
}

// Verify recomputes the checksum of every stored file copy and compares it
// against the recorded one (spec §4.3 "verify").
func (s *Store) Verify(id string) error {
	b, err := s.Get(id)
	if err != nil {
		return err
	}
	for _, f := range b.Files {
		sum, err := sha256File(f.StoredPath)
		if err != nil {
			return apperrors.Wrap(apperrors.KindBackupFailed, fmt.Sprintf("reading %s", f.StoredPath), err)
		}
		if sum != f.SHA256 {
			return apperrors.Wrap(apperrors.KindBackupFailed,
				fmt.Sprintf("checksum mismatch for %s: want %s got %s", f.StoredPath, f.SHA256, sum), nil)
		}
	}
	return nil
}

// Restore copies every file in backup id back to its original path and
// removes every path recorded under Created, since those didn't exist when
// the backup was taken and a failed transaction has no prior content to put
// back (spec §4.3, S3's "every resolver file equals pre-transaction bytes").
// It always creates a pre_restore backup of the current file contents first,
// and the restore is all-or-nothing: if verification of any file fails, the
// restore is aborted and the pre_restore backup is left intact.
func (s *Store) Restore(id string) error {
	b, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.Verify(id); err != nil {
		return err
	}

	var originals []string
	for _, f := range b.Files {
		originals = append(originals, f.OriginalPath)
	}
	originals = append(originals, b.Created...)
	if _, err := s.Create(originals, model.BackupConfiguration, "pre_restore:"+id); err != nil {
		return apperrors.Wrap(apperrors.KindBackupFailed, "creating pre_restore backup", err)
	}

	for _, f := range b.Files {
		if err := copyFileAtomic(f.StoredPath, f.OriginalPath); err != nil {
			return apperrors.Wrap(apperrors.KindBackupFailed, fmt.Sprintf("restoring %s", f.OriginalPath), err)
		}
	}
	for _, p := range b.Created {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return apperrors.Wrap(apperrors.KindBackupFailed, fmt.Sprintf("removing %s", p), err)
		}
	}
	return nil
}

// Prune drops backups beyond retainPerType per type or older than the
// retention horizon, whichever triggers first (spec §4.3 "prune").
func (s *Store) Prune() (int, error) {
	pruned := 0
	err := s.withMetadataLock(func(m metadata) (metadata, error) {
		byType := make(map[model.BackupType][]model.Backup)
		for _, b := range m.Backups {
			byType[b.Type] = append(byType[b.Type], b)
		}

		cutoff := time.Now().Add(-s.retainHorizon)
		var kept []model.Backup
		for _, backups := range byType {
			sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt.After(backups[j].CreatedAt) })
			for i, b := range backups {
				if i < s.retainPerType && b.CreatedAt.After(cutoff) {
					kept = append(kept, b)
					continue
				}
				pruned++
			}
		}
		return metadata{Backups: kept}, nil
	})
	return pruned, err
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFileAtomic(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".restoring"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	out.Close()
	return os.Rename(tmp, dest)
}
