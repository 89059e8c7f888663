package model

import "time"

// BackupType classifies what a Backup covers (spec §3 "Backup").
type BackupType string

const (
	BackupZoneFile     BackupType = "zone_file"
	BackupRPZFile      BackupType = "rpz_file"
	BackupConfiguration BackupType = "configuration"
	BackupFullConfig   BackupType = "full_config"
)

// FileChecksum pairs an original on-disk path with the checksum of the copy
// stored under the backup root.
type FileChecksum struct {
	OriginalPath string `json:"original_path"`
	StoredPath   string `json:"stored_path"`
	SHA256       string `json:"sha256"`
}

// Backup is a content-addressed set of file copies with metadata
// (spec §3 "Backup", §4.3).
type Backup struct {
	ID           string         `json:"backup_id"`
	Type         BackupType     `json:"backup_type"`
	CreatedAt    time.Time      `json:"created_at"`
	Description  string         `json:"description,omitempty"`
	Files        []FileChecksum `json:"files"`
	RelatedFiles []string       `json:"related_files,omitempty"` // full_config only
	Created      []string       `json:"created,omitempty"`       // paths that didn't exist yet when this backup was taken
}
