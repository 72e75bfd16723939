package store

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
)

// SnapshotManager persists a compact, point-in-time materialization of the
// table so recovery doesn't have to replay the whole WAL from the start.
type SnapshotManager struct {
	path string
}

// NewSnapshotManager creates a manager writing to the given path.
func NewSnapshotManager(path string) *SnapshotManager {
	return &SnapshotManager{path: path}
}

// Save atomically rewrites the snapshot file in full — no incremental
// snapshots. The temp file carries a random suffix so two snapshot
// attempts racing during shutdown never clobber each other's temp file.
func (s *SnapshotManager) Save(table map[string]string) error {
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}

	tempPath := s.path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	// Rename is atomic on the same filesystem — a crash mid-write leaves
	// the previous snapshot intact since the rename never happened.
	return os.Rename(tempPath, s.path)
}

// Load reads the snapshot file, if any. A missing or corrupt file is not an
// error — the caller starts from an empty table and leans on WAL replay.
func (s *SnapshotManager) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return map[string]string{}, nil
	}
	return table, nil
}
