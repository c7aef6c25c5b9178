package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ncr_ingest/models"
)

// FileCheckpointStore keeps the resume marker in a small JSON file. Writes go
// to a temp file in the same directory and are renamed into place, so a crash
// mid-write can never leave a torn checkpoint behind.
type FileCheckpointStore struct {
	path string
}

func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path: path}
}

// Load returns the persisted state, or nil when no checkpoint exists or the
// file is unparsable. A bad checkpoint only costs a fresh start, never the
// run itself, so it is reported as an error for the caller to log and ignore.
func (s *FileCheckpointStore) Load() (*models.CheckpointState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var state models.CheckpointState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	if state.City == "" || state.Page < 0 {
		return nil, fmt.Errorf("checkpoint missing city/page")
	}
	return &state, nil
}

func (s *FileCheckpointStore) Save(state *models.CheckpointState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
