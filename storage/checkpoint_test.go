package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ncr_ingest/models"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewFileCheckpointStore(path)

	state := &models.CheckpointState{
		City:         "noida",
		Page:         42,
		TotalScraped: 1260,
		Timestamp:    time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a checkpoint")
	}
	if loaded.City != "noida" || loaded.Page != 42 || loaded.TotalScraped != 1260 {
		t.Fatalf("unexpected state: %+v", loaded)
	}
	if !loaded.Timestamp.Equal(state.Timestamp) {
		t.Fatalf("timestamp changed: %s vs %s", loaded.Timestamp, state.Timestamp)
	}
}

func TestCheckpointAbsentIsNil(t *testing.T) {
	store := NewFileCheckpointStore(filepath.Join(t.TempDir(), "missing.json"))

	state, err := store.Load()
	if err != nil {
		t.Fatalf("missing checkpoint must not error: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state, got %+v", state)
	}
}

func TestCheckpointCorruptIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte(`{"city": "noida", "page":`), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewFileCheckpointStore(path)
	state, err := store.Load()
	if err == nil {
		t.Fatal("expected parse error for corrupt checkpoint")
	}
	if state != nil {
		t.Fatalf("corrupt load must return nil state, got %+v", state)
	}
}

func TestCheckpointMissingCityIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte(`{"page": 3}`), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewFileCheckpointStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected error for checkpoint without a city")
	}
}

func TestCheckpointSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")
	store := NewFileCheckpointStore(path)

	for page := 1; page <= 5; page++ {
		state := &models.CheckpointState{
			City:         "noida",
			Page:         page,
			TotalScraped: page * 30,
			Timestamp:    time.Now(),
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("save page %d failed: %v", page, err)
		}
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Page != 5 || loaded.TotalScraped != 150 {
		t.Fatalf("unexpected final state: %+v", loaded)
	}

	// The temp file from the rename dance must not linger.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp checkpoint file left behind")
	}
}

func TestCheckpointSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "checkpoint.json")
	store := NewFileCheckpointStore(path)

	state := &models.CheckpointState{City: "noida", Page: 1, Timestamp: time.Now()}
	if err := store.Save(state); err != nil {
		t.Fatalf("save into missing directory failed: %v", err)
	}
	if _, err := store.Load(); err != nil {
		t.Fatalf("load back failed: %v", err)
	}
}
