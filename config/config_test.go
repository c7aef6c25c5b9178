package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("INGEST_BATCH_PAGES", "5")
	t.Setenv("INGEST_BACKOFF_BASE", "500ms")
	t.Setenv("STORE_BACKEND", "csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Ingest.BatchPages != 5 {
		t.Fatalf("expected batch pages 5, got %d", cfg.Ingest.BatchPages)
	}
	if cfg.Ingest.BackoffBase != 500*time.Millisecond {
		t.Fatalf("expected backoff base 500ms, got %s", cfg.Ingest.BackoffBase)
	}
	if cfg.Store.Backend != "csv" {
		t.Fatalf("expected csv backend, got %s", cfg.Store.Backend)
	}
	// Untouched knobs keep their defaults.
	if cfg.Ingest.ConsecutiveEmptyLimit != 5 {
		t.Fatalf("expected default empty limit 5, got %d", cfg.Ingest.ConsecutiveEmptyLimit)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			Ingest: IngestConfig{
				BatchPages:            10,
				ConsecutiveEmptyLimit: 5,
				MaxRetries:            3,
				BackoffBase:           time.Second,
				BackoffMax:            time.Minute,
			},
			Store: StoreConfig{Backend: "sqlite"},
		}
	}

	cfg := base()
	cfg.Ingest.BatchPages = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero batch pages must be rejected")
	}

	cfg = base()
	cfg.Ingest.BackoffMax = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("max below base must be rejected")
	}

	cfg = base()
	cfg.Store.Backend = "mongodb"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend must be rejected")
	}

	cfg = base()
	cfg.Store.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres without a DSN must be rejected")
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestLoadCityConfigs(t *testing.T) {
	dir := t.TempDir()
	writeCity := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeCity("noida.yaml", "name: Noida\nslug: noida\nurl_template: \"https://example.com/noida?page=%d\"\ntarget_count: 10000\nmax_pages: 400\n")
	writeCity("gurugram.yaml", "name: Gurgaon\nslug: gurugram\nurl_template: \"https://example.com/gurgaon?page=%d\"\n")
	writeCity("notes.txt", "not a city file")

	cfg := &Config{Cities: make(map[string]*CityConfig)}
	if err := cfg.loadCityConfigs(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(cfg.Cities) != 2 {
		t.Fatalf("expected 2 cities, got %d", len(cfg.Cities))
	}
	noida := cfg.Cities["noida"]
	if noida == nil || noida.TargetCount != 10000 || noida.MaxPages != 400 {
		t.Fatalf("unexpected noida config: %+v", noida)
	}
	// max_pages left out falls back to a sane cap.
	gurugram := cfg.Cities["gurugram"]
	if gurugram == nil || gurugram.MaxPages != 200 {
		t.Fatalf("unexpected gurugram config: %+v", gurugram)
	}
	if len(cfg.CityOrder) != 2 {
		t.Fatalf("unexpected city order: %v", cfg.CityOrder)
	}
}

func TestLoadCityConfigsRequiresSlug(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: Nowhere\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Cities: make(map[string]*CityConfig)}
	if err := cfg.loadCityConfigs(dir); err == nil {
		t.Fatal("city file without a slug must be rejected")
	}
}

func TestLoadCityConfigsMissingDir(t *testing.T) {
	cfg := &Config{Cities: make(map[string]*CityConfig)}
	if err := cfg.loadCityConfigs(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("missing city dir must not be fatal: %v", err)
	}
}
