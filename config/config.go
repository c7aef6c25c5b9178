package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Ingest    IngestConfig
	Store     StoreConfig
	Scheduler SchedulerConfig
	Fetcher   FetcherConfig
	DBPath    string
	LogPath   string
	Cities    map[string]*CityConfig
	CityOrder []string
}

// IngestConfig holds the batching and failure-policy knobs of the core loop.
// The empty-page and backoff limits are operational tuning, not correctness
// requirements, so all of them are overridable from the environment.
type IngestConfig struct {
	BatchPages            int
	ConsecutiveEmptyLimit int
	MaxRetries            int
	BackoffBase           time.Duration
	BackoffMax            time.Duration
	ShutdownGrace         time.Duration
	CheckpointPath        string
}

type StoreConfig struct {
	Backend string // sqlite, postgres, csv
	PgDSN   string
	CSVPath string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type FetcherConfig struct {
	Handler     string // http or browser
	ProxyURL    string
	DelayMinMS  int
	DelayMaxMS  int
	UserDataDir string
}

// CityConfig is loaded from config/cities/*.yaml, one file per target city.
type CityConfig struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	URLTemplate string `yaml:"url_template"`
	TargetCount int    `yaml:"target_count"`
	MaxPages    int    `yaml:"max_pages"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Ingest: IngestConfig{
			BatchPages:            getEnvInt("INGEST_BATCH_PAGES", 10),
			ConsecutiveEmptyLimit: getEnvInt("INGEST_EMPTY_LIMIT", 5),
			MaxRetries:            getEnvInt("INGEST_MAX_RETRIES", 3),
			BackoffBase:           getEnvDuration("INGEST_BACKOFF_BASE", 2*time.Second),
			BackoffMax:            getEnvDuration("INGEST_BACKOFF_MAX", 2*time.Minute),
			ShutdownGrace:         getEnvDuration("INGEST_SHUTDOWN_GRACE", 30*time.Second),
			CheckpointPath:        getEnv("CHECKPOINT_PATH", "data/checkpoint.json"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "sqlite"),
			PgDSN:   os.Getenv("PG_DSN"),
			CSVPath: getEnv("OUTPUT_CSV", "data/listings.csv"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("INGEST_CRON"),
		},
		Fetcher: FetcherConfig{
			Handler:     getEnv("FETCH_HANDLER", "http"),
			ProxyURL:    os.Getenv("PROXY_URL"),
			DelayMinMS:  getEnvInt("FETCH_DELAY_MIN_MS", 1500),
			DelayMaxMS:  getEnvInt("FETCH_DELAY_MAX_MS", 4000),
			UserDataDir: getEnv("BROWSER_DATA_DIR", "browser_data"),
		},
		DBPath:  getEnv("DB_PATH", "ingest.db"),
		LogPath: getEnv("LOG_PATH", "ingestd.log"),
		Cities:  make(map[string]*CityConfig),
	}

	if interval := os.Getenv("INGEST_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.loadCityConfigs("config/cities"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the ingest loop cannot run with. Invalid
// startup config is a fatal error, never silently corrected.
func (c *Config) Validate() error {
	if c.Ingest.BatchPages < 1 {
		return fmt.Errorf("INGEST_BATCH_PAGES must be >= 1, got %d", c.Ingest.BatchPages)
	}
	if c.Ingest.ConsecutiveEmptyLimit < 1 {
		return fmt.Errorf("INGEST_EMPTY_LIMIT must be >= 1, got %d", c.Ingest.ConsecutiveEmptyLimit)
	}
	if c.Ingest.MaxRetries < 0 {
		return fmt.Errorf("INGEST_MAX_RETRIES must be >= 0, got %d", c.Ingest.MaxRetries)
	}
	if c.Ingest.BackoffBase <= 0 || c.Ingest.BackoffMax < c.Ingest.BackoffBase {
		return fmt.Errorf("invalid backoff bounds: base=%s max=%s", c.Ingest.BackoffBase, c.Ingest.BackoffMax)
	}
	switch c.Store.Backend {
	case "sqlite", "postgres", "csv":
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.PgDSN == "" {
		return fmt.Errorf("STORE_BACKEND=postgres requires PG_DSN")
	}
	return nil
}

func (c *Config) loadCityConfigs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var city CityConfig
		if err := yaml.Unmarshal(data, &city); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if city.Slug == "" {
			return fmt.Errorf("%s: city slug is required", path)
		}
		if city.MaxPages <= 0 {
			city.MaxPages = 200
		}

		c.Cities[city.Slug] = &city
		c.CityOrder = append(c.CityOrder, city.Slug)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
