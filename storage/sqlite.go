package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ncr_ingest/models"
)

// SQLiteStore is the default record sink plus the operational tables (runs,
// logs, per-city stats, pending commands). One process owns the file; WAL
// keeps readers (the TUI, ad-hoc queries) from blocking the writer.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		url TEXT PRIMARY KEY,
		title TEXT,
		city TEXT,
		location TEXT,
		price INTEGER,
		area_sqft REAL,
		property_hash TEXT,
		fields JSON,
		scraped_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id INTEGER PRIMARY KEY,
		uid TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_fetched INTEGER,
		listings_found INTEGER,
		listings_new INTEGER,
		duplicates INTEGER,
		errors_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS ingest_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		city TEXT
	);

	CREATE TABLE IF NOT EXISTS city_stats (
		city TEXT PRIMARY KEY,
		last_run_at DATETIME,
		pages_fetched INTEGER DEFAULT 0,
		listings_total INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		exhausted BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);
	CREATE INDEX IF NOT EXISTS idx_listings_hash ON listings(property_hash);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON ingest_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON ingest_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// WriteBatch inserts all records in one transaction. Records whose URL is
// already stored are skipped; any other failure rolls the whole batch back.
func (s *SQLiteStore) WriteBatch(ctx context.Context, records []models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO listings (url, title, city, location, price, area_sqft, property_hash, fields, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			rec.URL, rec.Title, rec.City, rec.Location, rec.Price, rec.AreaSqFt,
			rec.PropertyHash, fields, rec.ScrapedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSeenURLs reads back every stored listing URL for dedup reseeding.
func (s *SQLiteStore) LoadSeenURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM listings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func (s *SQLiteStore) CountListings(city string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM listings WHERE city = ?`, city).Scan(&count)
	return count, err
}

func (s *SQLiteStore) CreateRun(run *models.IngestRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (uid, started_at, status, pages_fetched, listings_found, listings_new, duplicates, errors_count)
		VALUES (?, ?, ?, 0, 0, 0, 0, 0)`,
		run.UID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.IngestRun) error {
	_, err := s.db.Exec(`
		UPDATE ingest_runs SET finished_at = ?, status = ?, pages_fetched = ?,
			listings_found = ?, listings_new = ?, duplicates = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesFetched,
		run.ListingsFound, run.ListingsNew, run.Duplicates, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, city string) error {
	entry := models.IngestLog{
		RunID:     runID,
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		City:      city,
	}
	_, err := s.db.Exec(`
		INSERT INTO ingest_logs (run_id, timestamp, level, message, city)
		VALUES (?, ?, ?, ?, ?)`,
		entry.RunID, entry.Timestamp, entry.Level, entry.Message, entry.City)
	return err
}

// GetRecentLogs returns the newest operational log rows, newest first. It
// backs ad-hoc inspection of a run, the same way GetPendingCommands backs
// the command queue.
func (s *SQLiteStore) GetRecentLogs(limit int) ([]models.IngestLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, city
		FROM ingest_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.IngestLog
	for rows.Next() {
		var entry models.IngestLog
		var runID sql.NullInt64
		if err := rows.Scan(&entry.ID, &runID, &entry.Timestamp, &entry.Level, &entry.Message, &entry.City); err != nil {
			return nil, err
		}
		if runID.Valid {
			entry.RunID = &runID.Int64
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// UpsertCityStats folds one run's per-city counters into the cumulative row.
// Exhausted is overwritten each run: a city can un-exhaust when the site
// gains inventory.
func (s *SQLiteStore) UpsertCityStats(stats *models.CityStats) error {
	_, err := s.db.Exec(`
		INSERT INTO city_stats (city, last_run_at, pages_fetched, listings_total, errors_count, exhausted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(city) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			pages_fetched = pages_fetched + excluded.pages_fetched,
			listings_total = listings_total + excluded.listings_total,
			errors_count = errors_count + excluded.errors_count,
			exhausted = excluded.exhausted`,
		stats.City, stats.LastRunAt, stats.PagesFetched, stats.ListingsTotal, stats.ErrorsCount, stats.Exhausted)
	return err
}

func (s *SQLiteStore) GetCityStats(city string) (*models.CityStats, error) {
	row := s.db.QueryRow(`
		SELECT city, last_run_at, pages_fetched, listings_total, errors_count, exhausted
		FROM city_stats WHERE city = ?`, city)

	var cs models.CityStats
	var lastRun sql.NullTime
	err := row.Scan(&cs.City, &lastRun, &cs.PagesFetched, &cs.ListingsTotal, &cs.ErrorsCount, &cs.Exhausted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		cs.LastRunAt = &lastRun.Time
	}
	return &cs, nil
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
