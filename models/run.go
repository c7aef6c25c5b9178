package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

type IngestRun struct {
	ID            int64      `json:"id" db:"id"`
	UID           string     `json:"uid" db:"uid"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	PagesFetched  int        `json:"pages_fetched" db:"pages_fetched"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsNew   int        `json:"listings_new" db:"listings_new"`
	Duplicates    int        `json:"duplicates" db:"duplicates"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}

type CityStats struct {
	City          string     `json:"city" db:"city"`
	LastRunAt     *time.Time `json:"last_run_at" db:"last_run_at"`
	PagesFetched  int        `json:"pages_fetched" db:"pages_fetched"`
	ListingsTotal int        `json:"listings_total" db:"listings_total"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
	Exhausted     bool       `json:"exhausted" db:"exhausted"`
}
