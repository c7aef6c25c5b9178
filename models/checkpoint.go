package models

import "time"

// CheckpointState marks the last (city, page) whose records are known to be
// durably flushed. Page is 1-based and only moves forward within a city;
// TotalScraped is cumulative across the whole run history.
type CheckpointState struct {
	City         string    `json:"city"`
	Page         int       `json:"page"`
	TotalScraped int       `json:"total_scraped"`
	Timestamp    time.Time `json:"timestamp"`
}
