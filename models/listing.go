package models

import "time"

// ListingRecord is one scraped property. URL is the canonical identity used
// for deduplication; Fields carries the extracted site attributes opaquely.
type ListingRecord struct {
	URL          string            `json:"url" db:"url"`
	Title        string            `json:"title" db:"title"`
	City         string            `json:"city" db:"city"`
	Location     string            `json:"location" db:"location"`
	Price        int64             `json:"price" db:"price"`
	AreaSqFt     float64           `json:"area_sqft" db:"area_sqft"`
	PropertyHash string            `json:"property_hash" db:"property_hash"`
	Fields       map[string]string `json:"fields" db:"fields"`
	ScrapedAt    time.Time         `json:"scraped_at" db:"scraped_at"`
}
