package ingest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// CityCount aggregates per-city progress for reporting.
type CityCount struct {
	Pages    int
	Listings int
	Errors   int
}

// Tracker counts pages, listings, and errors per city and overall. It feeds
// the end-of-run summary only; the controller never consults it for
// control-flow decisions.
type Tracker struct {
	mu         sync.Mutex
	perCity    map[string]*CityCount
	duplicates int
	started    time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		perCity: make(map[string]*CityCount),
		started: time.Now(),
	}
}

func (t *Tracker) RecordPage(city string, count int, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.perCity[city]
	if c == nil {
		c = &CityCount{}
		t.perCity[city] = c
	}
	c.Pages++
	c.Listings += count
	if failed {
		c.Errors++
	}
}

func (t *Tracker) Duplicate() {
	t.mu.Lock()
	t.duplicates++
	t.mu.Unlock()
}

// Summary is a point-in-time snapshot of the run's aggregate counters.
type Summary struct {
	PerCity     map[string]CityCount
	TotalPages  int
	TotalFound  int
	Duplicates  int
	Errors      int
	Elapsed     time.Duration
	PagesPerMin float64
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		PerCity:    make(map[string]CityCount, len(t.perCity)),
		Duplicates: t.duplicates,
		Elapsed:    time.Since(t.started),
	}
	for city, c := range t.perCity {
		s.PerCity[city] = *c
		s.TotalPages += c.Pages
		s.TotalFound += c.Listings
		s.Errors += c.Errors
	}
	if mins := s.Elapsed.Minutes(); mins > 0 {
		s.PagesPerMin = float64(s.TotalPages) / mins
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pages=%d listings=%d duplicates=%d errors=%d elapsed=%s rate=%.1f pages/min",
		s.TotalPages, s.TotalFound, s.Duplicates, s.Errors, s.Elapsed.Round(time.Second), s.PagesPerMin)

	cities := make([]string, 0, len(s.PerCity))
	for city := range s.PerCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	for _, city := range cities {
		c := s.PerCity[city]
		fmt.Fprintf(&b, "\n  %-20s pages=%-4d listings=%-5d errors=%d", city, c.Pages, c.Listings, c.Errors)
	}
	return b.String()
}
