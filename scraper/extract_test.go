package scraper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func loadFixtureDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return doc
}

func TestExtractListings(t *testing.T) {
	doc := loadFixtureDoc(t, "search_results.html")

	records := extractListings(doc, "Noida")
	// The ad card has no detail link and the fourth card has no parseable
	// price; both are dropped.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.URL != siteBaseURL+"/propertyDetails/2-bhk-1100-sq-ft-sector-62-noida-pdpid-4d423735" {
		t.Fatalf("unexpected URL %s", first.URL)
	}
	if first.Title != "2 BHK Flat for Sale in Sector 62 Noida" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.City != "Noida" {
		t.Fatalf("unexpected city %s", first.City)
	}
	if first.Location != "Sector 62, Noida" {
		t.Fatalf("unexpected location %q", first.Location)
	}
	if first.Price != 9_500_000 {
		t.Fatalf("expected price 9500000, got %d", first.Price)
	}
	if first.AreaSqFt != 1100 {
		t.Fatalf("expected area 1100, got %f", first.AreaSqFt)
	}
	if first.PropertyHash == "" {
		t.Fatal("expected a property hash")
	}
	if first.Fields["bedrooms"] != "2" {
		t.Fatalf("expected 2 bedrooms, got %s", first.Fields["bedrooms"])
	}
	if first.Fields["bathrooms"] != "2" {
		t.Fatalf("expected 2 bathrooms, got %s", first.Fields["bathrooms"])
	}
	if first.Fields["balcony"] != "1" {
		t.Fatalf("expected 1 balcony, got %s", first.Fields["balcony"])
	}
	if first.Fields["floor"] != "5" {
		t.Fatalf("expected floor 5, got %s", first.Fields["floor"])
	}
	if first.Fields["furnished"] != "Semi-Furnished" {
		t.Fatalf("unexpected furnished %s", first.Fields["furnished"])
	}
	if first.Fields["facing"] != "East" {
		t.Fatalf("unexpected facing %s", first.Fields["facing"])
	}
	if first.Fields["parking"] != "1" || first.Fields["lift"] != "1" {
		t.Fatalf("expected parking and lift flags set: %v", first.Fields)
	}
	if first.Fields["pool"] != "0" || first.Fields["gym"] != "0" {
		t.Fatalf("unexpected amenity flags: %v", first.Fields)
	}

	second := records[1]
	if second.Price != 12_000_000 {
		t.Fatalf("expected price 12000000, got %d", second.Price)
	}
	if second.AreaSqFt != 2350 {
		t.Fatalf("expected area 2350, got %f", second.AreaSqFt)
	}
	if second.Fields["bedrooms"] != "3" {
		t.Fatalf("expected 3 bedrooms, got %s", second.Fields["bedrooms"])
	}
	if second.Fields["prop_type"] != "Independent House" {
		t.Fatalf("villa should map to Independent House, got %s", second.Fields["prop_type"])
	}
	if second.Fields["furnished"] != "Fully-Furnished" {
		t.Fatalf("unexpected furnished %s", second.Fields["furnished"])
	}
	if second.Fields["facing"] != "North-east" {
		t.Fatalf("unexpected facing %s", second.Fields["facing"])
	}
	if second.Fields["pool"] != "1" || second.Fields["gym"] != "1" || second.Fields["vastu"] != "1" || second.Fields["pooja_room"] != "1" {
		t.Fatalf("unexpected amenity flags: %v", second.Fields)
	}
	if first.PropertyHash == second.PropertyHash {
		t.Fatal("distinct listings hashed identically")
	}
}

func TestPageBlockedDetection(t *testing.T) {
	if pageBlocked(loadFixtureDoc(t, "search_results.html")) {
		t.Fatal("normal results page flagged as blocked")
	}
	if !pageBlocked(loadFixtureDoc(t, "blocked.html")) {
		t.Fatal("challenge page not detected")
	}
}
