package scraper

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ncr_ingest/identity"
	"ncr_ingest/models"
)

const siteBaseURL = "https://www.magicbricks.com"

var facingDirections = []string{
	"north-east", "north-west", "south-east", "south-west",
	"north", "south", "east", "west",
}

var blockIndicators = []string{
	"captcha",
	"recaptcha",
	"access denied",
	"unusual traffic",
	"verify you are a human",
	"are you a robot",
}

// pageBlocked reports whether the document is an anti-bot interstitial
// rather than a results page.
func pageBlocked(doc *goquery.Document) bool {
	if doc.Find(`iframe[src*="recaptcha"]`).Length() > 0 {
		return true
	}
	text := strings.ToLower(doc.Find("title").Text() + " " + doc.Find("body").Text())
	if len(text) > 4096 {
		text = text[:4096]
	}
	for _, indicator := range blockIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}

// extractListings maps the result-page property cards to ListingRecords.
// Cards without a detail URL or a parseable price are dropped; field parsing
// is best effort and never fails the page.
func extractListings(doc *goquery.Document, city string) []models.ListingRecord {
	var records []models.ListingRecord

	cards := doc.Find(`div[class*="mb-srp__card"]`)
	if cards.Length() == 0 {
		cards = doc.Find("div.mb-srp__list__item")
	}

	cards.Each(func(_ int, card *goquery.Selection) {
		link := card.Find(`a[href*="/propertyDetails"]`).First()
		if link.Length() == 0 {
			link = card.Find(`a[href*="/property-detail"]`).First()
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = siteBaseURL + href
		}

		price := NormalizePrice(card.Find(`[class*="price"]`).First().Text())
		if price == 0 {
			return
		}

		title := strings.TrimSpace(card.Find("h2").First().Text())

		location := strings.TrimSpace(card.Find(`[class*="location"]`).First().Text())
		if location == "" {
			location = strings.TrimSpace(card.Find(`[class*="locality"]`).First().Text())
		}
		if location == "" {
			location = "Unknown"
		}

		areaText := strings.TrimSpace(card.Find(`[class*="area"]`).First().Text())
		if areaText == "" {
			areaText = strings.TrimSpace(card.Find(`[class*="carpet"]`).First().Text())
		}

		cardText := strings.ToLower(card.Text())

		rec := models.ListingRecord{
			URL:       href,
			Title:     title,
			City:      NormalizeCity(city),
			Location:  location,
			Price:     price,
			AreaSqFt:  NormalizeArea(areaText),
			Fields:    extractFields(cardText, areaText),
			ScrapedAt: time.Now(),
		}
		rec.PropertyHash = identity.Fingerprint(&rec)

		records = append(records, rec)
	})

	return records
}

// extractFields pulls the loosely-structured card attributes into the opaque
// field map the core passes through untouched.
func extractFields(cardText, areaRaw string) map[string]string {
	propType := "Apartment"
	switch {
	case strings.Contains(cardText, "villa"), strings.Contains(cardText, "house"):
		propType = "Independent House"
	case strings.Contains(cardText, "plot"):
		propType = "Plot"
	case strings.Contains(cardText, "builder floor"):
		propType = "Builder Floor"
	}

	furnished := "Unknown"
	switch {
	case strings.Contains(cardText, "semi") && strings.Contains(cardText, "furnished"):
		furnished = "Semi-Furnished"
	case strings.Contains(cardText, "fully") && strings.Contains(cardText, "furnished"):
		furnished = "Fully-Furnished"
	case strings.Contains(cardText, "unfurnished"):
		furnished = "Unfurnished"
	}

	facing := "Unknown"
	for _, d := range facingDirections {
		if strings.Contains(cardText, d+" facing") {
			facing = titleCase(d)
			break
		}
	}

	return map[string]string{
		"bedrooms":  strconv.Itoa(extractCount(bhkRegex, cardText)),
		"bathrooms": strconv.Itoa(extractCount(bathRegex, cardText)),
		"balcony":   strconv.Itoa(extractCount(balconyRegex, cardText)),
		"floor":     strconv.Itoa(extractCount(floorRegex, cardText)),
		"prop_type": propType,
		"furnished": furnished,
		"facing":    facing,
		"area_raw":  areaRaw,
		"pooja_room": boolFlag(strings.Contains(cardText, "pooja") ||
			strings.Contains(cardText, "puja")),
		"servant_room": boolFlag(strings.Contains(cardText, "servant")),
		"store_room":   boolFlag(strings.Contains(cardText, "store")),
		"pool": boolFlag(strings.Contains(cardText, "pool") ||
			strings.Contains(cardText, "swimming")),
		"gym": boolFlag(strings.Contains(cardText, "gym")),
		"lift": boolFlag(strings.Contains(cardText, "lift") ||
			strings.Contains(cardText, "elevator")),
		"parking": boolFlag(strings.Contains(cardText, "parking")),
		"vastu":   boolFlag(strings.Contains(cardText, "vastu")),
	}
}
