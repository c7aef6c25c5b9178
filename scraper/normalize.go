package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

// cityAliases maps the spellings the site uses to canonical city names.
var cityAliases = map[string]string{
	"gurgaon":            "Gurugram",
	"gurugram":           "Gurugram",
	"noida extension":    "Greater Noida West",
	"greater noida west": "Greater Noida West",
}

var (
	numberRegex  = regexp.MustCompile(`[\d.]+`)
	nonNumRegex  = regexp.MustCompile(`[^\d.]`)
	bhkRegex     = regexp.MustCompile(`(\d+)\s*bhk`)
	bathRegex    = regexp.MustCompile(`(\d+)\s*bath`)
	balconyRegex = regexp.MustCompile(`(\d+)\s*balcon`)
	floorRegex   = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)?\s*floor`)
)

// NormalizeCity returns the canonical city name.
func NormalizeCity(city string) string {
	if canonical, ok := cityAliases[strings.ToLower(strings.TrimSpace(city))]; ok {
		return canonical
	}
	return titleCase(strings.TrimSpace(city))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// NormalizePrice converts Indian price text to an absolute INR amount.
// "1.2 Cr" -> 12000000, "85 L" -> 8500000. Returns 0 when unparsable.
func NormalizePrice(text string) int64 {
	text = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(text, "₹", "")))
	// Plain amounts come comma-grouped ("45,00,000"); strip the commas
	// before matching so the number is read whole.
	text = strings.ReplaceAll(text, ",", "")
	if text == "" {
		return 0
	}

	match := numberRegex.FindString(text)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}

	switch {
	case strings.Contains(text, "cr"):
		return int64(value * 1e7)
	case strings.Contains(text, "lac"), strings.Contains(text, "lakh"), strings.Contains(text, " l"), strings.HasSuffix(text, "l"):
		return int64(value * 1e5)
	default:
		return int64(value)
	}
}

// NormalizeArea converts area text to square feet. Square meters are
// converted; commas and unit suffixes are stripped. Returns 0 when
// unparsable.
func NormalizeArea(text string) float64 {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0
	}

	clean := nonNumRegex.ReplaceAllString(text, "")
	if clean == "" {
		return 0
	}
	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}

	if strings.Contains(text, "sq.m") || strings.Contains(text, "sqm") {
		value *= 10.764
	}
	return value
}

func extractCount(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
