package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ncr_ingest/models"
)

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// Fingerprint derives a stable secondary identity for a listing from its
// visible attributes. Two cards pointing at different URLs for the same unit
// hash to the same value, so it catches relistings the URL key misses.
func Fingerprint(rec *models.ListingRecord) string {
	input := fmt.Sprintf("%s|%d|%s|%s",
		normalizeText(rec.Title),
		rec.Price,
		strconv.FormatFloat(rec.AreaSqFt, 'f', 0, 64),
		normalizeText(rec.Location),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return multiSpaceRegex.ReplaceAllString(s, " ")
}
