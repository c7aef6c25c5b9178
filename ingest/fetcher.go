package ingest

import (
	"context"

	"ncr_ingest/config"
	"ncr_ingest/models"
)

// OutcomeKind classifies the result of fetching one listing page. The
// controller's state machine branches on this tag rather than on error types,
// so fetchers must fold every failure mode into one of these variants.
type OutcomeKind int

const (
	OutcomeRecords OutcomeKind = iota
	OutcomeEmpty
	OutcomeTransient
	OutcomeBlocked
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecords:
		return "records"
	case OutcomeEmpty:
		return "empty"
	case OutcomeTransient:
		return "transient"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// FetchOutcome is the tagged result of one page fetch.
type FetchOutcome struct {
	Kind    OutcomeKind
	Records []models.ListingRecord
	Reason  string
}

func Records(records []models.ListingRecord) FetchOutcome {
	if len(records) == 0 {
		return Empty()
	}
	return FetchOutcome{Kind: OutcomeRecords, Records: records}
}

func Empty() FetchOutcome {
	return FetchOutcome{Kind: OutcomeEmpty}
}

func Transient(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeTransient, Reason: reason}
}

func Blocked(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeBlocked, Reason: reason}
}

func Fatal(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeFatal, Reason: reason}
}

// PageFetcher produces raw listing records for a (city, page) coordinate.
// Implementations live in the scraper package; the controller only sees the
// outcome classification.
type PageFetcher interface {
	Fetch(ctx context.Context, city *config.CityConfig, page int) FetchOutcome
	Close()
}
