package ingest

import (
	"context"

	"ncr_ingest/models"
)

// RecordSink persists a batch of listing records durably. WriteBatch must be
// atomic: either every record in the batch is stored (duplicates may be
// skipped by the sink) or none are and an error is returned.
type RecordSink interface {
	WriteBatch(ctx context.Context, records []models.ListingRecord) error
}

// RecordBuffer accumulates records between flushes. It is not safe for
// concurrent use; the ingest loop is the only writer.
type RecordBuffer struct {
	records []models.ListingRecord
}

func NewRecordBuffer() *RecordBuffer {
	return &RecordBuffer{}
}

func (b *RecordBuffer) Append(rec models.ListingRecord) {
	b.records = append(b.records, rec)
}

func (b *RecordBuffer) Len() int {
	return len(b.records)
}

// Flush writes the buffer's entire contents to the sink and clears it.
// On sink failure the buffer is left exactly as it was, so a later flush
// retries the same records. Returns the number of records handed to the sink.
func (b *RecordBuffer) Flush(ctx context.Context, sink RecordSink) (int, error) {
	if len(b.records) == 0 {
		return 0, nil
	}

	if err := sink.WriteBatch(ctx, b.records); err != nil {
		return 0, err
	}

	n := len(b.records)
	b.records = b.records[:0]
	return n, nil
}
