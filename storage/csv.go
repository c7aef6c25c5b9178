package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ncr_ingest/models"
)

var csvHeader = []string{"url", "title", "city", "location", "price", "area_sqft", "property_hash", "fields", "scraped_at"}

// CSVStore is the file-based record sink for small standalone runs. Batches
// are serialized in memory and appended with a single write, so a failed
// flush leaves at most one torn trailing batch — which a reload skips, since
// dedup reseeding keys on the URL column only.
type CSVStore struct {
	path string
	file *os.File
}

func NewCSVStore(path string) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}

	store := &CSVStore{path: path, file: f}
	if fresh {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		w.Write(csvHeader)
		w.Flush()
		if _, err := f.Write(buf.Bytes()); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
	}

	return store, nil
}

func (c *CSVStore) Close() error {
	return c.file.Close()
}

func (c *CSVStore) WriteBatch(ctx context.Context, records []models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, rec := range records {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		row := []string{
			rec.URL,
			rec.Title,
			rec.City,
			rec.Location,
			strconv.FormatInt(rec.Price, 10),
			strconv.FormatFloat(rec.AreaSqFt, 'f', 1, 64),
			rec.PropertyHash,
			string(fields),
			rec.ScrapedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: encode row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if _, err := c.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("csv: append batch: %w", err)
	}
	return c.file.Sync()
}

func (c *CSVStore) LoadSeenURLs(ctx context.Context) ([]string, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var urls []string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Torn trailing batch from a crashed write; everything before
			// it is intact.
			break
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == "url" {
				continue
			}
		}
		if len(row) > 0 && row[0] != "" {
			urls = append(urls, row[0])
		}
	}
	return urls, nil
}
