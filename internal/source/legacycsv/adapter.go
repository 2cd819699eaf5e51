package legacycsv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/source"
)

const (
	SourceID       = "LegacyCSV"
	SourceName     = "Legacy CSV archive"
	DefaultContent = "Legacy Data Archive"
)

// Required header columns.
var requiredColumns = []string{"id", "coin", "price"}

// Optional date layouts, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Adapter implements the Source interface for a local CSV file.
// A missing file is not an error; the source simply yields nothing.
type Adapter struct {
	path string
}

// NewAdapter creates a new CSV adapter reading from path.
func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

func (a *Adapter) GetSourceID() string { return SourceID }

func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("%s (%s)", SourceName, a.path)
}

func (a *Adapter) Kind() source.Kind { return source.KindFile }

// Fetch reads every row of the file. Each row becomes one item carrying its
// unmodified column map.
func (a *Adapter) Fetch(ctx context.Context) (*source.Batch, error) {
	batch := &source.Batch{SourceID: SourceID, Kind: source.KindFile}

	file, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return batch, nil
		}
		return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("open %s: %w", a.path, err)}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return batch, nil
	}
	if err != nil {
		return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("read header: %w", err)}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("missing required column %q", name)}
		}
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, &domain.FetchError{Source: SourceID, Err: err}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("read line %d: %w", line, err)}
		}

		item, err := toItem(header, columns, record)
		if err != nil {
			return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("line %d: %w", line, err)}
		}
		batch.Items = append(batch.Items, item)
	}

	return batch, nil
}

func toItem(header []string, columns map[string]int, record []string) (source.Item, error) {
	get := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	raw := make(domain.JSONMap, len(header))
	for i, name := range header {
		if i < len(record) {
			raw[name] = record[i]
		}
	}

	id := get("id")
	if id == "" {
		return source.Item{}, &domain.ValidationError{Source: SourceID, Field: "id", Reason: "is empty"}
	}
	price, err := strconv.ParseFloat(get("price"), 64)
	if err != nil {
		return source.Item{}, &domain.ValidationError{Source: SourceID, Field: "price", Reason: "is not a number"}
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return source.Item{}, &domain.ValidationError{Source: SourceID, Field: "price", Reason: "is not finite"}
	}

	item := source.Item{
		OriginalID: id,
		Title:      get("coin"),
		Content:    DefaultContent,
		Price:      price,
		Raw:        raw,
	}
	if desc := get("description"); desc != "" {
		item.Content = desc
	}
	if date := get("date"); date != "" {
		ts, err := parseDate(date)
		if err != nil {
			return source.Item{}, &domain.ValidationError{Source: SourceID, Field: "date", Reason: "has an unknown format"}
		}
		item.PublishedAt = &ts
	}
	return item, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
