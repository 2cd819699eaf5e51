package source

import (
	"context"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
)

// Kind tells the pipeline which raw table a source's payloads go to.
type Kind string

const (
	KindAPI  Kind = "api"  // one raw row per fetched batch
	KindFile Kind = "file" // one raw row per file row
)

// Item is one record extracted from a source, before normalization.
type Item struct {
	OriginalID  string
	Title       string
	Content     string // descriptive text; the price is appended by the normalizer
	Price       float64
	PublishedAt *time.Time     // nil means "now" at normalization time
	Raw         domain.JSONMap // unmodified row, used by file sources
}

// Batch is the result of a single fetch.
type Batch struct {
	SourceID string
	Kind     Kind
	Payload  domain.JSONMap // unmodified API payload; nil for file sources
	Items    []Item
}

// Empty reports whether the batch carries nothing to store.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Items) == 0 && b.Payload == nil)
}

//go:generate mockgen -source=interface.go -destination=mock_source.go -package=source

// Source defines the interface for market data sources.
type Source interface {
	// GetSourceID returns the identifier stored as source_type on unified records.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// Kind returns whether the source is a remote API or a local file.
	Kind() Kind

	// Fetch retrieves one bounded batch. A *domain.FetchError is returned on
	// network, status, or parse failure.
	Fetch(ctx context.Context) (*Batch, error)
}
