package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/fingerprint"
	"github.com/timmy/cryptoetl/internal/repository"
	"github.com/timmy/cryptoetl/internal/source"
)

// Normalizer maps source items onto the unified record shape.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer that stamps undated items with the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize builds the unified record for item. The fingerprint covers
// (source, original id, price, published date) so a price change produces a new row.
func (n *Normalizer) Normalize(sourceID string, item source.Item) (*domain.UnifiedRecord, error) {
	originalID := strings.TrimSpace(item.OriginalID)
	if originalID == "" {
		return nil, &domain.ValidationError{Source: sourceID, Field: "id", Reason: "is empty"}
	}
	// NaN and Inf cannot be encoded as JSON and would poison every /data page
	if math.IsNaN(item.Price) || math.IsInf(item.Price, 0) {
		return nil, &domain.ValidationError{Source: sourceID, Field: "price", Reason: "is not finite"}
	}

	published := n.now().UTC()
	if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
		published = item.PublishedAt.UTC()
	}

	return &domain.UnifiedRecord{
		SourceType:    sourceID,
		OriginalID:    originalID,
		Title:         item.Title,
		Content:       FormatContent(item.Content, item.Price),
		Price:         item.Price,
		PublishedDate: published,
		Fingerprint:   fingerprint.Record(sourceID, originalID, item.Price, published),
	}, nil
}

// FormatContent appends the price to a source's descriptive text.
func FormatContent(content string, price float64) string {
	return fmt.Sprintf("%s | Price: $%s", content, strconv.FormatFloat(price, 'f', -1, 64))
}

// Upsert inserts rec unless a row with the same fingerprint exists.
// It reports whether a row was written.
func (n *Normalizer) Upsert(ctx context.Context, repo *repository.UnifiedRepository, rec *domain.UnifiedRecord) (bool, error) {
	exists, err := repo.ExistsByFingerprint(ctx, rec.Fingerprint)
	if err != nil {
		return false, &domain.PersistenceError{Op: "lookup fingerprint", Err: err}
	}
	if exists {
		return false, nil
	}

	inserted, err := repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return false, &domain.PersistenceError{Op: "insert unified record", Err: err}
	}
	return inserted, nil
}
