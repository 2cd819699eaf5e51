package coinpaprika

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/source"
)

const (
	SourceID    = "CoinPaprika"
	SourceName  = "CoinPaprika tickers"
	payloadName = "coinpaprika"
	tickersPath = "/v1/tickers"
)

// ticker is the subset of a CoinPaprika ticker the normalizer needs.
type ticker struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Rank        int    `json:"rank"`
	LastUpdated string `json:"last_updated"`
	Quotes      map[string]struct {
		Price float64 `json:"price"`
	} `json:"quotes"`
}

// Adapter implements the Source interface for the public CoinPaprika tickers API.
type Adapter struct {
	client  *source.HTTPClient
	baseURL string
	limit   int
}

// NewAdapter creates a new CoinPaprika adapter. limit caps the number of tickers kept per fetch.
func NewAdapter(client *source.HTTPClient, baseURL string, limit int) *Adapter {
	return &Adapter{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limit:   limit,
	}
}

func (a *Adapter) GetSourceID() string { return SourceID }

func (a *Adapter) GetDisplayName() string { return SourceName }

func (a *Adapter) Kind() source.Kind { return source.KindAPI }

// Fetch retrieves the tickers list and keeps the first limit entries unmodified.
func (a *Adapter) Fetch(ctx context.Context) (*source.Batch, error) {
	body, err := a.client.GetJSON(ctx, SourceID, a.baseURL+tickersPath, nil)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("decode tickers: %w", err)}
	}
	if a.limit > 0 && len(raw) > a.limit {
		raw = raw[:a.limit]
	}

	items := make([]source.Item, 0, len(raw))
	for i, msg := range raw {
		var t ticker
		if err := json.Unmarshal(msg, &t); err != nil {
			return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("decode ticker %d: %w", i, err)}
		}
		item, err := toItem(t)
		if err != nil {
			return nil, &domain.FetchError{Source: SourceID, Err: err}
		}
		items = append(items, item)
	}

	return &source.Batch{
		SourceID: SourceID,
		Kind:     source.KindAPI,
		Payload:  domain.JSONMap{"source": payloadName, "data": raw},
		Items:    items,
	}, nil
}

func toItem(t ticker) (source.Item, error) {
	if t.ID == "" {
		return source.Item{}, &domain.ValidationError{Source: SourceID, Field: "id", Reason: "is empty"}
	}
	usd, ok := t.Quotes["USD"]
	if !ok {
		return source.Item{}, &domain.ValidationError{Source: SourceID, Field: "quotes.USD.price", Reason: "is missing"}
	}

	item := source.Item{
		OriginalID: t.ID,
		Title:      t.Name,
		Content:    fmt.Sprintf("Rank: %d", t.Rank),
		Price:      usd.Price,
	}
	if ts, err := time.Parse(time.RFC3339, t.LastUpdated); err == nil {
		item.PublishedAt = &ts
	}
	return item, nil
}
