package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/source"
)

const (
	SourceID    = "CoinGecko"
	SourceName  = "CoinGecko markets"
	payloadName = "coingecko"
	marketsPath = "/api/v3/coins/markets"
)

type market struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	CurrentPrice *float64 `json:"current_price"`
	LastUpdated  string   `json:"last_updated"`
}

// Adapter implements the Source interface for the CoinGecko markets endpoint,
// ordered by market cap and quoted in USD.
type Adapter struct {
	client  *source.HTTPClient
	baseURL string
	limit   int
}

// NewAdapter creates a new CoinGecko adapter. limit is sent as per_page.
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

// Fetch retrieves the first page of markets.
func (a *Adapter) Fetch(ctx context.Context) (*source.Batch, error) {
	query := map[string]string{
		"vs_currency": "usd",
		"order":       "market_cap_desc",
		"per_page":    strconv.Itoa(a.limit),
		"page":        "1",
	}
	body, err := a.client.GetJSON(ctx, SourceID, a.baseURL+marketsPath, query)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("decode markets: %w", err)}
	}
	// per_page is advisory; never keep more than asked for
	if a.limit > 0 && len(raw) > a.limit {
		raw = raw[:a.limit]
	}

	items := make([]source.Item, 0, len(raw))
	for i, msg := range raw {
		var m market
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, &domain.FetchError{Source: SourceID, Err: fmt.Errorf("decode market %d: %w", i, err)}
		}
		if m.ID == "" {
			return nil, &domain.FetchError{Source: SourceID,
				Err: &domain.ValidationError{Source: SourceID, Field: "id", Reason: "is empty"}}
		}
		if m.CurrentPrice == nil {
			return nil, &domain.FetchError{Source: SourceID,
				Err: &domain.ValidationError{Source: SourceID, Field: "current_price", Reason: "is missing"}}
		}

		item := source.Item{
			OriginalID: m.ID,
			Title:      m.Name,
			Content:    "Symbol: " + m.Symbol,
			Price:      *m.CurrentPrice,
		}
		if ts, err := time.Parse(time.RFC3339, m.LastUpdated); err == nil {
			item.PublishedAt = &ts
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
