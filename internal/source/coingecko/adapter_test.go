package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/source"
)

const marketsBody = `[
 {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":64000.12,"last_updated":"2025-02-03T04:05:06.789Z"},
 {"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3100,"last_updated":""}
]`

func newClient() *source.HTTPClient {
	return source.NewHTTPClient(source.HTTPOptions{Timeout: 2 * time.Second, RetryWaitTime: time.Millisecond})
}

func TestFetch_QueryAndMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, marketsPath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "usd", q.Get("vs_currency"))
		assert.Equal(t, "market_cap_desc", q.Get("order"))
		assert.Equal(t, "5", q.Get("per_page"))
		assert.Equal(t, "1", q.Get("page"))
		w.Write([]byte(marketsBody))
	}))
	defer srv.Close()

	batch, err := NewAdapter(newClient(), srv.URL, 5).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Items, 2)
	assert.Equal(t, "coingecko", batch.Payload["source"])

	btc := batch.Items[0]
	assert.Equal(t, "bitcoin", btc.OriginalID)
	assert.Equal(t, "Bitcoin", btc.Title)
	assert.Equal(t, "Symbol: btc", btc.Content)
	assert.Equal(t, 64000.12, btc.Price)
	require.NotNil(t, btc.PublishedAt)
	assert.Equal(t, 2025, btc.PublishedAt.Year())

	assert.Nil(t, batch.Items[1].PublishedAt)
}

func TestFetch_MissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":null}]`))
	}))
	defer srv.Close()

	_, err := NewAdapter(newClient(), srv.URL, 5).Fetch(context.Background())
	var validationErr *domain.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "current_price", validationErr.Field)
}

func TestFetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewAdapter(newClient(), srv.URL, 5).Fetch(context.Background())
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusTooManyRequests, fetchErr.StatusCode)
}
