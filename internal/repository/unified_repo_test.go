package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/domain"
)

func unifiedRecord(source, id string, n int) *domain.UnifiedRecord {
	return &domain.UnifiedRecord{
		SourceType:    source,
		OriginalID:    id,
		Title:         id,
		Content:       "Rank: 1 | Price: $1",
		Price:         1,
		PublishedDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Fingerprint:   fmt.Sprintf("%s-%s-%d", source, id, n),
	}
}

func TestUnifiedRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewUnifiedRepository(newTestDB(t))

	inserted, err := repo.CreateIfAbsent(ctx, unifiedRecord("CoinGecko", "bitcoin", 1))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.CreateIfAbsent(ctx, unifiedRecord("CoinGecko", "bitcoin", 1))
	require.NoError(t, err)
	assert.False(t, inserted)

	exists, err := repo.ExistsByFingerprint(ctx, "CoinGecko-bitcoin-1")
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUnifiedRepository_ListPaginatesInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewUnifiedRepository(newTestDB(t))

	for i := 0; i < 12; i++ {
		src := "CoinGecko"
		if i%3 == 0 {
			src = "LegacyCSV"
		}
		_, err := repo.CreateIfAbsent(ctx, unifiedRecord(src, fmt.Sprintf("coin-%02d", i), i))
		require.NoError(t, err)
	}

	page, total, err := repo.List(ctx, ListFilter{Limit: 10, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, page, 10)
	assert.Equal(t, "coin-00", page[0].OriginalID)
	assert.Equal(t, "coin-09", page[9].OriginalID)

	page, total, err = repo.List(ctx, ListFilter{Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, page, 2)
	assert.Equal(t, "coin-10", page[0].OriginalID)

	page, total, err = repo.List(ctx, ListFilter{SourceType: "LegacyCSV", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 4)
	for _, rec := range page {
		assert.Equal(t, "LegacyCSV", rec.SourceType)
	}

	counts, err := repo.CountBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"LegacyCSV": 4, "CoinGecko": 8}, counts)
}

func TestUnifiedRepository_ListEmpty(t *testing.T) {
	page, total, err := NewUnifiedRepository(newTestDB(t)).List(context.Background(), ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}
