package service

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/repository"
	"github.com/timmy/cryptoetl/internal/source"
)

var testPublished = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		URL:          filepath.Join(t.TempDir(), "etl.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })
	return db
}

func newTestLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "debug", Format: "json", Output: &bytes.Buffer{}, ServiceName: "test"})
}

type testEnv struct {
	db      *gorm.DB
	jobs    *repository.JobRepository
	raw     *repository.RawRepository
	unified *repository.UnifiedRepository
}

func newTestEnv(t *testing.T) *testEnv {
	db := newTestDB(t)
	return &testEnv{
		db:      db,
		jobs:    repository.NewJobRepository(db),
		raw:     repository.NewRawRepository(db),
		unified: repository.NewUnifiedRepository(db),
	}
}

func (e *testEnv) service(policy string, sources ...source.Source) *ETLService {
	return NewETLService(e.db, e.jobs, e.raw, e.unified, sources, newTestLogger(), &ETLConfig{FailurePolicy: policy})
}

func listAll(sourceType string) repository.ListFilter {
	return repository.ListFilter{SourceType: sourceType, Limit: 100}
}

func mockSource(ctrl *gomock.Controller, id string, kind source.Kind) *source.MockSource {
	m := source.NewMockSource(ctrl)
	m.EXPECT().GetSourceID().Return(id).AnyTimes()
	m.EXPECT().GetDisplayName().Return(id).AnyTimes()
	m.EXPECT().Kind().Return(kind).AnyTimes()
	return m
}

func apiBatch(id string, n int) *source.Batch {
	data := make([]interface{}, 0, n)
	items := make([]source.Item, 0, n)
	for i := 0; i < n; i++ {
		coin := fmt.Sprintf("coin-%d", i)
		data = append(data, map[string]interface{}{"id": coin, "price": float64(100 + i)})
		items = append(items, source.Item{
			OriginalID:  coin,
			Title:       strings.ToUpper(coin),
			Content:     fmt.Sprintf("Rank: %d", i+1),
			Price:       float64(100 + i),
			PublishedAt: &testPublished,
		})
	}
	return &source.Batch{
		SourceID: id,
		Kind:     source.KindAPI,
		Payload:  domain.JSONMap{"source": strings.ToLower(id), "data": data},
		Items:    items,
	}
}

func fileBatch(id string, n int) *source.Batch {
	items := make([]source.Item, 0, n)
	for i := 0; i < n; i++ {
		row := domain.JSONMap{"id": fmt.Sprint(i), "coin": fmt.Sprintf("legacy-%d", i), "price": "1.5"}
		items = append(items, source.Item{
			OriginalID:  fmt.Sprint(i),
			Title:       fmt.Sprintf("legacy-%d", i),
			Content:     "Legacy Data Archive",
			Price:       1.5,
			PublishedAt: &testPublished,
			Raw:         row,
		})
	}
	return &source.Batch{SourceID: id, Kind: source.KindFile, Items: items}
}
