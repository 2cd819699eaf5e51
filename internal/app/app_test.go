package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/service"
)

func paprikaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		parts := make([]string, 8)
		for i := range parts {
			parts[i] = fmt.Sprintf(`{"id":"p-%d","name":"Paprika %d","rank":%d,`+
				`"last_updated":"2025-01-01T00:00:00Z","quotes":{"USD":{"price":%d}}}`, i, i, i+1, 10+i)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[" + strings.Join(parts, ",") + "]"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func geckoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		parts := make([]string, 5)
		for i := range parts {
			parts[i] = fmt.Sprintf(`{"id":"g-%d","symbol":"g%d","name":"Gecko %d",`+
				`"current_price":%d.25,"last_updated":"2025-01-01T00:00:00.000Z"}`, i, i, i, 20+i)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[" + strings.Join(parts, ",") + "]"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, paprikaURL, geckoURL, policy string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "legacy.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,coin,price,date\n1,LegacyCoin,1.5,2024-12-31\n2,OldCoin,0.25,2024-12-31\n"), 0o644))

	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			URL:          filepath.Join(dir, "etl.db"),
			MaxOpenConns: 1,
			AutoMigrate:  true,
			LogLevel:     "silent",
		},
		HTTP: config.HTTPConfig{Timeout: 2 * time.Second, RetryCount: 0},
		Sources: config.SourcesConfig{
			CoinPaprika: config.APISourceConfig{Enabled: true, BaseURL: paprikaURL, Limit: 5},
			CoinGecko:   config.APISourceConfig{Enabled: true, BaseURL: geckoURL, Limit: 5},
			LegacyCSV:   config.CSVSourceConfig{Enabled: true, Path: csvPath},
		},
		Pipeline:  config.PipelineConfig{FailurePolicy: policy, RunTimeout: 10 * time.Second},
		Scheduler: config.SchedulerConfig{Interval: time.Hour},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Format: "json", Output: &bytes.Buffer{}})
	a, err := New(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestEndToEnd_AllSources(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t, paprikaServer(t, http.StatusOK).URL, geckoServer(t).URL, config.FailurePolicyIsolate))
	require.Len(t, a.ETL.Sources(), 3)

	job, err := a.Scheduler.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, job.Status)
	assert.Equal(t, 12, job.RecordsProcessed)

	page, err := a.Query.List(ctx, serviceQuery(1, 10, ""))
	require.NoError(t, err)
	assert.Len(t, page.Records, 10)
	assert.Equal(t, int64(12), page.TotalRecords)
	assert.Equal(t, "CoinPaprika", page.Records[0].SourceType)
	assert.Equal(t, "Rank: 1 | Price: $10", page.Records[0].Content)

	stats, err := a.Query.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "success", stats.LastRunStatus)
	assert.Equal(t, map[string]int64{"CoinPaprika": 5, "CoinGecko": 5, "LegacyCSV": 2}, stats.RecordsBySource)

	// upstream data unchanged, so nothing new is stored
	job, err = a.Scheduler.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, job.Status)
	assert.Zero(t, job.RecordsProcessed)
}

func TestEndToEnd_UpstreamError(t *testing.T) {
	tests := []struct {
		policy    string
		status    domain.JobStatus
		processed int
	}{
		{config.FailurePolicyAbort, domain.JobStatusFailed, 0},
		{config.FailurePolicyIsolate, domain.JobStatusPartial, 7},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			ctx := context.Background()
			a := newTestApp(t, testConfig(t, paprikaServer(t, http.StatusInternalServerError).URL, geckoServer(t).URL, tt.policy))

			job, err := a.ETL.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.status, job.Status)
			assert.Equal(t, tt.processed, job.RecordsProcessed)
			assert.Contains(t, job.ErrorMessage, "500")
		})
	}
}

func TestBuildSources_RespectsEnabled(t *testing.T) {
	cfg := testConfig(t, "http://paprika", "http://gecko", config.FailurePolicyIsolate)
	cfg.Sources.CoinGecko.Enabled = false

	sources := BuildSources(cfg)
	require.Len(t, sources, 2)
	assert.Equal(t, "CoinPaprika", sources[0].GetSourceID())
	assert.Equal(t, "LegacyCSV", sources[1].GetSourceID())
}

func serviceQuery(page, limit int, src string) service.ListQuery {
	return service.ListQuery{Page: page, Limit: limit, Source: src}
}
