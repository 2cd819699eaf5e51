package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/config"
)

func TestPingAndListTables(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Ping(context.Background(), db))

	names, err := ListTables(context.Background(), db)
	require.NoError(t, err)
	for _, name := range []string{"etl_job_sources", "etl_jobs", "raw_api_data", "raw_csv_data", "unified_data"} {
		assert.Contains(t, names, name)
	}
	assert.IsIncreasing(t, names)
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "data/etl.db", sqlitePath("file:data/etl.db?_pragma=busy_timeout(5000)"))
	assert.Equal(t, "", sqlitePath(":memory:"))
}

func TestConnect(t *testing.T) {
	db, err := Connect(context.Background(), &config.DatabaseConfig{
		URL:             "sqlite://" + filepath.Join(t.TempDir(), "connect.db"),
		AutoMigrate:     true,
		LogLevel:        "silent",
		ConnectAttempts: 3,
	})
	require.NoError(t, err)
	require.NoError(t, Close(db))
}

func TestConnect_GivesUp(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:           "mysql",
		URL:              "mysql://localhost/etl",
		ConnectAttempts:  2,
		ConnectRetryWait: time.Millisecond,
	}

	_, err := Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg.ConnectRetryWait = time.Minute
	_, err = Connect(ctx, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}
