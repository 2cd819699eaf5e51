package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/source"
	"github.com/timmy/cryptoetl/internal/storage"
)

func TestArchiveKey(t *testing.T) {
	at := time.Date(2025, 3, 7, 23, 0, 0, 0, time.FixedZone("UTC-2", -2*3600))
	assert.Equal(t, "raw/coingecko/2025/03/08/run-1.json", ArchiveKey("raw", "CoinGecko", "run-1", at))
	assert.Equal(t, "legacycsv/2025/03/08/run-1.json", ArchiveKey("", "LegacyCSV", "run-1", at))
}

func TestRawArchiver_UploadsPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage.NewMockObjectStorage(ctrl)
	archiver := NewRawArchiver(store, "/raw/")
	archiver.now = func() time.Time { return testPublished }

	store.EXPECT().Exists(gomock.Any(), "raw/coingecko/2025/03/01/run-1.json").Return(false, nil)
	store.EXPECT().
		Upload(gomock.Any(), "raw/coingecko/2025/03/01/run-1.json", gomock.Any(), gomock.Any(), "application/json").
		DoAndReturn(func(_ context.Context, _ string, r io.Reader, size int64, _ string) error {
			body, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, int64(len(body)), size)

			var doc map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &doc))
			assert.Equal(t, "run-1", doc["run_id"])
			assert.Equal(t, "CoinGecko", doc["source"])
			payload := doc["payload"].(map[string]interface{})
			assert.Equal(t, "coingecko", payload["source"])
			return nil
		})

	archiver.Archive(context.Background(), "run-1", apiBatch("CoinGecko", 2))
}

func TestRawArchiver_FileRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage.NewMockObjectStorage(ctrl)
	archiver := NewRawArchiver(store, "raw")

	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
	store.EXPECT().
		Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), "application/json").
		DoAndReturn(func(_ context.Context, _ string, r io.Reader, _ int64, _ string) error {
			var doc struct {
				Rows []map[string]interface{} `json:"rows"`
			}
			require.NoError(t, json.NewDecoder(r).Decode(&doc))
			require.Len(t, doc.Rows, 2)
			assert.Equal(t, "legacy-1", doc.Rows[1]["coin"])
			return nil
		})

	archiver.Archive(context.Background(), "run-2", fileBatch("LegacyCSV", 2))
}

func TestRawArchiver_SkipsExistingKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage.NewMockObjectStorage(ctrl)
	archiver := NewRawArchiver(store, "raw")
	archiver.now = func() time.Time { return testPublished }

	// no Upload expectation: gomock fails the test if it is called
	store.EXPECT().Exists(gomock.Any(), "raw/coingecko/2025/03/01/run-1.json").Return(true, nil)

	archiver.Archive(context.Background(), "run-1", apiBatch("CoinGecko", 2))
}

func TestRawArchiver_UploadsWhenExistsCheckFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage.NewMockObjectStorage(ctrl)
	archiver := NewRawArchiver(store, "raw")

	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, errors.New("access denied"))
	store.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), "application/json").Return(nil)

	archiver.Archive(context.Background(), "run-3", apiBatch("CoinGecko", 1))
}

func TestRawArchiver_SkipsEmptyAndNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage.NewMockObjectStorage(ctrl)

	NewRawArchiver(store, "raw").Archive(context.Background(), "run", &source.Batch{SourceID: "LegacyCSV"})

	var nilArchiver *RawArchiver
	nilArchiver.Archive(context.Background(), "run", apiBatch("CoinGecko", 1))
}

func TestETLService_ArchiveFailureDoesNotFailSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	env := newTestEnv(t)

	store := storage.NewMockObjectStorage(ctrl)
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
	store.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("bucket unavailable"))

	gecko := mockSource(ctrl, "CoinGecko", source.KindAPI)
	gecko.EXPECT().Fetch(gomock.Any()).Return(apiBatch("CoinGecko", 2), nil)

	svc := NewETLService(env.db, env.jobs, env.raw, env.unified, []source.Source{gecko}, newTestLogger(), &ETLConfig{
		FailurePolicy: config.FailurePolicyIsolate,
		Archiver:      NewRawArchiver(store, "raw"),
	})

	job, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "success", string(job.Status))
	assert.Equal(t, 2, job.RecordsProcessed)
}
