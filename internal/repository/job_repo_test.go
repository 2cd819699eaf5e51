package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/cryptoetl/internal/domain"
)

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	start := time.Now().UTC()
	job := &domain.JobRun{RunID: "run-1", Status: domain.JobStatusRunning, StartTime: start}
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.AddSourceRun(ctx, &domain.JobSourceRun{
		RunID: "run-1", Source: "CoinGecko", Status: domain.SourceStatusSuccess,
		RecordsFetched: 5, RecordsInserted: 5, StartTime: start, EndTime: start,
	}))

	end := start.Add(time.Second)
	job.EndTime = &end
	assert.Error(t, repo.Finish(ctx, job), "running is not a terminal status")

	job.Status = domain.JobStatusSuccess
	job.RecordsProcessed = 5
	job.EndTime = &end
	require.NoError(t, repo.Finish(ctx, job))

	// terminal states are final
	job.Status = domain.JobStatusFailed
	assert.Error(t, repo.Finish(ctx, job))

	got, err := repo.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, got.Status)
	assert.Equal(t, 5, got.RecordsProcessed)
	require.NotNil(t, got.EndTime)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "CoinGecko", got.Sources[0].Source)
}

func TestJobRepository_LatestAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &domain.JobRun{
			RunID: id, Status: domain.JobStatusRunning, StartTime: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "c", latest.RunID)

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].RunID)
	assert.Equal(t, "b", recent[1].RunID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.JobStatus]int64{domain.JobStatusRunning: 3}, counts)
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, domain.JobStatusRunning.IsTerminal())
	assert.True(t, domain.JobStatusSuccess.IsTerminal())
	assert.True(t, domain.JobStatusPartial.IsTerminal())
	assert.True(t, domain.JobStatusFailed.IsTerminal())
	assert.False(t, domain.JobStatus("queued").IsTerminal())
}
