package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/source"
	"github.com/timmy/cryptoetl/internal/storage"
)

// RawArchiver copies raw batches to object storage. Failures are logged and
// never affect the run.
type RawArchiver struct {
	store  storage.ObjectStorage
	prefix string
	now    func() time.Time
}

// NewRawArchiver creates an archiver writing under prefix.
func NewRawArchiver(store storage.ObjectStorage, prefix string) *RawArchiver {
	return &RawArchiver{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// ArchiveKey returns <prefix>/<source>/<yyyy>/<mm>/<dd>/<run_id>.json.
func ArchiveKey(prefix, sourceID, runID string, at time.Time) string {
	at = at.UTC()
	return path.Join(
		prefix,
		strings.ToLower(sourceID),
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", int(at.Month())),
		fmt.Sprintf("%02d", at.Day()),
		runID+".json",
	)
}

// Archive uploads the batch for runID unless its key already exists.
func (a *RawArchiver) Archive(ctx context.Context, runID string, batch *source.Batch) {
	if a == nil || batch.Empty() {
		return
	}

	body, err := json.Marshal(archiveDocument(runID, batch))
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to encode raw archive")
		return
	}

	key := ArchiveKey(a.prefix, batch.SourceID, runID, a.now())

	// a run's archive is written once; an existing key is left untouched
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Failed to check raw archive, uploading anyway")
	}
	if exists {
		logger.FromContext(ctx).WithField("key", key).Debug("Raw archive already present")
		return
	}

	if err := a.store.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Failed to archive raw batch")
		return
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"key":   key,
		"bytes": len(body),
	}).Debug("Archived raw batch")
}

func archiveDocument(runID string, batch *source.Batch) map[string]interface{} {
	doc := map[string]interface{}{
		"run_id": runID,
		"source": batch.SourceID,
		"kind":   batch.Kind,
	}
	if batch.Payload != nil {
		doc["payload"] = batch.Payload
		return doc
	}

	rows := make([]map[string]interface{}, 0, len(batch.Items))
	for _, item := range batch.Items {
		rows = append(rows, item.Raw)
	}
	doc["rows"] = rows
	return doc
}
