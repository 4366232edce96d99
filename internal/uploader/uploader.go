// Package uploader submits unique, validated records to the external
// bulk-create endpoint in fixed-size batches. This is the only part of the
// import pipeline that performs network I/O.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/list-importer/internal/etl"
	"github.com/ignite/list-importer/internal/pkg/httpretry"
	"github.com/ignite/list-importer/internal/pkg/logger"
	"github.com/ignite/list-importer/internal/progress"
)

const (
	DefaultBatchSize    = 50
	DefaultBatchTimeout = 30 * time.Second
)

// Summary tallies one upload run. Succeeded + Failed always equals Attempted:
// a record is never silently dropped, a failed batch counts all its records
// as failed.
type Summary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// bulkRequest is the wire shape of one batch: {"contacts": [...]}.
type bulkRequest struct {
	Contacts []etl.CleanedRecord `json:"contacts"`
}

// Uploader posts batches sequentially, in input order, one in flight at a
// time. Each batch gets its own timeout and retry budget; a batch that still
// fails after retries marks its records failed and the run continues.
type Uploader struct {
	endpoint     string
	client       httpretry.Doer
	batchSize    int
	batchTimeout time.Duration
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithClient replaces the HTTP client, used by tests.
func WithClient(c httpretry.Doer) Option {
	return func(u *Uploader) { u.client = c }
}

// WithBatchSize overrides the records-per-batch count.
func WithBatchSize(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.batchSize = n
		}
	}
}

// WithBatchTimeout overrides the per-batch request deadline.
func WithBatchTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		if d > 0 {
			u.batchTimeout = d
		}
	}
}

// New creates an Uploader targeting the given bulk-create endpoint.
func New(endpoint string, opts ...Option) *Uploader {
	u := &Uploader{
		endpoint:     endpoint,
		batchSize:    DefaultBatchSize,
		batchTimeout: DefaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = httpretry.New(nil, 3)
	}
	return u
}

// Upload splits records into batches and submits them sequentially, updating
// the tracker's upload stage after every batch. The run carries a single
// idempotency key; each batch sends it with the batch index appended so the
// server can discard a resubmitted batch after a partial failure.
//
// The upload stage ends complete when every record succeeded and error
// otherwise; either way the returned Summary holds the exact tallies.
func (u *Uploader) Upload(ctx context.Context, records []etl.CleanedRecord, tracker *progress.Tracker) (Summary, error) {
	summary := Summary{Attempted: len(records)}
	stage := tracker.StageIndex("upload")
	runKey := uuid.New().String()

	if err := tracker.StartStage(stage, fmt.Sprintf("Uploading %d records", len(records))); err != nil {
		return summary, err
	}
	if len(records) == 0 {
		tracker.CompleteStage(stage, "Nothing to upload")
		return summary, nil
	}

	batches := chunk(records, u.batchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			// Unsent batches count as failed so the tallies still add up
			summary.Failed = summary.Attempted - summary.Succeeded
			tracker.UpdateRecordProgress(summary.Succeeded+summary.Failed, summary.Succeeded, summary.Failed)
			tracker.ErrorStage(stage, "Upload cancelled")
			return summary, err
		}

		if err := u.sendBatch(ctx, batch, runKey, i); err != nil {
			summary.Failed += len(batch)
			logger.Warn("batch upload failed",
				"batch", i+1, "batches", len(batches), "records", len(batch), "error", err)
		} else {
			summary.Succeeded += len(batch)
		}

		processed := summary.Succeeded + summary.Failed
		tracker.UpdateRecordProgress(processed, summary.Succeeded, summary.Failed)
		if processed < summary.Attempted {
			percent := processed * 100 / summary.Attempted
			tracker.UpdateStageProgress(stage, percent,
				fmt.Sprintf("Uploaded %d of %d records", processed, summary.Attempted))
		}
	}

	if summary.Failed > 0 {
		tracker.ErrorStage(stage, fmt.Sprintf("Completed with %d failures", summary.Failed))
	} else {
		tracker.CompleteStage(stage, fmt.Sprintf("Uploaded %d records", summary.Succeeded))
	}

	logger.Info("upload run finished",
		"attempted", summary.Attempted, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

// sendBatch posts one batch with its own deadline. Any non-2xx response after
// retries fails the entire batch.
func (u *Uploader) sendBatch(ctx context.Context, batch []etl.CleanedRecord, runKey string, index int) error {
	body, err := json.Marshal(bulkRequest{Contacts: batch})
	if err != nil {
		return err
	}

	batchCtx, cancel := context.WithTimeout(ctx, u.batchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(batchCtx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", fmt.Sprintf("%s-%d", runKey, index))

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bulk create returned status %d", resp.StatusCode)
	}
	return nil
}

// chunk splits records into fixed-size groups preserving input order.
func chunk(records []etl.CleanedRecord, size int) [][]etl.CleanedRecord {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]etl.CleanedRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}
