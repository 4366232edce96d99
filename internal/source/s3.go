// Package source implements unattended ingestion from an S3 drop folder.
// Files landing in the bucket are parsed, run through the ETL pipeline with
// an auto-suggested mapping, and uploaded without a review step; objects move
// under processed/ when done so a restart never re-imports them.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/list-importer/internal/config"
	"github.com/ignite/list-importer/internal/etl"
	"github.com/ignite/list-importer/internal/parser"
	"github.com/ignite/list-importer/internal/pkg/logger"
	"github.com/ignite/list-importer/internal/progress"
	"github.com/ignite/list-importer/internal/uploader"
)

// Watcher polls an S3 bucket and feeds new files through the pipeline.
type Watcher struct {
	client    *s3.Client
	bucket    string
	interval  time.Duration
	pipeline  *etl.Pipeline
	uploader  *uploader.Uploader
	ctx       context.Context
	cancel    context.CancelFunc
	running   int32
	lastRunAt time.Time
	healthy   bool
}

// NewWatcher builds a Watcher from the s3_watch config section.
func NewWatcher(cfg config.S3WatchConfig, pipeline *etl.Pipeline, up *uploader.Uploader) (*Watcher, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error
	if cfg.AWSProfile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithSharedConfigProfile(cfg.AWSProfile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	interval := cfg.Interval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Watcher{
		client:   s3.NewFromConfig(awsCfg),
		bucket:   cfg.Bucket,
		interval: interval,
		pipeline: pipeline,
		uploader: up,
		healthy:  true,
	}, nil
}

// Start begins polling in the background until Stop is called.
func (w *Watcher) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	go func() {
		w.runOnce()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runOnce()
			}
		}
	}()
}

// Stop ends polling. An import already in flight finishes its current batch.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) IsHealthy() bool      { return w.healthy }
func (w *Watcher) LastRunAt() time.Time { return w.lastRunAt }
func (w *Watcher) IsRunning() bool      { return atomic.LoadInt32(&w.running) == 1 }

// runOnce executes one polling cycle. Overlapping cycles are skipped.
func (w *Watcher) runOnce() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&w.running, 0)

	ctx := w.ctx
	w.lastRunAt = time.Now()
	w.healthy = true

	keys, err := w.listNewFiles(ctx)
	if err != nil {
		logger.Error("list bucket failed", "bucket", w.bucket, "error", err)
		w.healthy = false
		return
	}
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		if err := w.processFile(ctx, key); err != nil {
			logger.Error("drop-folder import failed", "key", key, "error", err)
		}
	}
}

// listNewFiles returns every supported object not yet moved to processed/.
func (w *Watcher) listNewFiles(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(w.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(w.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size == nil || *obj.Size == 0 {
				continue
			}
			if strings.HasPrefix(key, "processed/") {
				continue
			}
			if !supportedKey(key) {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func supportedKey(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, ".csv") || strings.HasSuffix(k, ".xlsx") ||
		strings.HasSuffix(k, ".xls") || strings.HasSuffix(k, ".pdf")
}

// processFile downloads, parses, processes and uploads one object, then
// moves it under processed/. Files whose headers yield no usable mapping are
// moved aside rather than retried forever.
func (w *Watcher) processFile(ctx context.Context, key string) error {
	out, err := w.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(out.Body, parser.MaxFileSize+1))
	out.Body.Close()
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}

	parsed, err := parser.Parse(key, strings.NewReader(string(body)))
	if err != nil {
		w.archive(ctx, key, "failed")
		return fmt.Errorf("parse: %w", err)
	}

	mapping := etl.SuggestMapping(parsed.Headers)
	if err := etl.ValidateMapping(mapping); err != nil {
		w.archive(ctx, key, "failed")
		return fmt.Errorf("no usable mapping for %s: %w", key, err)
	}

	result, err := w.pipeline.Process(parsed.Records, mapping, nil)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	tracker := progress.NewTracker(len(result.Unique))
	summary, err := w.uploader.Upload(ctx, result.Unique, tracker)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	logger.Info("drop-folder import complete",
		"key", key, "rows", result.Stats.TotalInput, "unique", result.Stats.Unique,
		"succeeded", summary.Succeeded, "failed", summary.Failed)

	w.archive(ctx, key, "done")
	return nil
}

// archive copies the object under processed/ and deletes the original.
func (w *Watcher) archive(ctx context.Context, key, label string) {
	dest := fmt.Sprintf("processed/%s-%s", label, key)
	_, err := w.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(w.bucket),
		CopySource: aws.String(w.bucket + "/" + key),
		Key:        aws.String(dest),
	})
	if err != nil {
		logger.Warn("archive copy failed", "key", key, "error", err)
		return
	}
	if _, err := w.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	}); err != nil {
		logger.Warn("archive delete failed", "key", key, "error", err)
	}
}
