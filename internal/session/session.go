// Package session persists import sessions in Redis. A session lives for the
// duration of one upload dialog: parsed rows, the chosen mapping, the ETL
// result, and the latest progress snapshot, all expiring together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/list-importer/internal/etl"
	"github.com/ignite/list-importer/internal/progress"
)

// TTL is how long an abandoned session survives before Redis reaps it.
const TTL = 24 * time.Hour

var ErrNotFound = errors.New("import session not found")

// Status is the session lifecycle label shown to the client.
type Status string

const (
	StatusParsed    Status = "parsed"
	StatusProcessed Status = "processed"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Session is the durable state of one import dialog.
type Session struct {
	ID               string            `json:"id"`
	Filename         string            `json:"filename"`
	Format           string            `json:"format"`
	ListID           string            `json:"list_id,omitempty"`
	Headers          []string          `json:"headers"`
	SuggestedMapping etl.ColumnMapping `json:"suggested_mapping"`
	Mapping          etl.ColumnMapping `json:"mapping,omitempty"`
	LowConfidence    bool              `json:"low_confidence"`
	RowCount         int               `json:"row_count"`
	Status           Status            `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Store reads and writes sessions, parsed rows, ETL results and progress
// snapshots under per-session Redis keys sharing one TTL.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Create allocates an ID and persists a new session plus its parsed rows.
func (s *Store) Create(ctx context.Context, sess *Session, records []etl.RawRecord) error {
	sess.ID = uuid.New().String()
	sess.Status = StatusParsed
	sess.CreatedAt = time.Now().UTC()
	if err := s.setJSON(ctx, recordsKey(sess.ID), records); err != nil {
		return err
	}
	return s.Save(ctx, sess)
}

// Save overwrites the session blob and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	return s.setJSON(ctx, sessionKey(sess.ID), sess)
}

// Get loads a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := s.getJSON(ctx, sessionKey(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Records loads the parsed rows for a session.
func (s *Store) Records(ctx context.Context, id string) ([]etl.RawRecord, error) {
	var records []etl.RawRecord
	if err := s.getJSON(ctx, recordsKey(id), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveResult persists the ETL result for the preview and upload steps.
func (s *Store) SaveResult(ctx context.Context, id string, result *etl.Result) error {
	return s.setJSON(ctx, resultKey(id), result)
}

// Result loads the stored ETL result.
func (s *Store) Result(ctx context.Context, id string) (*etl.Result, error) {
	var result etl.Result
	if err := s.getJSON(ctx, resultKey(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveProgress stores the latest tracker snapshot. Called from a tracker
// subscriber after every mutation; errors are swallowed because a stale
// snapshot only affects the progress display, never the pipeline.
func (s *Store) SaveProgress(id string, snap progress.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.setJSON(ctx, progressKey(id), snap)
}

// Progress loads the latest stored snapshot.
func (s *Store) Progress(ctx context.Context, id string) (*progress.Snapshot, error) {
	var snap progress.Snapshot
	if err := s.getJSON(ctx, progressKey(id), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete discards every key belonging to the session ("Start Over").
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx,
		sessionKey(id), recordsKey(id), resultKey(id), progressKey(id)).Err()
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, TTL).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func sessionKey(id string) string  { return fmt.Sprintf("import:session:%s", id) }
func recordsKey(id string) string  { return fmt.Sprintf("import:records:%s", id) }
func resultKey(id string) string   { return fmt.Sprintf("import:result:%s", id) }
func progressKey(id string) string { return fmt.Sprintf("import:progress:%s", id) }
