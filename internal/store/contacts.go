// Package store reads already-persisted contacts from Postgres so the
// deduplicator can flag collisions against records that are not part of the
// current upload.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ignite/list-importer/internal/etl"
)

// ContactStore fetches the dedup seed set for a list.
type ContactStore struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

// Open connects to Postgres with the given DSN and verifies the connection.
func Open(ctx context.Context, dsn string) (*ContactStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ContactStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *ContactStore) Close() error { return s.db.Close() }

// FetchExisting returns the match-relevant fields (email, phone, name, zip)
// of every contact already on the list. Only these fields are loaded; the
// deduplicator needs nothing else.
func (s *ContactStore) FetchExisting(ctx context.Context, listID string) ([]etl.CleanedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, COALESCE(phone, ''), COALESCE(first_name, ''),
		       COALESCE(last_name, ''), COALESCE(zip, '')
		FROM contacts
		WHERE list_id = $1`, listID)
	if err != nil {
		return nil, fmt.Errorf("query existing contacts: %w", err)
	}
	defer rows.Close()

	var existing []etl.CleanedRecord
	for rows.Next() {
		var email, phone, first, last, zip string
		if err := rows.Scan(&email, &phone, &first, &last, &zip); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		rec := etl.CleanedRecord{}
		if email != "" {
			rec[etl.FieldEmail] = email
		}
		if phone != "" {
			rec[etl.FieldPhone] = phone
		}
		if first != "" {
			rec[etl.FieldFirstName] = first
		}
		if last != "" {
			rec[etl.FieldLastName] = last
		}
		if zip != "" {
			rec[etl.FieldZip] = zip
		}
		existing = append(existing, rec)
	}
	return existing, rows.Err()
}
