package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/list-importer/internal/etl"
)

func TestFetchExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"email", "phone", "first_name", "last_name", "zip"}).
		AddRow("jane@example.com", "5551234567", "Jane", "Doe", "12345").
		AddRow("bob@example.com", "", "", "", "")
	mock.ExpectQuery("SELECT email").WithArgs("list-42").WillReturnRows(rows)

	s := New(db)
	existing, err := s.FetchExisting(context.Background(), "list-42")
	require.NoError(t, err)
	require.Len(t, existing, 2)

	assert.Equal(t, "jane@example.com", existing[0].Get(etl.FieldEmail))
	assert.Equal(t, "5551234567", existing[0].Get(etl.FieldPhone))
	assert.Equal(t, "12345", existing[0].Get(etl.FieldZip))

	// Empty columns are omitted so the deduplicator skips those match keys
	assert.Equal(t, "bob@example.com", existing[1].Get(etl.FieldEmail))
	_, hasPhone := existing[1][etl.FieldPhone]
	assert.False(t, hasPhone)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchExistingEmptyList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT email").WithArgs("list-7").
		WillReturnRows(sqlmock.NewRows([]string{"email", "phone", "first_name", "last_name", "zip"}))

	existing, err := New(db).FetchExisting(context.Background(), "list-7")
	require.NoError(t, err)
	assert.Empty(t, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchExistingQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT email").WillReturnError(errors.New("connection reset"))

	_, err = New(db).FetchExisting(context.Background(), "list-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query existing contacts")
}
