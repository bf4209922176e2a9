package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendfi/attendfi-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organizer_address", "title", "description", "price_amount", "commitment_amount",
		"total_sessions", "start_sale_date", "end_sale_date", "last_session_end_time", "enrolled_count", "created_at",
	})
}

func TestEventRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now().UTC()
	rows := eventRows().
		AddRow(int64(7), "ORG", "Go Workshop", "three evenings", int64(1000), int64(500),
			3, now, now.Add(24*time.Hour), now.Add(72*time.Hour), 2, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	event, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), event.ID)
	assert.Equal(t, "ORG", event.OrganizerAddress)
	assert.Equal(t, int64(500), event.CommitmentAmount)
	assert.Equal(t, 2, event.EnrolledCount)
}

func TestEventRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEventRepositoryListFiltersByOrganizer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now().UTC()
	rows := eventRows().
		AddRow(int64(1), "ORG", "A", "", int64(10), int64(5), 1, now, now, now, 0, now)

	mock.ExpectQuery(regexp.QuoteMeta("organizer_address = $1")).
		WithArgs("ORG").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM events")).
		WithArgs("ORG").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	events, total, err := repo.List(context.Background(), models.EventFilter{OrganizerAddress: "ORG"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, total)
}

func TestEventRepositorySessionsOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"event_id", "session_index", "start_time", "end_time", "attended_count", "code", "code_set_at",
		"released_amount", "unattended_claimed_at", "unattended_organizer_fee", "unattended_protocol_fee",
	}).
		AddRow(int64(7), 0, now, now.Add(time.Hour), 1, "ABC123", now, int64(16666), nil, int64(0), int64(0)).
		AddRow(int64(7), 1, now.Add(24*time.Hour), now.Add(25*time.Hour), 0, nil, nil, int64(0), nil, int64(0), int64(0))

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_sessions WHERE event_id = $1 ORDER BY session_index")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	sessions, err := repo.Sessions(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].CodeSet())
	assert.False(t, sessions[1].CodeSet())
	assert.Equal(t, int64(16666), sessions[0].ReleasedAmount)
}
