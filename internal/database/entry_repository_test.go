package database_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
)

var entryColumns = []string{
	"id", "name", "description", "status", "kind", "query_url", "symbology",
	"assignee_id", "last_run_at", "force_run", "refresh_started_at", "data_created_at",
	"created_at", "updated_at",
}

var recurrenceColumns = []string{"shape", "interval_count", "hour", "minute", "weekday", "day_of_month"}

var submissionColumns = []string{
	"id", "entry_id", "content_location", "attribute_hash", "extent", "is_active", "status",
	"created_at", "submitted_at",
}

func entryRow(id string, status domain.EntryStatus) *sqlmock.Rows {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(entryColumns).AddRow(
		id, "parcels", "", string(status), "file", nil, nil,
		nil, nil, false, nil, nil, now, now,
	)
}

func expectEntryDetails(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT user_id FROM entry_editors`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("editor-1"))
	mock.ExpectQuery(`FROM entry_recurrences`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(recurrenceColumns))
}

func TestEntryRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)

	mock.ExpectQuery(`SELECT .* FROM entries WHERE id = \$1`).
		WithArgs("entry-1").
		WillReturnRows(entryRow("entry-1", domain.EntryStatusDraft))
	expectEntryDetails(mock, "entry-1")

	entry, err := repo.GetByID(context.Background(), "entry-1")
	require.NoError(t, err)

	assert.Equal(t, domain.EntryStatusDraft, entry.Status)
	assert.Equal(t, []string{"editor-1"}, entry.EditorIDs)
	assert.Nil(t, entry.Recurrence)
	expectationsMet(t, mock)
}

func TestEntryRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)

	mock.ExpectQuery(`FROM entries WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(entryColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	expectationsMet(t, mock)
}

func TestEntryRepository_ListRecurring(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	columns := append(append([]string{}, entryColumns...), recurrenceColumns...)
	mock.ExpectQuery(`LEFT JOIN entry_recurrences r ON r.entry_id = e.id\s+WHERE e.kind = \$1\s+AND \(r.entry_id IS NOT NULL OR e.force_run\)`).
		WithArgs(domain.EntryKindQuery).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(
				"entry-1", "traffic", "", "locked", "query", "https://example.com/traffic", nil,
				nil, now, true, nil, nil, now, now,
				"every_n_hours", 6, nil, nil, nil, nil,
			).
			AddRow(
				"entry-2", "permits", "", "draft", "query", "https://example.com/permits", nil,
				nil, nil, true, nil, nil, now, now,
				nil, nil, nil, nil, nil, nil,
			))

	entries, err := repo.ListRecurring(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[1].Recurrence, "a forced entry without a rule is listed")
	assert.True(t, entries[1].ForceRun)

	spec := entries[0].Recurrence
	require.NotNil(t, spec)
	assert.Equal(t, domain.RecurrenceEveryNHours, spec.Shape)
	require.NotNil(t, spec.Interval)
	assert.Equal(t, 6, *spec.Interval)
	assert.Nil(t, spec.Hour)
	assert.True(t, entries[0].ForceRun)
	expectationsMet(t, mock)
}

func TestEntryRepository_ClaimRefresh(t *testing.T) {
	lastRun := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		observed domain.Entry
		wantArgs []any
		affected int64
		want     bool
	}{
		{
			name:     "lease free",
			observed: domain.Entry{ID: "entry-1", LastRunAt: &lastRun},
			wantArgs: []any{"entry-1", float64(600), lastRun, false},
			affected: 1,
			want:     true,
		},
		{
			name:     "never run and forced",
			observed: domain.Entry{ID: "entry-1", ForceRun: true},
			wantArgs: []any{"entry-1", float64(600), nil, true},
			affected: 1,
			want:     true,
		},
		{
			name:     "lease held or entry already refreshed",
			observed: domain.Entry{ID: "entry-1", LastRunAt: &lastRun},
			wantArgs: []any{"entry-1", float64(600), lastRun, false},
			affected: 0,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewEntryRepository(db)

			args := make([]driver.Value, 0, len(tt.wantArgs))
			for _, a := range tt.wantArgs {
				args = append(args, a)
			}
			mock.ExpectExec(`UPDATE entries\s+SET refresh_started_at = NOW\(\)[\s\S]+last_run_at IS NOT DISTINCT FROM \$3\s+AND force_run = \$4`).
				WithArgs(args...).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.ClaimRefresh(context.Background(), &tt.observed, 10*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			expectationsMet(t, mock)
		})
	}
}

func TestEntryRepository_FinishRefresh(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)

	mock.ExpectExec(`force_run = FALSE`).
		WithArgs("entry-1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.FinishRefresh(context.Background(), "entry-1", nil))
	expectationsMet(t, mock)
}

func TestEntryRepository_ClearForceRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)

	mock.ExpectExec(`UPDATE entries SET force_run = FALSE, updated_at = NOW\(\) WHERE id = \$1 AND force_run`).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearForceRun(context.Background(), "entry-1"))
	expectationsMet(t, mock)
}

func TestEntryRepository_WithEntry_Commits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)
	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM entries WHERE id = \$1 FOR UPDATE`).
		WithArgs("entry-1").
		WillReturnRows(entryRow("entry-1", domain.EntryStatusNewDraft))
	expectEntryDetails(mock, "entry-1")
	mock.ExpectQuery(`FROM submissions WHERE entry_id = \$1 AND is_active`).
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows(submissionColumns).AddRow(
			"sub-1", "entry-1", "s3://c/x", "hash", nil, true, "submitted", created, created,
		))
	mock.ExpectExec(`UPDATE submissions SET is_active = \$2, status = \$3`).
		WithArgs("sub-1", true, domain.SubmissionStatusAccepted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE entries\s+SET status = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithEntry(context.Background(), "entry-1", func(tx lifecycle.Tx) error {
		sub, err := tx.ActiveSubmission(context.Background())
		if err != nil {
			return err
		}
		sub.Status = domain.SubmissionStatusAccepted
		if err = tx.UpdateSubmission(context.Background(), sub); err != nil {
			return err
		}
		tx.Entry().Status = domain.EntryStatusLocked
		return tx.UpdateEntry(context.Background(), tx.Entry())
	})
	require.NoError(t, err)
	expectationsMet(t, mock)
}

func TestEntryRepository_WithEntry_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)
	errBoom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("entry-1").
		WillReturnRows(entryRow("entry-1", domain.EntryStatusDraft))
	expectEntryDetails(mock, "entry-1")
	mock.ExpectRollback()

	err := repo.WithEntry(context.Background(), "entry-1", func(lifecycle.Tx) error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	expectationsMet(t, mock)
}

func TestEntryRepository_WithEntry_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(entryColumns))
	mock.ExpectRollback()

	err := repo.WithEntry(context.Background(), "missing", func(lifecycle.Tx) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	expectationsMet(t, mock)
}

func TestEntryTx_ActiveSubmissionNone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("entry-1").
		WillReturnRows(entryRow("entry-1", domain.EntryStatusDraft))
	expectEntryDetails(mock, "entry-1")
	mock.ExpectQuery(`AND is_active`).
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows(submissionColumns))
	mock.ExpectCommit()

	err := repo.WithEntry(context.Background(), "entry-1", func(tx lifecycle.Tx) error {
		sub, err := tx.ActiveSubmission(context.Background())
		assert.Nil(t, sub)
		return err
	})
	require.NoError(t, err)
	expectationsMet(t, mock)
}

func TestEntryRepository_ActiveSubmission(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewEntryRepository(db)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM submissions WHERE entry_id = \$1 AND is_active`).
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows(submissionColumns).
			AddRow("sub-1", "entry-1", "s3://content/a", "h1",
				[]byte(`{"min_x":-79.6,"min_y":43.5,"max_x":-79.1,"max_y":43.9}`), true, "accepted", now, now))
	mock.ExpectQuery(`FROM submissions WHERE entry_id = \$1 AND is_active`).
		WithArgs("entry-2").
		WillReturnRows(sqlmock.NewRows(submissionColumns))

	sub, err := repo.ActiveSubmission(context.Background(), "entry-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "s3://content/a", sub.ContentLocation)
	assert.Equal(t, &domain.Extent{MinX: -79.6, MinY: 43.5, MaxX: -79.1, MaxY: 43.9}, sub.Extent)

	sub, err = repo.ActiveSubmission(context.Background(), "entry-2")
	require.NoError(t, err)
	assert.Nil(t, sub)
	expectationsMet(t, mock)
}
