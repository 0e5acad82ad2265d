package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

func TestChannelRepository_ListEnabled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewChannelRepository(db)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM publish_channels\s+WHERE entry_id = \$1 AND enabled`).
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "entry_id", "backend", "enabled", "settings", "created_at"}).
			AddRow("ch-1", "entry-1", "geoserver", true, []byte(`{"workspace":"curator"}`), now).
			AddRow("ch-2", "entry-1", "archive", true, []byte(`{}`), now))

	channels, err := repo.ListEnabled(context.Background(), "entry-1")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, domain.BackendGeoServer, channels[0].Backend)
	assert.JSONEq(t, `{"workspace":"curator"}`, string(channels[0].Settings))
	expectationsMet(t, mock)
}

func TestChannelRepository_HasEnabled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewChannelRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	has, err := repo.HasEnabled(context.Background(), "entry-1")
	require.NoError(t, err)
	assert.False(t, has)
	expectationsMet(t, mock)
}
