package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_ReportsConnectedOnSuccessfulPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	status, err := Health(context.Background(), db)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Empty(t, status.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth_ReportsDisconnectedOnPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)

	status, err := Health(context.Background(), db)
	require.Error(t, err)
	assert.False(t, status.Connected)
	assert.NotEmpty(t, status.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}
