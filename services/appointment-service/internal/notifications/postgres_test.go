package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC)
	store := &PostgresStore{q: mock, now: func() time.Time { return now }}

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), int64(2), "New appointment for Carla on June 1, at 10:00", false, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := store.Create(context.Background(), model.Notification{UserID: 2, Content: "New appointment for Carla on June 1, at 10:00"})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, now, n.CreatedAt)

	mock.ExpectQuery("FROM notifications").
		WithArgs(int64(2), ListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "content", "read", "created_at"}).
			AddRow(n.ID, int64(2), n.Content, false, now))

	list, err := store.ListByUser(context.Background(), 2, ListLimit)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n, list[0])

	require.NoError(t, mock.ExpectationsWereMet())
}
