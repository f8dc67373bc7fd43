package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayline/wabroadcast/internal/core_domain"
	"github.com/relayline/wabroadcast/internal/repository"
)

func TestPgMessageRepository_RecordStatusTimestamp(t *testing.T) {
	messageID := uuid.New()
	eventTime := time.Unix(1700000000, 0).UTC()

	t.Run("BackfillsTimestampWithoutTouchingStatus", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewPgMessageRepository(mockPool, testLogger())

		// The statement writes timestamp columns only; the status column is
		// never part of the SET list.
		mockPool.ExpectExec(`UPDATE messages\s+SET sent_at\s+= CASE WHEN \$2 = 'sent'\s+THEN COALESCE\(sent_at, \$3\)`).
			WithArgs(messageID, core_domain.MessageStatusDelivered, eventTime).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.RecordStatusTimestamp(context.Background(), messageID, core_domain.MessageStatusDelivered, eventTime)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownMessageIsNotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewPgMessageRepository(mockPool, testLogger())

		mockPool.ExpectExec(`UPDATE messages\s+SET sent_at`).
			WithArgs(messageID, core_domain.MessageStatusRead, eventTime).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.RecordStatusTimestamp(context.Background(), messageID, core_domain.MessageStatusRead, eventTime)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
