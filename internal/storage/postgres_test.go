package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/wispr-bot/internal/models"
)

func TestPostgresAppendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("insert and timestamp bump share one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		s := &PostgresStorage{db: db}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO messages").
			WithArgs(int64(7), string(models.RoleUser), "hello").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE chats SET updated_at").
			WithArgs(sqlmock.AnyArg(), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.AppendMessage(ctx, 7, models.RoleUser, "hello"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed timestamp bump rolls the insert back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		s := &PostgresStorage{db: db}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO messages").
			WithArgs(int64(7), string(models.RoleUser), "hello").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE chats SET updated_at").
			WithArgs(sqlmock.AnyArg(), int64(7)).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err = s.AppendMessage(ctx, 7, models.RoleUser, "hello")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed insert never reaches the timestamp bump", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		s := &PostgresStorage{db: db}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO messages").
			WithArgs(int64(7), string(models.RoleUser), "hello").
			WillReturnError(errors.New("chat gone"))
		mock.ExpectRollback()

		err = s.AppendMessage(ctx, 7, models.RoleUser, "hello")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
