package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	t.Run("applies every statement in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		for range schema {
			mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectCommit()

		assert.NoError(t, Migrate(context.Background(), db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS tenants").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS customers").WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		err = Migrate(context.Background(), db)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "migration step 2")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBConfig_DSN(t *testing.T) {
	config := &DBConfig{Host: "db", Port: "5432", User: "app", Password: "secret", Name: "payments", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=payments sslmode=require", config.DSN())
}
