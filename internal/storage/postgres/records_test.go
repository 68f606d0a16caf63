package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentdesk/payments/internal/models"
)

func TestRecordStore_UpsertTransfer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewRecordStore(db)
	now := time.Now().UTC()

	t.Run("late created event cannot regress a settled transfer", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO transfers .* ON CONFLICT \\(processor_id\\) DO UPDATE .* WHERE transfers.status = 'created' OR EXCLUDED.status <> 'created'").
			WithArgs("tr_1", sqlmock.AnyArg(), sqlmock.AnyArg(), "USD", models.TransferCreated, now,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpsertTransfer(context.Background(), &models.Transfer{
			ProcessorID: "tr_1",
			TenantID:    "tenant-1",
			Amount:      decimal.NewFromInt(45),
			Currency:    "USD",
			Status:      models.TransferCreated,
			CreatedAt:   now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("paid transfer", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO transfers .* WHERE transfers.status = 'created' OR EXCLUDED.status <> 'created'").
			WithArgs("tr_1", sqlmock.AnyArg(), sqlmock.AnyArg(), "USD", models.TransferPaid, now,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpsertTransfer(context.Background(), &models.Transfer{
			ProcessorID: "tr_1",
			TenantID:    "tenant-1",
			Amount:      decimal.NewFromInt(45),
			Currency:    "USD",
			Status:      models.TransferPaid,
			CreatedAt:   now,
			PaidAt:      &now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
