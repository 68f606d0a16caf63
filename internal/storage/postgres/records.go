package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

// RecordStore keeps the processor-side records that hang off a tenant:
// stored payment methods, transfers and payouts.
type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

var (
	_ storage.PaymentMethodStore = (*RecordStore)(nil)
	_ storage.TransferStore      = (*RecordStore)(nil)
	_ storage.PayoutStore        = (*RecordStore)(nil)
)

func (s *RecordStore) UpdateCard(ctx context.Context, pm *models.PaymentMethod) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payment_methods
		SET brand = $1, last4 = $2, exp_month = $3, exp_year = $4, updated_at = $5
		WHERE processor_id = $6`,
		pm.Brand, pm.Last4, pm.ExpMonth, pm.ExpYear, time.Now().UTC(), pm.ProcessorID)
	if err != nil {
		return err
	}
	return expectOneRow(result, storage.ErrNotFound)
}

func (s *RecordStore) GetTransfer(ctx context.Context, processorID string) (*models.Transfer, error) {
	var (
		t              models.Transfer
		tenantID       sql.NullString
		paidAt, failAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT processor_id, tenant_id, amount, currency, status, created_at, paid_at, failed_at, updated_at
		FROM transfers
		WHERE processor_id = $1`, processorID).Scan(&t.ProcessorID, &tenantID, &t.Amount, &t.Currency,
		&t.Status, &t.CreatedAt, &paidAt, &failAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	t.TenantID = tenantID.String
	t.PaidAt = timePtr(paidAt)
	t.FailedAt = timePtr(failAt)
	return &t, nil
}

// UpsertTransfer records the latest transfer state. A paid or failed transfer
// is never moved back to created.
func (s *RecordStore) UpsertTransfer(ctx context.Context, t *models.Transfer) error {
	t.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (processor_id, tenant_id, amount, currency, status, created_at, paid_at, failed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (processor_id) DO UPDATE
		SET tenant_id = COALESCE(EXCLUDED.tenant_id, transfers.tenant_id),
			status = EXCLUDED.status,
			paid_at = COALESCE(EXCLUDED.paid_at, transfers.paid_at),
			failed_at = COALESCE(EXCLUDED.failed_at, transfers.failed_at),
			updated_at = EXCLUDED.updated_at
		WHERE transfers.status = 'created' OR EXCLUDED.status <> 'created'`,
		t.ProcessorID, nullString(t.TenantID), t.Amount, t.Currency, t.Status, t.CreatedAt,
		nullTime(t.PaidAt), nullTime(t.FailedAt), t.UpdatedAt)
	return err
}

func (s *RecordStore) UpsertPayout(ctx context.Context, p *models.Payout) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payouts (processor_id, tenant_id, amount, currency, status, failure_code, failure_message,
			arrival_date, paid_at, failed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (processor_id) DO UPDATE
		SET status = EXCLUDED.status,
			failure_code = EXCLUDED.failure_code,
			failure_message = EXCLUDED.failure_message,
			paid_at = COALESCE(EXCLUDED.paid_at, payouts.paid_at),
			failed_at = COALESCE(EXCLUDED.failed_at, payouts.failed_at),
			updated_at = EXCLUDED.updated_at`,
		p.ProcessorID, p.TenantID, p.Amount, p.Currency, p.Status, nullString(p.FailureCode),
		nullString(p.FailureMessage), nullTime(p.ArrivalDate), nullTime(p.PaidAt), nullTime(p.FailedAt), p.UpdatedAt)
	return err
}
