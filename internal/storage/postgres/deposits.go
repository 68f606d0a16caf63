package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

type DepositStore struct {
	db *sql.DB
}

func NewDepositStore(db *sql.DB) *DepositStore {
	return &DepositStore{db: db}
}

var _ storage.DepositStore = (*DepositStore)(nil)

const depositColumns = `id, order_id, charge_intent_id, tenant_id, currency, authorized_amount, captured_amount,
	status, reason, operation_charge_id, authorized_at, captured_at, released_at, created_at, updated_at, version`

func scanDeposit(row rowScanner) (*models.SecurityDeposit, error) {
	var (
		d                                  models.SecurityDeposit
		reason, operationChargeID          sql.NullString
		authorizedAt, capturedAt, released sql.NullTime
	)
	err := row.Scan(&d.ID, &d.OrderID, &d.ChargeIntentID, &d.TenantID, &d.Currency, &d.AuthorizedAmount,
		&d.CapturedAmount, &d.Status, &reason, &operationChargeID, &authorizedAt, &capturedAt, &released,
		&d.CreatedAt, &d.UpdatedAt, &d.Version)
	if err != nil {
		return nil, err
	}

	d.Reason = reason.String
	d.OperationChargeID = operationChargeID.String
	d.AuthorizedAt = timePtr(authorizedAt)
	d.CapturedAt = timePtr(capturedAt)
	d.ReleasedAt = timePtr(released)
	return &d, nil
}

func (s *DepositStore) GetByOrder(ctx context.Context, orderID string) (*models.SecurityDeposit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+depositColumns+`
		FROM security_deposits
		WHERE order_id = $1`, orderID)

	deposit, err := scanDeposit(row)
	if err != nil {
		return nil, notFound(err)
	}
	return deposit, nil
}

func (s *DepositStore) GetByChargeIntent(ctx context.Context, chargeIntentID string) (*models.SecurityDeposit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+depositColumns+`
		FROM security_deposits
		WHERE charge_intent_id = $1`, chargeIntentID)

	deposit, err := scanDeposit(row)
	if err != nil {
		return nil, notFound(err)
	}
	return deposit, nil
}

func (s *DepositStore) Create(ctx context.Context, d *models.SecurityDeposit) error {
	if d.Version == 0 {
		d.Version = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_deposits (`+depositColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		d.ID, d.OrderID, d.ChargeIntentID, d.TenantID, d.Currency, d.AuthorizedAmount, d.CapturedAmount,
		d.Status, nullString(d.Reason), nullString(d.OperationChargeID), nullTime(d.AuthorizedAt),
		nullTime(d.CapturedAt), nullTime(d.ReleasedAt), d.CreatedAt, d.UpdatedAt, d.Version)
	if isUniqueViolation(err) {
		return fmt.Errorf("deposit for order %s: %w", d.OrderID, storage.ErrDuplicate)
	}
	return err
}

func (s *DepositStore) Update(ctx context.Context, d *models.SecurityDeposit) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE security_deposits
		SET authorized_amount = $1, captured_amount = $2, status = $3, reason = $4,
			operation_charge_id = $5, authorized_at = $6, captured_at = $7, released_at = $8,
			updated_at = $9, version = version + 1
		WHERE id = $10 AND version = $11`,
		d.AuthorizedAmount, d.CapturedAmount, d.Status, nullString(d.Reason), nullString(d.OperationChargeID),
		nullTime(d.AuthorizedAt), nullTime(d.CapturedAt), nullTime(d.ReleasedAt), d.UpdatedAt, d.ID, d.Version)
	if err != nil {
		return err
	}

	if err := expectOneRow(result, storage.ErrVersionConflict); err != nil {
		return fmt.Errorf("deposit %s: %w", d.ID, err)
	}
	d.Version++
	return nil
}
