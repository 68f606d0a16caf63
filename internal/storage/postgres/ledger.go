package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)

const ledgerColumns = `id, charge_intent_id, charge_id, refund_id, tenant_id, customer_id, order_id,
	amount, currency, kind, status, failure_reason, created_at, processed_at, version`

func scanLedgerEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		entry                                models.LedgerEntry
		chargeID, refundID, orderID, failure sql.NullString
		processedAt                          sql.NullTime
	)
	err := row.Scan(&entry.ID, &entry.ChargeIntentID, &chargeID, &refundID, &entry.TenantID, &entry.CustomerID,
		&orderID, &entry.Amount, &entry.Currency, &entry.Kind, &entry.Status, &failure, &entry.CreatedAt,
		&processedAt, &entry.Version)
	if err != nil {
		return nil, err
	}

	entry.ChargeID = chargeID.String
	entry.RefundID = refundID.String
	entry.OrderID = orderID.String
	entry.FailureReason = failure.String
	entry.ProcessedAt = timePtr(processedAt)
	return &entry, nil
}

func (s *LedgerStore) GetByChargeIntent(ctx context.Context, chargeIntentID string) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE charge_intent_id = $1 AND kind <> 'refund'`, chargeIntentID)

	entry, err := scanLedgerEntry(row)
	if err != nil {
		return nil, notFound(err)
	}
	return entry, nil
}

func (s *LedgerStore) ListByChargeIntent(ctx context.Context, chargeIntentID string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE charge_intent_id = $1
		ORDER BY created_at`, chargeIntentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *LedgerStore) FindSucceededByOrder(ctx context.Context, orderID string) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE order_id = $1 AND kind <> 'refund' AND status = 'succeeded'
		ORDER BY processed_at DESC
		LIMIT 1`, orderID)

	entry, err := scanLedgerEntry(row)
	if err != nil {
		return nil, notFound(err)
	}
	return entry, nil
}

func (s *LedgerStore) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.Version == 0 {
		entry.Version = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.ID, entry.ChargeIntentID, nullString(entry.ChargeID), nullString(entry.RefundID),
		entry.TenantID, entry.CustomerID, nullString(entry.OrderID), entry.Amount, entry.Currency,
		entry.Kind, entry.Status, nullString(entry.FailureReason), entry.CreatedAt,
		nullTime(entry.ProcessedAt), entry.Version)
	if isUniqueViolation(err) {
		return fmt.Errorf("ledger entry for %s: %w", entry.ChargeIntentID, storage.ErrDuplicate)
	}
	return err
}

func (s *LedgerStore) Update(ctx context.Context, entry *models.LedgerEntry) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET charge_id = $1, order_id = $2, amount = $3, status = $4, failure_reason = $5,
			processed_at = $6, version = version + 1
		WHERE id = $7 AND version = $8`,
		nullString(entry.ChargeID), nullString(entry.OrderID), entry.Amount, entry.Status,
		nullString(entry.FailureReason), nullTime(entry.ProcessedAt), entry.ID, entry.Version)
	if err != nil {
		return err
	}

	if err := expectOneRow(result, storage.ErrVersionConflict); err != nil {
		return fmt.Errorf("ledger entry %s: %w", entry.ID, err)
	}
	entry.Version++
	return nil
}
