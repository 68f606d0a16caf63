package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

type MerchantStore struct {
	db *sql.DB
}

func NewMerchantStore(db *sql.DB) *MerchantStore {
	return &MerchantStore{db: db}
}

var _ storage.MerchantStore = (*MerchantStore)(nil)

const accountColumns = `id, tenant_id, config_id, account_id, account_lookup, charges_enabled,
	payouts_enabled, details_submitted, requirements, version, updated_at`

func (s *MerchantStore) GetConfig(ctx context.Context, id string) (*models.MerchantConfigRecord, error) {
	var (
		c             models.MerchantConfigRecord
		accountRecord sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, environment, api_key, account_record_id, fee_percent, precision,
			active, version, updated_at
		FROM merchant_configs
		WHERE id = $1`, id).Scan(&c.ID, &c.TenantID, &c.Environment, &c.APIKey, &accountRecord,
		&c.FeePercent, &c.Precision, &c.Active, &c.Version, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	c.AccountRecordID = accountRecord.String
	return &c, nil
}

func scanAccount(row rowScanner) (*models.MerchantAccount, error) {
	var (
		a      models.MerchantAccount
		lookup sql.NullString
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.ConfigID, &a.AccountID, &lookup, &a.ChargesEnabled,
		&a.PayoutsEnabled, &a.DetailsSubmitted, pq.Array(&a.Requirements), &a.Version, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.AccountLookup = lookup.String
	return &a, nil
}

func (s *MerchantStore) GetAccount(ctx context.Context, id string) (*models.MerchantAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM merchant_accounts
		WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err)
	}
	return account, nil
}

func (s *MerchantStore) FindAccountByLookup(ctx context.Context, lookup string) (*models.MerchantAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM merchant_accounts
		WHERE account_lookup = $1`, lookup)

	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err)
	}
	return account, nil
}

func (s *MerchantStore) ListAccounts(ctx context.Context) ([]models.MerchantAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM merchant_accounts
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.MerchantAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *MerchantStore) UpdateConfig(ctx context.Context, c *models.MerchantConfigRecord) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE merchant_configs
		SET api_key = $1, fee_percent = $2, active = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6`,
		c.APIKey, c.FeePercent, c.Active, now, c.ID, c.Version)
	if err != nil {
		return err
	}

	if err := expectOneRow(result, storage.ErrVersionConflict); err != nil {
		return fmt.Errorf("merchant config %s: %w", c.ID, err)
	}
	c.Version++
	c.UpdatedAt = now
	return nil
}

func (s *MerchantStore) UpdateAccount(ctx context.Context, a *models.MerchantAccount) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE merchant_accounts
		SET account_id = $1, account_lookup = $2, charges_enabled = $3, payouts_enabled = $4,
			details_submitted = $5, requirements = $6, updated_at = $7, version = version + 1
		WHERE id = $8 AND version = $9`,
		a.AccountID, nullString(a.AccountLookup), a.ChargesEnabled, a.PayoutsEnabled, a.DetailsSubmitted,
		pq.Array(a.Requirements), now, a.ID, a.Version)
	if err != nil {
		return err
	}

	if err := expectOneRow(result, storage.ErrVersionConflict); err != nil {
		return fmt.Errorf("merchant account %s: %w", a.ID, err)
	}
	a.Version++
	a.UpdatedAt = now
	return nil
}
