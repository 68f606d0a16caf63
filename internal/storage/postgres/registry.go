package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rentdesk/payments/internal/models"
	"github.com/rentdesk/payments/internal/storage"
)

// RegistryStore reads the booking platform's tenant, order and customer
// tables. The payments engine only confirms orders and rotates invitation
// credentials; everything else about those records is owned elsewhere.
type RegistryStore struct {
	db *sql.DB
}

func NewRegistryStore(db *sql.DB) *RegistryStore {
	return &RegistryStore{db: db}
}

var (
	_ storage.TenantRegistry = (*RegistryStore)(nil)
	_ storage.OrderStore     = (*RegistryStore)(nil)
	_ storage.CustomerStore  = (*RegistryStore)(nil)
)

func (s *RegistryStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var (
		t        models.Tenant
		configID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subdomain, currency, locale, fee_percent, merchant_config_id
		FROM tenants
		WHERE id = $1`, id).Scan(&t.ID, &t.Subdomain, &t.Currency, &t.Locale, &t.FeePercent, &configID)
	if err != nil {
		return nil, notFound(err)
	}

	t.MerchantConfigID = configID.String
	return &t, nil
}

const orderColumns = `id, number, tenant_id, customer_id, status, total, currency`

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.Number, &o.TenantID, &o.CustomerID, &o.Status, &o.Total, &o.Currency); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *RegistryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *RegistryStore) GetOrderByNumber(ctx context.Context, tenantID, number string) (*models.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1 AND number = $2`, tenantID, number))
}

func (s *RegistryStore) MarkConfirmed(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		models.OrderStatusConfirmed, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if err := expectOneRow(result, storage.ErrNotFound); err != nil {
		return fmt.Errorf("order %s: %w", id, err)
	}
	return nil
}

func (s *RegistryStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var (
		c                      models.Customer
		passwordHash           sql.NullString
		lastLoginAt, invitedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, full_name, password_hash, password_system_generated, last_login_at, invited_at
		FROM customers
		WHERE id = $1`, id).Scan(&c.ID, &c.TenantID, &c.Email, &c.FullName, &passwordHash,
		&c.PasswordSystemGenerated, &lastLoginAt, &invitedAt)
	if err != nil {
		return nil, notFound(err)
	}

	c.PasswordHash = passwordHash.String
	c.LastLoginAt = timePtr(lastLoginAt)
	c.InvitedAt = timePtr(invitedAt)
	return &c, nil
}

func (s *RegistryStore) SetTemporaryPassword(ctx context.Context, customerID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET password_hash = $1, password_system_generated = TRUE, invited_at = $2
		WHERE id = $3 AND last_login_at IS NULL AND invited_at IS NULL`,
		passwordHash, time.Now().UTC(), customerID)
	if err != nil {
		return err
	}
	return expectOneRow(result, storage.ErrVersionConflict)
}
