// Package storage declares the persistence ports of the payments engine.
// Implementations live in storage/postgres and storage/memory.
package storage

import (
	"context"
	"errors"

	"github.com/rentdesk/payments/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a natural key (charge-intent id, refund id,
	// order id of a deposit) already exists.
	ErrDuplicate = errors.New("record already exists")
	// ErrVersionConflict is returned when a guarded update matched no row.
	ErrVersionConflict = errors.New("optimistic lock failed")
)

type LedgerStore interface {
	// GetByChargeIntent returns the single non-refund entry for a charge intent.
	GetByChargeIntent(ctx context.Context, chargeIntentID string) (*models.LedgerEntry, error)
	ListByChargeIntent(ctx context.Context, chargeIntentID string) ([]models.LedgerEntry, error)
	FindSucceededByOrder(ctx context.Context, orderID string) (*models.LedgerEntry, error)
	Create(ctx context.Context, entry *models.LedgerEntry) error
	// Update persists entry if its version is current and bumps entry.Version.
	Update(ctx context.Context, entry *models.LedgerEntry) error
}

type DepositStore interface {
	GetByOrder(ctx context.Context, orderID string) (*models.SecurityDeposit, error)
	GetByChargeIntent(ctx context.Context, chargeIntentID string) (*models.SecurityDeposit, error)
	Create(ctx context.Context, deposit *models.SecurityDeposit) error
	Update(ctx context.Context, deposit *models.SecurityDeposit) error
}

type MerchantStore interface {
	GetConfig(ctx context.Context, id string) (*models.MerchantConfigRecord, error)
	GetAccount(ctx context.Context, id string) (*models.MerchantAccount, error)
	FindAccountByLookup(ctx context.Context, lookup string) (*models.MerchantAccount, error)
	ListAccounts(ctx context.Context) ([]models.MerchantAccount, error)
	UpdateConfig(ctx context.Context, config *models.MerchantConfigRecord) error
	UpdateAccount(ctx context.Context, account *models.MerchantAccount) error
}

type PaymentMethodStore interface {
	// UpdateCard refreshes the cached card details of an already stored method.
	UpdateCard(ctx context.Context, method *models.PaymentMethod) error
}

type TransferStore interface {
	GetTransfer(ctx context.Context, processorID string) (*models.Transfer, error)
	UpsertTransfer(ctx context.Context, transfer *models.Transfer) error
}

type PayoutStore interface {
	UpsertPayout(ctx context.Context, payout *models.Payout) error
}

// TenantRegistry is the read side of the tenant registry.
type TenantRegistry interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, tenantID, number string) (*models.Order, error)
	MarkConfirmed(ctx context.Context, id string) error
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	// SetTemporaryPassword stores a rotated credential and stamps invited_at,
	// only while the customer has never logged in and was never invited.
	// Otherwise it returns ErrVersionConflict.
	SetTemporaryPassword(ctx context.Context, customerID, passwordHash string) error
}
