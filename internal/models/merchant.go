package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MerchantConfigRecord is the stored processor configuration for a tenant.
// APIKey is encrypted at rest.
type MerchantConfigRecord struct {
	ID              string          `json:"id" db:"id"`
	TenantID        string          `json:"tenant_id" db:"tenant_id"`
	Environment     string          `json:"environment" db:"environment"`
	APIKey          string          `json:"-" db:"api_key"`
	AccountRecordID string          `json:"account_record_id" db:"account_record_id"`
	FeePercent      decimal.Decimal `json:"fee_percent" db:"fee_percent"`
	Precision       int32           `json:"precision" db:"precision"`
	Active          bool            `json:"active" db:"active"`
	Version         int             `json:"version" db:"version"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// MerchantAccount is the tenant's connected sub-account record.
// AccountID is encrypted at rest; AccountLookup is its blind index.
type MerchantAccount struct {
	ID               string    `json:"id" db:"id"`
	TenantID         string    `json:"tenant_id" db:"tenant_id"`
	ConfigID         string    `json:"config_id" db:"config_id"`
	AccountID        string    `json:"-" db:"account_id"`
	AccountLookup    string    `json:"-" db:"account_lookup"`
	ChargesEnabled   bool      `json:"charges_enabled" db:"charges_enabled"`
	PayoutsEnabled   bool      `json:"payouts_enabled" db:"payouts_enabled"`
	DetailsSubmitted bool      `json:"details_submitted" db:"details_submitted"`
	Requirements     []string  `json:"requirements" db:"requirements"`
	Version          int       `json:"version" db:"version"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AccountCapabilities mirrors the processor's view of a sub-account.
type AccountCapabilities struct {
	ChargesEnabled   bool     `json:"charges_enabled"`
	PayoutsEnabled   bool     `json:"payouts_enabled"`
	DetailsSubmitted bool     `json:"details_submitted"`
	Requirements     []string `json:"requirements"`
}

// MerchantConfig is a verified, decrypted view of a tenant's processor setup.
type MerchantConfig struct {
	TenantID        string
	ConfigID        string
	AccountRecordID string
	Environment     string
	APIKey          string
	AccountID       string
	FeePercent      decimal.Decimal
	Currency        string
	Locale          string
}
