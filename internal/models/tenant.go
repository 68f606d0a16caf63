package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant is the registry's view of a rental business.
type Tenant struct {
	ID               string          `json:"id" db:"id"`
	Subdomain        string          `json:"subdomain" db:"subdomain"`
	Currency         string          `json:"currency" db:"currency"`
	Locale           string          `json:"locale" db:"locale"`
	FeePercent       decimal.Decimal `json:"fee_percent" db:"fee_percent"`
	MerchantConfigID string          `json:"merchant_config_id" db:"merchant_config_id"`
}

const OrderStatusConfirmed = "confirmed"

type Order struct {
	ID         string          `json:"id" db:"id"`
	Number     string          `json:"number" db:"number"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
	Status     string          `json:"status" db:"status"`
	Total      decimal.Decimal `json:"total" db:"total"`
	Currency   string          `json:"currency" db:"currency"`
}

type Customer struct {
	ID                      string     `json:"id" db:"id"`
	TenantID                string     `json:"tenant_id" db:"tenant_id"`
	Email                   string     `json:"email" db:"email"`
	FullName                string     `json:"full_name" db:"full_name"`
	PasswordHash            string     `json:"-" db:"password_hash"`
	PasswordSystemGenerated bool       `json:"-" db:"password_system_generated"`
	LastLoginAt             *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	InvitedAt               *time.Time `json:"invited_at,omitempty" db:"invited_at"`
}
