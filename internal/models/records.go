package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod caches display details of a stored card.
type PaymentMethod struct {
	ProcessorID string    `json:"processor_id" db:"processor_id"`
	CustomerRef string    `json:"customer_ref" db:"customer_ref"`
	Brand       string    `json:"brand" db:"brand"`
	Last4       string    `json:"last4" db:"last4"`
	ExpMonth    int       `json:"exp_month" db:"exp_month"`
	ExpYear     int       `json:"exp_year" db:"exp_year"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type TransferStatus string

const (
	TransferCreated TransferStatus = "created"
	TransferPaid    TransferStatus = "paid"
	TransferFailed  TransferStatus = "failed"
)

// Transfer is a movement of funds from the platform to a tenant sub-account.
type Transfer struct {
	ProcessorID string          `json:"processor_id" db:"processor_id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Currency    string          `json:"currency" db:"currency"`
	Status      TransferStatus  `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	PaidAt      *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	FailedAt    *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type PayoutStatus string

const (
	PayoutPaid   PayoutStatus = "paid"
	PayoutFailed PayoutStatus = "failed"
)

// Payout is a settlement from a tenant sub-account to the tenant's bank.
type Payout struct {
	ProcessorID    string          `json:"processor_id" db:"processor_id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Currency       string          `json:"currency" db:"currency"`
	Status         PayoutStatus    `json:"status" db:"status"`
	FailureCode    string          `json:"failure_code,omitempty" db:"failure_code"`
	FailureMessage string          `json:"failure_message,omitempty" db:"failure_message"`
	ArrivalDate    *time.Time      `json:"arrival_date,omitempty" db:"arrival_date"`
	PaidAt         *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	FailedAt       *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
