package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositPending    DepositStatus = "pending"
	DepositAuthorized DepositStatus = "authorized"
	DepositCaptured   DepositStatus = "captured"
	DepositReleased   DepositStatus = "released"
	DepositFailed     DepositStatus = "failed"
)

func (s DepositStatus) rank() int {
	switch s {
	case DepositPending:
		return 0
	case DepositAuthorized:
		return 1
	default:
		return 2
	}
}

// Terminal reports whether the hold is finished.
func (s DepositStatus) Terminal() bool {
	return s.rank() == 2
}

// CanTransition enforces pending -> authorized -> {captured | released | failed}.
// Steps may be skipped when events arrive out of order, but never reversed.
func (s DepositStatus) CanTransition(next DepositStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// SecurityDeposit tracks a hold placed for an order, at most one per order.
type SecurityDeposit struct {
	ID                string          `json:"id" db:"id"`
	OrderID           string          `json:"order_id" db:"order_id"`
	ChargeIntentID    string          `json:"charge_intent_id" db:"charge_intent_id"`
	TenantID          string          `json:"tenant_id" db:"tenant_id"`
	Currency          string          `json:"currency" db:"currency"`
	AuthorizedAmount  decimal.Decimal `json:"authorized_amount" db:"authorized_amount"`
	CapturedAmount    decimal.Decimal `json:"captured_amount" db:"captured_amount"`
	Status            DepositStatus   `json:"status" db:"status"`
	Reason            string          `json:"reason,omitempty" db:"reason"`
	OperationChargeID string          `json:"operation_charge_id,omitempty" db:"operation_charge_id"`
	AuthorizedAt      *time.Time      `json:"authorized_at,omitempty" db:"authorized_at"`
	CapturedAt        *time.Time      `json:"captured_at,omitempty" db:"captured_at"`
	ReleasedAt        *time.Time      `json:"released_at,omitempty" db:"released_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
	Version           int             `json:"version" db:"version"`
}
