package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	KindFullPayment LedgerKind = "full_payment"
	KindCheckout    LedgerKind = "checkout"
	KindRefund      LedgerKind = "refund"
)

type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerSucceeded LedgerStatus = "succeeded"
	LedgerFailed    LedgerStatus = "failed"
	LedgerCanceled  LedgerStatus = "canceled"
)

// Terminal reports whether no further event may change an entry in this status.
func (s LedgerStatus) Terminal() bool {
	return s == LedgerSucceeded || s == LedgerCanceled
}

// CanTransition reports whether an entry may move from s to next.
// A failed attempt can still succeed or be canceled; terminal states never move.
func (s LedgerStatus) CanTransition(next LedgerStatus) bool {
	if s.Terminal() || s == next || next == LedgerPending {
		return false
	}
	switch s {
	case LedgerPending:
		return next == LedgerSucceeded || next == LedgerFailed || next == LedgerCanceled
	case LedgerFailed:
		return next == LedgerSucceeded || next == LedgerCanceled
	}
	return false
}

// LedgerEntry is one charge attempt as confirmed by the processor. Refunds are
// separate entries on the same charge-intent id with RefundID set and a negated amount.
type LedgerEntry struct {
	ID             string          `json:"id" db:"id"`
	ChargeIntentID string          `json:"charge_intent_id" db:"charge_intent_id"`
	ChargeID       string          `json:"charge_id,omitempty" db:"charge_id"`
	RefundID       string          `json:"refund_id,omitempty" db:"refund_id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	CustomerID     string          `json:"customer_id" db:"customer_id"`
	OrderID        string          `json:"order_id,omitempty" db:"order_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Currency       string          `json:"currency" db:"currency"`
	Kind           LedgerKind      `json:"kind" db:"kind"`
	Status         LedgerStatus    `json:"status" db:"status"`
	FailureReason  string          `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	Version        int             `json:"version" db:"version"`
}
