package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics for events emitted after a ledger commit.
const (
	TopicOrderConfirmed  = "order.confirmed"
	TopicDepositCaptured = "deposit.captured"
	TopicDepositReleased = "deposit.released"
)

type OrderConfirmed struct {
	OrderID        string          `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	TenantID       string          `json:"tenant_id"`
	CustomerID     string          `json:"customer_id"`
	ChargeIntentID string          `json:"charge_intent_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ChargeKind     LedgerKind      `json:"charge_kind"`
	ConfirmedAt    time.Time       `json:"confirmed_at"`
}

type DepositCapturedEvent struct {
	OrderID        string          `json:"order_id"`
	TenantID       string          `json:"tenant_id"`
	ChargeIntentID string          `json:"charge_intent_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reason         string          `json:"reason,omitempty"`
	CapturedAt     time.Time       `json:"captured_at"`
}

type DepositReleasedEvent struct {
	OrderID        string    `json:"order_id"`
	TenantID       string    `json:"tenant_id"`
	ChargeIntentID string    `json:"charge_intent_id"`
	Reason         string    `json:"reason,omitempty"`
	ReleasedAt     time.Time `json:"released_at"`
}

func (e OrderConfirmed) EventKey() string       { return e.OrderID }
func (e DepositCapturedEvent) EventKey() string { return e.OrderID }
func (e DepositReleasedEvent) EventKey() string { return e.OrderID }
