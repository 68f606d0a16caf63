package models

import "time"

// EventKind classifies inbound processor events. Anything the reconciler does
// not know about is EventUnknown and keeps the processor's raw type string.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventChargeSucceeded
	EventChargeFailed
	EventChargeAmountCapturable
	EventChargeCanceled
	EventChargeRefunded
	EventPaymentMethodAttached
	EventMerchantAccountUpdated
	EventTransferCreated
	EventTransferPaid
	EventTransferFailed
	EventPayoutPaid
	EventPayoutFailed
)

var eventKindNames = map[EventKind]string{
	EventUnknown:                "unknown",
	EventChargeSucceeded:        "charge_succeeded",
	EventChargeFailed:           "charge_failed",
	EventChargeAmountCapturable: "charge_amount_capturable",
	EventChargeCanceled:         "charge_canceled",
	EventChargeRefunded:         "charge_refunded",
	EventPaymentMethodAttached:  "payment_method_attached",
	EventMerchantAccountUpdated: "merchant_account_updated",
	EventTransferCreated:        "transfer_created",
	EventTransferPaid:           "transfer_paid",
	EventTransferFailed:         "transfer_failed",
	EventPayoutPaid:             "payout_paid",
	EventPayoutFailed:           "payout_failed",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Correlation metadata keys attached to every outbound charge.
const (
	MetaTenantID    = "tenant_id"
	MetaCustomerID  = "customer_id"
	MetaOrderID     = "order_id"
	MetaOrderNumber = "order_number"
	MetaChargeKind  = "charge_kind"
)

// Values of MetaChargeKind.
const (
	ChargeKindCheckout    = "checkout"
	ChargeKindFullPayment = "full_payment"
	ChargeKindDeposit     = "security_deposit"
)

// WebhookEvent is a verified processor event reduced to the fields the
// reconciler acts on. Exactly one of the payload pointers is set for known kinds.
type WebhookEvent struct {
	ID        string
	Kind      EventKind
	RawType   string
	Created   time.Time
	AccountID string

	Intent        *ChargeIntentData
	Refund        *RefundData
	PaymentMethod *PaymentMethodData
	Merchant      *MerchantAccountData
	Transfer      *TransferData
	Payout        *PayoutData
}

// ChargeIntentData carries amounts in processor minor units.
type ChargeIntentData struct {
	ID                 string
	ChargeID           string
	Currency           string
	Amount             int64
	AmountReceived     int64
	AmountCapturable   int64
	Metadata           map[string]string
	FailureReason      string
	CancellationReason string
}

func (d *ChargeIntentData) Meta(key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// IsDeposit reports whether the charge was created as a security deposit hold.
func (d *ChargeIntentData) IsDeposit() bool {
	return d.Meta(MetaChargeKind) == ChargeKindDeposit
}

type RefundData struct {
	ChargeIntentID string
	ChargeID       string
	Currency       string
	Metadata       map[string]string
	Refunds        []RefundItem
}

type RefundItem struct {
	ID     string
	Amount int64
	Status string
}

type PaymentMethodData struct {
	ID       string
	Customer string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

type MerchantAccountData struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	Requirements     []string
}

type TransferData struct {
	ID          string
	Amount      int64
	Currency    string
	Destination string
	Created     time.Time
}

type PayoutData struct {
	ID             string
	Amount         int64
	Currency       string
	Status         string
	FailureCode    string
	FailureMessage string
	ArrivalDate    time.Time
}
