package processor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/rentdesk/payments/internal/models"
)

var stripeEventKinds = map[string]models.EventKind{
	"payment_intent.succeeded":                 models.EventChargeSucceeded,
	"payment_intent.payment_failed":            models.EventChargeFailed,
	"payment_intent.amount_capturable_updated": models.EventChargeAmountCapturable,
	"payment_intent.canceled":                  models.EventChargeCanceled,
	"charge.refunded":                          models.EventChargeRefunded,
	"payment_method.attached":                  models.EventPaymentMethodAttached,
	"account.updated":                          models.EventMerchantAccountUpdated,
	"transfer.created":                         models.EventTransferCreated,
	"transfer.paid":                            models.EventTransferPaid,
	"transfer.failed":                          models.EventTransferFailed,
	"payout.paid":                              models.EventPayoutPaid,
	"payout.failed":                            models.EventPayoutFailed,
}

type StripeEventDecoder struct {
	secret    string
	tolerance time.Duration
}

func NewStripeEventDecoder(secret string) *StripeEventDecoder {
	return &StripeEventDecoder{
		secret:    strings.TrimSpace(secret),
		tolerance: webhook.DefaultTolerance,
	}
}

var _ EventDecoder = (*StripeEventDecoder)(nil)

// ParseEvent verifies the Stripe-Signature header over the exact payload bytes
// before anything is decoded.
func (d *StripeEventDecoder) ParseEvent(payload []byte, sigHeader string) (*models.WebhookEvent, error) {
	if d.secret == "" {
		return nil, ErrMisconfiguredWebhook
	}
	if strings.TrimSpace(sigHeader) == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, d.secret, webhook.ConstructEventOptions{
		Tolerance:                d.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return normalizeStripeEvent(&event)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func normalizeStripeEvent(event *stripe.Event) (*models.WebhookEvent, error) {
	if event.ID == "" || event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing id or data object", ErrMalformedEvent)
	}

	out := &models.WebhookEvent{
		ID:        event.ID,
		RawType:   string(event.Type),
		Kind:      stripeEventKinds[string(event.Type)],
		Created:   time.Unix(event.Created, 0).UTC(),
		AccountID: event.Account,
	}

	raw := event.Data.Raw
	var err error
	switch out.Kind {
	case models.EventChargeSucceeded, models.EventChargeFailed,
		models.EventChargeAmountCapturable, models.EventChargeCanceled:
		out.Intent, err = decodeIntent(raw)
	case models.EventChargeRefunded:
		out.Refund, err = decodeRefund(raw)
	case models.EventPaymentMethodAttached:
		out.PaymentMethod, err = decodePaymentMethod(raw)
	case models.EventMerchantAccountUpdated:
		out.Merchant, err = decodeAccount(raw)
	case models.EventTransferCreated, models.EventTransferPaid, models.EventTransferFailed:
		out.Transfer, err = decodeTransfer(raw)
	case models.EventPayoutPaid, models.EventPayoutFailed:
		out.Payout, err = decodePayout(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, event.Type, err)
	}
	return out, nil
}

// expandableID accepts either an id string or an expanded object with an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = expandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type stripePaymentIntent struct {
	ID                 string            `json:"id"`
	Amount             int64             `json:"amount"`
	AmountReceived     int64             `json:"amount_received"`
	AmountCapturable   int64             `json:"amount_capturable"`
	Currency           string            `json:"currency"`
	Metadata           map[string]string `json:"metadata"`
	LatestCharge       expandableID      `json:"latest_charge"`
	CancellationReason string            `json:"cancellation_reason"`
	LastPaymentError   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func decodeIntent(raw json.RawMessage) (*models.ChargeIntentData, error) {
	var pi stripePaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, err
	}
	if pi.ID == "" {
		return nil, errors.New("payment intent without id")
	}

	data := &models.ChargeIntentData{
		ID:                 pi.ID,
		ChargeID:           string(pi.LatestCharge),
		Currency:           strings.ToUpper(pi.Currency),
		Amount:             pi.Amount,
		AmountReceived:     pi.AmountReceived,
		AmountCapturable:   pi.AmountCapturable,
		Metadata:           pi.Metadata,
		CancellationReason: pi.CancellationReason,
	}
	if pi.LastPaymentError != nil {
		data.FailureReason = pi.LastPaymentError.Message
		if data.FailureReason == "" {
			data.FailureReason = pi.LastPaymentError.Code
		}
	}
	return data, nil
}

type stripeCharge struct {
	ID            string            `json:"id"`
	PaymentIntent expandableID      `json:"payment_intent"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Refunds       *struct {
		Data []struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
			Status string `json:"status"`
		} `json:"data"`
	} `json:"refunds"`
}

// decodeRefund only sees refunds listed on the charge object; API versions
// that stop embedding the list yield an event with no refund items.
func decodeRefund(raw json.RawMessage) (*models.RefundData, error) {
	var ch stripeCharge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	if ch.PaymentIntent == "" {
		return nil, errors.New("charge without payment intent")
	}

	data := &models.RefundData{
		ChargeIntentID: string(ch.PaymentIntent),
		ChargeID:       ch.ID,
		Currency:       strings.ToUpper(ch.Currency),
		Metadata:       ch.Metadata,
	}
	if ch.Refunds != nil {
		for _, r := range ch.Refunds.Data {
			data.Refunds = append(data.Refunds, models.RefundItem{ID: r.ID, Amount: r.Amount, Status: r.Status})
		}
	}
	return data, nil
}

func decodePaymentMethod(raw json.RawMessage) (*models.PaymentMethodData, error) {
	var pm struct {
		ID       string       `json:"id"`
		Customer expandableID `json:"customer"`
		Card     *struct {
			Brand    string `json:"brand"`
			Last4    string `json:"last4"`
			ExpMonth int    `json:"exp_month"`
			ExpYear  int    `json:"exp_year"`
		} `json:"card"`
	}
	if err := json.Unmarshal(raw, &pm); err != nil {
		return nil, err
	}

	data := &models.PaymentMethodData{ID: pm.ID, Customer: string(pm.Customer)}
	if pm.Card != nil {
		data.Brand = pm.Card.Brand
		data.Last4 = pm.Card.Last4
		data.ExpMonth = pm.Card.ExpMonth
		data.ExpYear = pm.Card.ExpYear
	}
	return data, nil
}

func decodeAccount(raw json.RawMessage) (*models.MerchantAccountData, error) {
	var acct struct {
		ID               string `json:"id"`
		ChargesEnabled   bool   `json:"charges_enabled"`
		PayoutsEnabled   bool   `json:"payouts_enabled"`
		DetailsSubmitted bool   `json:"details_submitted"`
		Requirements     *struct {
			CurrentlyDue []string `json:"currently_due"`
		} `json:"requirements"`
	}
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, err
	}
	if acct.ID == "" {
		return nil, errors.New("account without id")
	}

	data := &models.MerchantAccountData{
		ID:               acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
		Requirements:     []string{},
	}
	if acct.Requirements != nil && acct.Requirements.CurrentlyDue != nil {
		data.Requirements = acct.Requirements.CurrentlyDue
	}
	return data, nil
}

func decodeTransfer(raw json.RawMessage) (*models.TransferData, error) {
	var tr struct {
		ID          string       `json:"id"`
		Amount      int64        `json:"amount"`
		Currency    string       `json:"currency"`
		Destination expandableID `json:"destination"`
		Created     int64        `json:"created"`
	}
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, err
	}
	return &models.TransferData{
		ID:          tr.ID,
		Amount:      tr.Amount,
		Currency:    strings.ToUpper(tr.Currency),
		Destination: string(tr.Destination),
		Created:     time.Unix(tr.Created, 0).UTC(),
	}, nil
}

func decodePayout(raw json.RawMessage) (*models.PayoutData, error) {
	var po struct {
		ID             string `json:"id"`
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
		Status         string `json:"status"`
		FailureCode    string `json:"failure_code"`
		FailureMessage string `json:"failure_message"`
		ArrivalDate    int64  `json:"arrival_date"`
	}
	if err := json.Unmarshal(raw, &po); err != nil {
		return nil, err
	}
	data := &models.PayoutData{
		ID:             po.ID,
		Amount:         po.Amount,
		Currency:       strings.ToUpper(po.Currency),
		Status:         po.Status,
		FailureCode:    po.FailureCode,
		FailureMessage: po.FailureMessage,
	}
	if po.ArrivalDate > 0 {
		data.ArrivalDate = time.Unix(po.ArrivalDate, 0).UTC()
	}
	return data, nil
}
