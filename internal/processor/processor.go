// Package processor abstracts the external payment processor: outbound charge
// creation, deposit capture and release, and inbound event verification.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rentdesk/payments/internal/models"
)

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMisconfiguredWebhook = errors.New("webhook secret not configured")
	ErrMalformedEvent       = errors.New("malformed webhook event")
)

// Credentials route a call to a tenant's merchant setup.
type Credentials struct {
	APIKey    string
	AccountID string
}

// ChargeRequest describes an outbound charge. Amounts are in minor units.
type ChargeRequest struct {
	Credentials    Credentials
	AmountMinor    int64
	FeeMinor       int64
	Currency       string
	Description    string
	SuccessURL     string
	CancelURL      string
	Locale         string
	CustomerEmail  string
	Metadata       map[string]string
	ManualCapture  bool
	IdempotencyKey string
}

// ChargeHandle is what the caller needs to complete a charge.
type ChargeHandle struct {
	// ChargeIntentID is the payment intent id, or the checkout session id
	// when a checkout has not created its intent yet.
	ChargeIntentID string
	SessionID      string
	RedirectURL    string
	ClientSecret   string
}

type IntentResult struct {
	ChargeIntentID string
	ChargeID       string
	Status         string
	AmountReceived int64
	Currency       string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req ChargeRequest) (*ChargeHandle, error)
	CreatePaymentIntent(ctx context.Context, req ChargeRequest) (*ChargeHandle, error)
	CapturePaymentIntent(ctx context.Context, creds Credentials, chargeIntentID string, amountMinor int64) (*IntentResult, error)
	CancelPaymentIntent(ctx context.Context, creds Credentials, chargeIntentID string) (*IntentResult, error)
}

// EventDecoder verifies a raw webhook body and reduces it to a WebhookEvent.
type EventDecoder interface {
	ParseEvent(payload []byte, sigHeader string) (*models.WebhookEvent, error)
}

// Error is a failed processor call. Retryable errors (network, timeout, 5xx,
// rate limiting) may be retried by the caller; they never change ledger state.
type Error struct {
	Op         string
	Message    string
	Code       string
	StatusCode int
	Retryable  bool
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("processor %s failed (%s): %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("processor %s failed: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a processor call that ran out of time.
func IsTimeout(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Timeout
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
