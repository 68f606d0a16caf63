package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway creates destination charges on the platform account that
// settle into the tenant's connected account minus the application fee.
type StripeGateway struct {
	backend stripe.Backend
	timeout time.Duration
}

type StripeConfig struct {
	Timeout time.Duration
	// BaseURL overrides the API host; empty uses the live API.
	BaseURL string
}

func NewStripeGateway(config StripeConfig) *StripeGateway {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: config.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if config.BaseURL != "" {
		backendConfig.URL = stripe.String(config.BaseURL)
	}

	return &StripeGateway{
		backend: stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		timeout: config.Timeout,
	}
}

var _ Gateway = (*StripeGateway)(nil)

// CreateCheckoutSession opens a hosted checkout. Stripe usually creates the
// payment intent only once the customer submits the form, so the returned
// ChargeIntentID falls back to the session id (cs_...) until then. Webhook
// reconciliation keys on the intent id carried in the event, never on this
// value.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req ChargeRequest) (*ChargeHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	intentData := &stripe.CheckoutSessionPaymentIntentDataParams{
		Description: stripe.String(req.Description),
		Metadata:    req.Metadata,
		TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(req.Credentials.AccountID),
		},
	}
	if req.FeeMinor > 0 {
		intentData.ApplicationFeeAmount = stripe.Int64(req.FeeMinor)
	}
	if req.ManualCapture {
		intentData.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(lowerCurrency(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: intentData,
	}
	if req.Locale != "" {
		params.Locale = stripe.String(req.Locale)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Metadata = req.Metadata
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	client := session.Client{B: g.backend, Key: req.Credentials.APIKey}
	s, err := client.New(params)
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}

	handle := &ChargeHandle{
		ChargeIntentID: s.ID,
		SessionID:      s.ID,
		RedirectURL:    s.URL,
	}
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		handle.ChargeIntentID = s.PaymentIntent.ID
	}
	return handle, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req ChargeRequest) (*ChargeHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(lowerCurrency(req.Currency)),
		Description: stripe.String(req.Description),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.Credentials.AccountID),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.FeeMinor > 0 {
		params.ApplicationFeeAmount = stripe.Int64(req.FeeMinor)
	}
	if req.ManualCapture {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	params.Metadata = req.Metadata
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	client := paymentintent.Client{B: g.backend, Key: req.Credentials.APIKey}
	pi, err := client.New(params)
	if err != nil {
		return nil, wrapStripeError("create payment intent", err)
	}

	return &ChargeHandle{
		ChargeIntentID: pi.ID,
		ClientSecret:   pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) CapturePaymentIntent(ctx context.Context, creds Credentials, chargeIntentID string, amountMinor int64) (*IntentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentCaptureParams{}
	if amountMinor > 0 {
		params.AmountToCapture = stripe.Int64(amountMinor)
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("capture:%s:%d", chargeIntentID, amountMinor))

	client := paymentintent.Client{B: g.backend, Key: creds.APIKey}
	pi, err := client.Capture(chargeIntentID, params)
	if err != nil {
		return nil, wrapStripeError("capture payment intent", err)
	}
	return intentResult(pi), nil
}

func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, creds Credentials, chargeIntentID string) (*IntentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("cancel:" + chargeIntentID)

	client := paymentintent.Client{B: g.backend, Key: creds.APIKey}
	pi, err := client.Cancel(chargeIntentID, params)
	if err != nil {
		return nil, wrapStripeError("cancel payment intent", err)
	}
	return intentResult(pi), nil
}

func intentResult(pi *stripe.PaymentIntent) *IntentResult {
	result := &IntentResult{
		ChargeIntentID: pi.ID,
		Status:         string(pi.Status),
		AmountReceived: pi.AmountReceived,
		Currency:       string(pi.Currency),
	}
	if pi.LatestCharge != nil {
		result.ChargeID = pi.LatestCharge.ID
	}
	return result
}

func wrapStripeError(op string, err error) error {
	perr := &Error{Op: op, Message: err.Error(), Err: err}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		perr.Message = stripeErr.Msg
		perr.Code = string(stripeErr.Code)
		perr.StatusCode = stripeErr.HTTPStatusCode
		perr.Retryable = stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
		return perr
	}

	perr.Timeout = isTimeout(err)
	perr.Retryable = true
	return perr
}

func lowerCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}
